package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/subscription"
)

// mockWorkspaceService はWorkspaceServiceInterfaceのモック実装。
type mockWorkspaceService struct {
	initFn           func(ctx context.Context, id, name string) (*model.Workspace, error)
	getFn            func(ctx context.Context, id string) (*model.Workspace, error)
	renameFn         func(ctx context.Context, id, name string) error
	setSortFn        func(ctx context.Context, id, sort string) (subscription.SortOption, error)
	generateSharedFn func(ctx context.Context, id string) (string, string, error)
}

func (m *mockWorkspaceService) Init(ctx context.Context, id, name string) (*model.Workspace, error) {
	if m.initFn != nil {
		return m.initFn(ctx, id, name)
	}
	return &model.Workspace{ID: id, Name: name}, nil
}

func (m *mockWorkspaceService) Get(ctx context.Context, id string) (*model.Workspace, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.Workspace{ID: id, Name: model.DefaultWorkspaceName}, nil
}

func (m *mockWorkspaceService) Rename(ctx context.Context, id, name string) error {
	if m.renameFn != nil {
		return m.renameFn(ctx, id, name)
	}
	return nil
}

func (m *mockWorkspaceService) SetSortPreference(ctx context.Context, id, sort string) (subscription.SortOption, error) {
	if m.setSortFn != nil {
		return m.setSortFn(ctx, id, sort)
	}
	return subscription.ParseSortOption(sort)
}

func (m *mockWorkspaceService) GenerateSharingLink(ctx context.Context, id string) (string, string, error) {
	if m.generateSharedFn != nil {
		return m.generateSharedFn(ctx, id)
	}
	return "", "", nil
}

// mockShareService はShareServiceInterfaceのモック実装。
type mockShareService struct {
	sharedListFn  func(ctx context.Context, token string) (*sharedListResponse, error)
	sharedStatsFn func(ctx context.Context, token string) (*statsResponse, error)
}

func (m *mockShareService) SharedList(ctx context.Context, token string) (*sharedListResponse, error) {
	if m.sharedListFn != nil {
		return m.sharedListFn(ctx, token)
	}
	return &sharedListResponse{}, nil
}

func (m *mockShareService) SharedStats(ctx context.Context, token string) (*statsResponse, error) {
	if m.sharedStatsFn != nil {
		return m.sharedStatsFn(ctx, token)
	}
	return &statsResponse{}, nil
}

func newShareRequest(target, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("token", token)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// --- POST /api/workspaces ---

func TestWorkspaceHandler_Create_EmptyBody(t *testing.T) {
	created := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	svc := &mockWorkspaceService{
		initFn: func(ctx context.Context, id, name string) (*model.Workspace, error) {
			if id != "" || name != "" {
				t.Errorf("Init(%q, %q), want empty values", id, name)
			}
			return &model.Workspace{ID: testWorkspaceID, Name: model.DefaultWorkspaceName, CreatedAt: created, UpdatedAt: created}, nil
		},
	}
	h := NewWorkspaceHandler(svc, &mockShareService{})

	w := httptest.NewRecorder()
	h.CreateWorkspace(w, httptest.NewRequest(http.MethodPost, "/api/workspaces", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var got workspaceResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != testWorkspaceID || got.Name != model.DefaultWorkspaceName {
		t.Errorf("response = %+v", got)
	}
	if got.SortOption != model.DefaultSortOption {
		t.Errorf("SortOption = %q, want %q", got.SortOption, model.DefaultSortOption)
	}
	if got.Shared {
		t.Error("new workspace should not be shared")
	}
}

func TestWorkspaceHandler_Create_WithIDAndName(t *testing.T) {
	svc := &mockWorkspaceService{
		initFn: func(ctx context.Context, id, name string) (*model.Workspace, error) {
			if id != testWorkspaceID || name != "Family" {
				t.Errorf("Init(%q, %q)", id, name)
			}
			return &model.Workspace{ID: id, Name: name}, nil
		},
	}
	h := NewWorkspaceHandler(svc, &mockShareService{})

	req := newWorkspaceRequest(http.MethodPost, "/api/workspaces", `{"id":"`+testWorkspaceID+`","name":"Family"}`, nil)
	w := httptest.NewRecorder()
	h.CreateWorkspace(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestWorkspaceHandler_Create_InvalidID(t *testing.T) {
	svc := &mockWorkspaceService{
		initFn: func(ctx context.Context, id, name string) (*model.Workspace, error) {
			return nil, model.NewInvalidWorkspaceIDError(id)
		},
	}
	h := NewWorkspaceHandler(svc, &mockShareService{})

	req := newWorkspaceRequest(http.MethodPost, "/api/workspaces", `{"id":"nope"}`, nil)
	w := httptest.NewRecorder()
	h.CreateWorkspace(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- GET/PATCH /api/workspaces/{workspaceID} ---

func TestWorkspaceHandler_Get_NotFound(t *testing.T) {
	svc := &mockWorkspaceService{
		getFn: func(ctx context.Context, id string) (*model.Workspace, error) {
			return nil, model.NewWorkspaceNotFoundError(id)
		},
	}
	h := NewWorkspaceHandler(svc, &mockShareService{})

	w := httptest.NewRecorder()
	h.GetWorkspace(w, newWorkspaceRequest(http.MethodGet, "/", "", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if got := decodeError(t, w); got.Code != model.ErrCodeWorkspaceNotFound {
		t.Errorf("code = %q", got.Code)
	}
}

func TestWorkspaceHandler_Update_RenameAndSort(t *testing.T) {
	var renamed, sorted string
	svc := &mockWorkspaceService{
		renameFn: func(ctx context.Context, id, name string) error {
			renamed = name
			return nil
		},
		setSortFn: func(ctx context.Context, id, sort string) (subscription.SortOption, error) {
			sorted = sort
			return subscription.ParseSortOption(sort)
		},
		getFn: func(ctx context.Context, id string) (*model.Workspace, error) {
			return &model.Workspace{ID: id, Name: renamed, SortOption: sorted}, nil
		},
	}
	h := NewWorkspaceHandler(svc, &mockShareService{})

	w := httptest.NewRecorder()
	h.UpdateWorkspace(w, newWorkspaceRequest(http.MethodPatch, "/", `{"name":"Home","sortOption":"amount-desc"}`, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got workspaceResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "Home" || got.SortOption != "amount-desc" {
		t.Errorf("response = %+v", got)
	}
}

func TestWorkspaceHandler_Update_InvalidSort(t *testing.T) {
	h := NewWorkspaceHandler(&mockWorkspaceService{}, &mockShareService{})

	w := httptest.NewRecorder()
	h.UpdateWorkspace(w, newWorkspaceRequest(http.MethodPatch, "/", `{"sortOption":"random"}`, nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeError(t, w); got.Code != model.ErrCodeInvalidSort {
		t.Errorf("code = %q", got.Code)
	}
}

func TestWorkspaceHandler_Update_EmptyBodyRejected(t *testing.T) {
	h := NewWorkspaceHandler(&mockWorkspaceService{}, &mockShareService{})

	w := httptest.NewRecorder()
	h.UpdateWorkspace(w, newWorkspaceRequest(http.MethodPatch, "/", "", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- 共有リンク ---

func TestWorkspaceHandler_Share(t *testing.T) {
	svc := &mockWorkspaceService{
		generateSharedFn: func(ctx context.Context, id string) (string, string, error) {
			return "tok-1", "http://localhost:8080/share/tok-1", nil
		},
	}
	h := NewWorkspaceHandler(svc, &mockShareService{})

	w := httptest.NewRecorder()
	h.ShareWorkspace(w, newWorkspaceRequest(http.MethodPost, "/share", "", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got shareResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Token != "tok-1" || got.URL != "http://localhost:8080/share/tok-1" {
		t.Errorf("response = %+v", got)
	}
}

func TestWorkspaceHandler_GetShared(t *testing.T) {
	shares := &mockShareService{
		sharedListFn: func(ctx context.Context, token string) (*sharedListResponse, error) {
			if token != "tok-1" {
				t.Errorf("token = %q", token)
			}
			return &sharedListResponse{Name: "Family", SortOption: "name-asc", Subscriptions: []subscriptionResponse{{ID: "a"}}}, nil
		},
	}
	h := NewWorkspaceHandler(&mockWorkspaceService{}, shares)

	w := httptest.NewRecorder()
	h.GetShared(w, newShareRequest("/api/share/tok-1", "tok-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got sharedListResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "Family" || len(got.Subscriptions) != 1 {
		t.Errorf("response = %+v", got)
	}
}

func TestWorkspaceHandler_GetSharedStats_NotFound(t *testing.T) {
	shares := &mockShareService{
		sharedStatsFn: func(ctx context.Context, token string) (*statsResponse, error) {
			return nil, model.NewShareNotFoundError()
		},
	}
	h := NewWorkspaceHandler(&mockWorkspaceService{}, shares)

	w := httptest.NewRecorder()
	h.GetSharedStats(w, newShareRequest("/api/share/unknown/stats", "unknown"))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if got := decodeError(t, w); got.Code != model.ErrCodeShareNotFound {
		t.Errorf("code = %q", got.Code)
	}
}
