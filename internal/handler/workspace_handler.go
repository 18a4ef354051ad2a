package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/subscription"
)

// WorkspaceServiceInterface はワークスペースハンドラーが必要とするサービスインターフェース。
// workspace.Serviceがそのまま満たす。
type WorkspaceServiceInterface interface {
	// Init はワークスペースを初期化する。idが空の場合は採番する。
	Init(ctx context.Context, id, name string) (*model.Workspace, error)
	// Get はワークスペースを取得する。存在しない場合はWORKSPACE_NOT_FOUNDを返す。
	Get(ctx context.Context, id string) (*model.Workspace, error)
	// Rename はワークスペース名を変更する。
	Rename(ctx context.Context, id, name string) error
	// SetSortPreference は並び順を保存する。
	SetSortPreference(ctx context.Context, id, sort string) (subscription.SortOption, error)
	// GenerateSharingLink は共有トークンを発行（または再利用）する。
	GenerateSharingLink(ctx context.Context, id string) (token, link string, err error)
}

// ShareServiceInterface は共有リンク閲覧ハンドラーが必要とするサービスインターフェース。
type ShareServiceInterface interface {
	// SharedList は共有トークンに対応する一覧を保存された並び順で返す。
	SharedList(ctx context.Context, token string) (*sharedListResponse, error)
	// SharedStats は共有トークンに対応する一覧の集計値を返す。
	SharedStats(ctx context.Context, token string) (*statsResponse, error)
}

// WorkspaceHandler はワークスペースと共有リンクのHTTPハンドラー。
type WorkspaceHandler struct {
	service WorkspaceServiceInterface
	shares  ShareServiceInterface
}

// NewWorkspaceHandler はWorkspaceHandlerを生成する。
func NewWorkspaceHandler(service WorkspaceServiceInterface, shares ShareServiceInterface) *WorkspaceHandler {
	return &WorkspaceHandler{
		service: service,
		shares:  shares,
	}
}

// decodeOptional はボディが空の場合をエラーとしないJSONデコード。
func decodeOptional(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// CreateWorkspace はワークスペースを初期化する。
// 既存のIDを指定した場合はそのワークスペースを返す。
// POST /api/workspaces
func (h *WorkspaceHandler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req workspaceRequest
	if err := decodeOptional(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	ws, err := h.service.Init(r.Context(), req.ID, deref(req.Name))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toWorkspaceResponse(ws))
}

// GetWorkspace はワークスペース情報を取得する。
// GET /api/workspaces/{workspaceID}
func (h *WorkspaceHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	ws, err := h.service.Get(r.Context(), wsID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws))
}

// UpdateWorkspace はワークスペース名と並び順の設定を更新する。
// PATCH /api/workspaces/{workspaceID}
func (h *WorkspaceHandler) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	var req workspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if req.Name != nil {
		if err := h.service.Rename(r.Context(), wsID, *req.Name); err != nil {
			handleServiceError(w, err)
			return
		}
	}
	if req.SortOption != nil {
		if _, err := h.service.SetSortPreference(r.Context(), wsID, *req.SortOption); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	ws, err := h.service.Get(r.Context(), wsID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws))
}

// ShareWorkspace は共有リンクを発行する。既に発行済みの場合は同じリンクを返す。
// POST /api/workspaces/{workspaceID}/share
func (h *WorkspaceHandler) ShareWorkspace(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	token, link, err := h.service.GenerateSharingLink(r.Context(), wsID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, shareResponse{Token: token, URL: link})
}

// GetShared は共有リンクから読み取り専用の一覧を取得する。
// GET /api/share/{token}
func (h *WorkspaceHandler) GetShared(w http.ResponseWriter, r *http.Request) {
	view, err := h.shares.SharedList(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetSharedStats は共有リンクから集計値を取得する。
// GET /api/share/{token}/stats
func (h *WorkspaceHandler) GetSharedStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.shares.SharedStats(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
