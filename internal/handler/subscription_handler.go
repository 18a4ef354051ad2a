package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/subman/internal/middleware"
	"github.com/hitoshi/subman/internal/model"
)

// SubscriptionServiceInterface はサブスクリプションハンドラーが必要とするサービスインターフェース。
// すべての操作はワークスペースにスコープされる。
type SubscriptionServiceInterface interface {
	// List はラベルで絞り込み並び替えた一覧を返す。sortが空の場合は保存された並び順を使う。
	List(ctx context.Context, workspaceID string, labels []string, sort string) ([]subscriptionResponse, error)
	// Create はサブスクリプションを作成する。
	Create(ctx context.Context, workspaceID string, in model.NewSubscription) (*subscriptionResponse, error)
	// Update はサブスクリプションを部分更新する。
	Update(ctx context.Context, workspaceID, id string, patch model.SubscriptionPatch) (*subscriptionResponse, error)
	// Delete はサブスクリプションを削除する。
	Delete(ctx context.Context, workspaceID, id string) error
	// Stats はラベルで絞り込んだ集計値を返す。
	Stats(ctx context.Context, workspaceID string, labels []string) (*statsResponse, error)
	// Labels は使用中のラベルを重複なく昇順で返す。
	Labels(ctx context.Context, workspaceID string) ([]string, error)
	// Calendar は指定年月の支払予定を返す。
	Calendar(ctx context.Context, workspaceID string, year int, month time.Month) (*calendarResponse, error)
}

// SubscriptionHandler はサブスクリプション管理のHTTPハンドラー。
type SubscriptionHandler struct {
	service SubscriptionServiceInterface
	now     func() time.Time
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service SubscriptionServiceInterface) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		now:     time.Now,
	}
}

// workspaceID はワークスペースミドルウェアが注入したIDを取り出す。
// ミドルウェアを経由しない構成は設定ミスのため500を返す。
func workspaceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := middleware.WorkspaceIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return "", false
	}
	return id, true
}

// ListSubscriptions はサブスクリプション一覧を取得する。
// GET /api/workspaces/{workspaceID}/subscriptions?labels=a,b&sort=name-asc
func (h *SubscriptionHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	subs, err := h.service.List(r.Context(), wsID, parseLabels(r), r.URL.Query().Get("sort"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, subs)
}

// CreateSubscription はサブスクリプションを作成する。
// POST /api/workspaces/{workspaceID}/subscriptions
func (h *SubscriptionHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	in, apiErr := req.toNewSubscription()
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	sub, err := h.service.Create(r.Context(), wsID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// UpdateSubscription はサブスクリプションを部分更新する。
// PATCH /api/workspaces/{workspaceID}/subscriptions/{id}
func (h *SubscriptionHandler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	patch, apiErr := req.toPatch()
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	sub, err := h.service.Update(r.Context(), wsID, id, patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// DeleteSubscription はサブスクリプションを削除する。
// DELETE /api/workspaces/{workspaceID}/subscriptions/{id}
func (h *SubscriptionHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), wsID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetStats は集計値を取得する。
// GET /api/workspaces/{workspaceID}/stats?labels=a,b
func (h *SubscriptionHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), wsID, parseLabels(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ListLabels は使用中のラベル一覧を取得する。
// GET /api/workspaces/{workspaceID}/labels
func (h *SubscriptionHandler) ListLabels(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	labels, err := h.service.Labels(r.Context(), wsID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if labels == nil {
		labels = []string{}
	}

	writeJSON(w, http.StatusOK, labels)
}

// GetCalendar は指定年月の支払予定を取得する。省略時は当月。
// GET /api/workspaces/{workspaceID}/calendar?year=2024&month=3
func (h *SubscriptionHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	now := h.now().UTC()
	year, err := queryInt(r, "year", now.Year())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCalendarPeriodError("year must be a number"))
		return
	}
	month, err := queryInt(r, "month", int(now.Month()))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCalendarPeriodError("month must be a number"))
		return
	}

	cal, err := h.service.Calendar(r.Context(), wsID, year, time.Month(month))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cal)
}

// queryInt は整数のクエリパラメータを読み取る。未指定の場合はdefを返す。
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
