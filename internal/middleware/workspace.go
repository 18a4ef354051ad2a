// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/subman/internal/model"
)

// WorkspaceIDParam はワークスペースIDを受け取るURLパラメータ名。
const WorkspaceIDParam = "workspaceID"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// workspaceIDContextKey はリクエストコンテキストにワークスペースIDを格納するためのキー。
var workspaceIDContextKey = contextKey("workspace_id")

// NewWorkspaceMiddleware はURLパラメータからワークスペースIDを読み取り、
// UUID形式であることを検証してリクエストコンテキストに注入するミドルウェアを返す。
// 形式が不正な場合は400 INVALID_WORKSPACE_IDを返す。
func NewWorkspaceMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := chi.URLParam(r, WorkspaceIDParam)
			id, err := uuid.Parse(raw)
			if err != nil {
				WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidWorkspaceIDError(raw))
				return
			}
			ctx := ContextWithWorkspaceID(r.Context(), id.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WorkspaceIDFromContext はリクエストコンテキストからワークスペースIDを取得する。
// ワークスペースミドルウェアを通過したリクエストでのみ有効。
func WorkspaceIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(workspaceIDContextKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("workspace ID not found in context")
	}
	return id, nil
}

// ContextWithWorkspaceID はコンテキストにワークスペースIDを注入する。
func ContextWithWorkspaceID(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceIDContextKey, workspaceID)
}
