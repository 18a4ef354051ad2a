package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/subman/internal/middleware"
	"github.com/hitoshi/subman/internal/model"
)

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一フォーマットでAPIエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeInvalidRequest はリクエストボディを解析できなかった場合のエラーを書き込む。
func writeInvalidRequest(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "Failed to parse the request body.",
		Category: "validation",
		Action:   "Send the request body as valid JSON.",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed,
		model.ErrCodeInvalidWorkspaceID,
		model.ErrCodeInvalidSort,
		model.ErrCodeInvalidCalendarPeriod:
		return http.StatusBadRequest
	case model.ErrCodeSubscriptionNotFound,
		model.ErrCodeWorkspaceNotFound,
		model.ErrCodeShareNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// parseLabels は"a,b"形式のクエリ値をラベルのリストに変換する。空要素は除く。
func parseLabels(r *http.Request) []string {
	raw := r.URL.Query().Get("labels")
	if raw == "" {
		return nil
	}
	return model.NormalizeLabels(strings.Split(raw, ","))
}
