package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/repository"
)

// healthCheckTimeout はストアの疎通確認の上限時間。
const healthCheckTimeout = 3 * time.Second

// NewHealthHandler はストアの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(pinger repository.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := pinger.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeAPIErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
				Code:     "STORE_UNAVAILABLE",
				Message:  "The data store is not reachable.",
				Category: "system",
				Action:   "Please wait a moment and try again.",
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
