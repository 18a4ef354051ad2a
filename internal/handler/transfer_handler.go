package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/transfer"
)

const (
	contentTypeJSON = "application/json"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// DefaultImportMaxBytes はインポートで受け付けるボディサイズの既定上限（5MB）。
	DefaultImportMaxBytes int64 = 5 * 1024 * 1024
)

// TransferServiceInterface はエクスポート・インポートハンドラーが必要とするサービスインターフェース。
type TransferServiceInterface interface {
	// ExportJSON はワークスペースの全サブスクリプションを再インポート可能なJSONで返す。
	ExportJSON(ctx context.Context, workspaceID string) ([]byte, error)
	// ExportTable はワークスペースの全サブスクリプションをxlsxで返す。
	ExportTable(ctx context.Context, workspaceID string) ([]byte, error)
	// Import はエクスポートしたJSONを取り込む。レコード単位の失敗は結果に含める。
	Import(ctx context.Context, workspaceID string, raw []byte) (*model.ImportResult, error)
}

// TransferHandler はエクスポート・インポートのHTTPハンドラー。
type TransferHandler struct {
	service  TransferServiceInterface
	maxBytes int64
	now      func() time.Time
}

// NewTransferHandler はTransferHandlerを生成する。maxBytesが0以下の場合は既定値を使う。
func NewTransferHandler(service TransferServiceInterface, maxBytes int64) *TransferHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultImportMaxBytes
	}
	return &TransferHandler{
		service:  service,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// ExportJSON はJSON形式でエクスポートする。
// GET /api/workspaces/{workspaceID}/export.json
func (h *TransferHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "json", contentTypeJSON, h.service.ExportJSON)
}

// ExportTable はxlsx形式でエクスポートする。
// GET /api/workspaces/{workspaceID}/export.xlsx
func (h *TransferHandler) ExportTable(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", contentTypeXLSX, h.service.ExportTable)
}

func (h *TransferHandler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, fn func(context.Context, string) ([]byte, error)) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	data, err := fn(r.Context(), wsID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filename := transfer.ExportFilename(transfer.DefaultBaseName, ext, h.now())
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// Import はエクスポートしたJSONを取り込む。ボディはファイルの内容そのもの。
// 取り込み結果は成否にかかわらず200で返す。
// POST /api/workspaces/{workspaceID}/import
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, &model.APIError{
				Code:     "IMPORT_TOO_LARGE",
				Message:  fmt.Sprintf("Import file exceeds %d bytes.", h.maxBytes),
				Category: "validation",
				Action:   "Split the file into smaller parts and import them separately.",
			})
			return
		}
		writeInvalidRequest(w)
		return
	}

	result, err := h.service.Import(r.Context(), wsID, raw)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
