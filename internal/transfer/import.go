package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/subman/internal/metrics"
	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/repository"
	"github.com/hitoshi/subman/internal/subscription"
)

// インポート結果のメッセージ
const (
	msgInvalidJSON = "Invalid JSON format"
	msgNoData      = "No subscription data found"
)

// Importer はJSONからサブスクリプションを取り込む。
type Importer struct {
	sanitizer subscription.Sanitizer
	metrics   metrics.MetricsCollector
}

// NewImporter はImporterを生成する。sanitizerとmはnilでもよい。
func NewImporter(sanitizer subscription.Sanitizer, m metrics.MetricsCollector) *Importer {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Importer{sanitizer: sanitizer, metrics: m}
}

func newResult() *model.ImportResult {
	return &model.ImportResult{Errors: []string{}, Duplicates: []string{}}
}

// splitRecords は単一オブジェクトと配列の両方を受け付ける。
func splitRecords(raw []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var single json.RawMessage
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []json.RawMessage{single}, nil
}

// Import はrawを解析してrepoに登録する。
// 個別のレコードの失敗はErrorsに記録して処理を続ける。
// IDが既存またはバッチ内で重複するレコードはスキップしてDuplicatesに名前を記録する。
func (im *Importer) Import(ctx context.Context, raw []byte, repo repository.SubscriptionRepository) *model.ImportResult {
	result := newResult()

	items, err := splitRecords(raw)
	if err != nil {
		result.Errors = append(result.Errors, msgInvalidJSON)
		return result
	}
	if len(items) == 0 {
		result.Errors = append(result.Errors, msgNoData)
		return result
	}

	existing, err := repo.ListAll(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Import failed: %v", err))
		return result
	}
	seen := make(map[string]struct{}, len(existing)+len(items))
	for _, sub := range existing {
		seen[sub.ID] = struct{}{}
	}

	for i, item := range items {
		rec, err := ValidateRecord(item)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Invalid subscription data at index %d", i))
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			result.Duplicates = append(result.Duplicates, rec.Name)
			result.Skipped++
			continue
		}
		if err := im.create(ctx, rec, repo); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to import \"%s\": %s", rec.Name, errorMessage(err)))
			continue
		}
		result.Imported++
		seen[rec.ID] = struct{}{}
	}

	result.Success = result.Imported > 0 || (result.Skipped > 0 && len(result.Errors) == 0)
	im.metrics.RecordImport(result.Imported, result.Skipped, len(result.Errors))
	return result
}

func (im *Importer) create(ctx context.Context, rec Record, repo repository.SubscriptionRepository) error {
	in, err := rec.ToNewSubscription()
	if err != nil {
		return err
	}
	if im.sanitizer != nil {
		in.Name = im.sanitizer.SanitizeText(in.Name)
		in.Comment = im.sanitizer.SanitizeText(in.Comment)
		for i, l := range in.Labels {
			in.Labels[i] = im.sanitizer.SanitizeText(l)
		}
	}
	if apiErr := subscription.ValidateNew(in); apiErr != nil {
		return apiErr
	}
	_, err = repo.Create(ctx, in)
	return err
}

func errorMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
