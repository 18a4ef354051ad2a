// Package transfer はサブスクリプションのJSON/xlsxでの入出力を扱う。
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/subman/internal/model"
)

// Record は交換形式の1件分。キー名はエクスポートしたJSONをそのまま再インポートできる形に揃える。
type Record struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Amount      json.Number  `json:"amount"`
	Currency    string       `json:"currency"`
	Frequency   string       `json:"frequency"`
	NextPayment string       `json:"nextPayment"`
	StartDate   string       `json:"startDate,omitempty"`
	URL         string       `json:"url,omitempty"`
	Icon        string       `json:"icon,omitempty"`
	Comment     string       `json:"comment,omitempty"`
	Labels      []string     `json:"labels"`
	AutoRenewal bool         `json:"autoRenewal"`
	Colors      model.Colors `json:"colors,omitempty"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
}

// FromSubscription はサブスクリプションを交換形式に変換する。
func FromSubscription(sub *model.Subscription) Record {
	rec := Record{
		ID:          sub.ID,
		Name:        sub.Name,
		Amount:      json.Number(sub.Amount.String()),
		Currency:    sub.Currency,
		Frequency:   string(sub.Frequency),
		NextPayment: sub.NextPayment.Format(model.DateLayout),
		URL:         sub.URL,
		Icon:        sub.Icon,
		Comment:     sub.Comment,
		Labels:      sub.Labels,
		AutoRenewal: sub.AutoRenewal,
		Colors:      sub.Colors,
		CreatedAt:   sub.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:   sub.UpdatedAt.UTC().Format(timestampLayout),
	}
	if sub.StartDate != nil {
		rec.StartDate = sub.StartDate.Format(model.DateLayout)
	}
	if rec.Labels == nil {
		rec.Labels = []string{}
	}
	return rec
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// 必須キーと期待する型
var requiredKinds = []struct {
	key  string
	kind string
}{
	{"id", "string"},
	{"name", "string"},
	{"amount", "number"},
	{"currency", "string"},
	{"frequency", "string"},
	{"nextPayment", "string"},
	{"labels", "array"},
	{"autoRenewal", "boolean"},
	{"createdAt", "string"},
	{"updatedAt", "string"},
}

func kindOf(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case json.Number:
		return "number"
	case []any:
		return "array"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}

// ValidateRecord は1件分のJSONを型検査してRecordに変換する。
// 必須キーの型、周期の値、次回支払日の形式を検査する。
func ValidateRecord(raw json.RawMessage) (Record, error) {
	var fields map[string]any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return Record{}, fmt.Errorf("オブジェクトではありません: %w", err)
	}
	if fields == nil {
		return Record{}, errors.New("オブジェクトではありません")
	}
	for _, rk := range requiredKinds {
		if got := kindOf(fields[rk.key]); got != rk.kind {
			return Record{}, fmt.Errorf("%sの型が不正です: want %s, got %s", rk.key, rk.kind, got)
		}
	}
	if !model.Frequency(fields["frequency"].(string)).Valid() {
		return Record{}, fmt.Errorf("周期が不正です: %v", fields["frequency"])
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("レコードの変換に失敗しました: %w", err)
	}
	if _, err := model.ParseDate(rec.NextPayment); err != nil {
		return Record{}, fmt.Errorf("次回支払日が不正です: %w", err)
	}
	if rec.StartDate != "" {
		if _, err := model.ParseDate(rec.StartDate); err != nil {
			return Record{}, fmt.Errorf("開始日が不正です: %w", err)
		}
	}
	return rec, nil
}

// ToNewSubscription は作成入力に変換する。IDは元の値を維持する。
// ValidateRecordを通過したRecordを前提とする。
func (r Record) ToNewSubscription() (model.NewSubscription, error) {
	amount, err := decimal.NewFromString(r.Amount.String())
	if err != nil {
		return model.NewSubscription{}, fmt.Errorf("金額が不正です: %w", err)
	}
	next, err := model.ParseDate(r.NextPayment)
	if err != nil {
		return model.NewSubscription{}, err
	}
	autoRenewal := r.AutoRenewal
	in := model.NewSubscription{
		ID:          r.ID,
		Name:        r.Name,
		Amount:      amount,
		Currency:    r.Currency,
		Frequency:   model.Frequency(r.Frequency),
		NextPayment: next,
		AutoRenewal: &autoRenewal,
		Labels:      r.Labels,
		URL:         r.URL,
		Icon:        r.Icon,
		Comment:     r.Comment,
		Colors:      r.Colors,
	}
	if r.StartDate != "" {
		start, err := model.ParseDate(r.StartDate)
		if err != nil {
			return model.NewSubscription{}, err
		}
		in.StartDate = &start
	}
	return in, nil
}
