// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout は支払日などの日付文字列のフォーマット。
const DateLayout = "2006-01-02"

// Frequency は支払いサイクルを表す。
type Frequency string

const (
	// FrequencyWeekly は毎週の支払い。
	FrequencyWeekly Frequency = "weekly"
	// FrequencyMonthly は毎月の支払い。
	FrequencyMonthly Frequency = "monthly"
	// FrequencyQuarterly は四半期ごとの支払い。
	FrequencyQuarterly Frequency = "quarterly"
	// FrequencyYearly は毎年の支払い。
	FrequencyYearly Frequency = "yearly"
)

// Valid は列挙値に含まれるかを返す。
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// ParseFrequency は文字列をFrequencyに変換する。列挙値以外はエラー。
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown frequency: %q", s)
	}
	return f, nil
}

// Colors はアイコンから抽出したパレット。中身はコアロジックからは不透明。
type Colors map[string]string

// Subscription は定期支払い（サブスクリプション）を表す。
type Subscription struct {
	ID          string
	WorkspaceID string
	Name        string
	Amount      decimal.Decimal
	Currency    string
	Frequency   Frequency
	NextPayment time.Time // UTCの0時。日単位の精度のみ意味を持つ
	StartDate   *time.Time
	AutoRenewal bool
	Labels      []string
	URL         string
	Icon        string
	Comment     string
	Colors      Colors
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone はラベル・色・開始日を含めて独立したコピーを返す。
func (s *Subscription) Clone() *Subscription {
	c := *s
	if s.Labels != nil {
		c.Labels = append([]string(nil), s.Labels...)
	}
	if s.StartDate != nil {
		d := *s.StartDate
		c.StartDate = &d
	}
	if s.Colors != nil {
		c.Colors = make(Colors, len(s.Colors))
		for k, v := range s.Colors {
			c.Colors[k] = v
		}
	}
	return &c
}

// NewSubscription はサブスクリプション作成時の入力。
// IDはインポート時に元のIDを維持するためだけに使用し、空の場合は採番される。
// AutoRenewalがnilの場合はtrueとして扱う。
type NewSubscription struct {
	ID          string
	Name        string
	Amount      decimal.Decimal
	Currency    string
	Frequency   Frequency
	NextPayment time.Time
	StartDate   *time.Time
	AutoRenewal *bool
	Labels      []string
	URL         string
	Icon        string
	Comment     string
	Colors      Colors
}

// SubscriptionPatch は部分更新の入力。nilのフィールドは変更しない。
type SubscriptionPatch struct {
	Name        *string
	Amount      *decimal.Decimal
	Currency    *string
	Frequency   *Frequency
	NextPayment *time.Time
	StartDate   *time.Time
	AutoRenewal *bool
	Labels      *[]string
	URL         *string
	Icon        *string
	Comment     *string
	Colors      *Colors
}

// Apply はパッチをsubに適用する。IDとCreatedAtは変更しない。
// UpdatedAtの更新は呼び出し側（リポジトリ）の責務。
func (p SubscriptionPatch) Apply(sub *Subscription) {
	if p.Name != nil {
		sub.Name = *p.Name
	}
	if p.Amount != nil {
		sub.Amount = *p.Amount
	}
	if p.Currency != nil {
		sub.Currency = *p.Currency
	}
	if p.Frequency != nil {
		sub.Frequency = *p.Frequency
	}
	if p.NextPayment != nil {
		sub.NextPayment = *p.NextPayment
	}
	if p.StartDate != nil {
		d := *p.StartDate
		sub.StartDate = &d
	}
	if p.AutoRenewal != nil {
		sub.AutoRenewal = *p.AutoRenewal
	}
	if p.Labels != nil {
		sub.Labels = NormalizeLabels(*p.Labels)
	}
	if p.URL != nil {
		sub.URL = *p.URL
	}
	if p.Icon != nil {
		sub.Icon = *p.Icon
	}
	if p.Comment != nil {
		sub.Comment = *p.Comment
	}
	if p.Colors != nil {
		sub.Colors = *p.Colors
	}
}

// NormalizeLabels はラベルの前後空白を除去し、空文字と重複を取り除く。
// 表示順を保つため最初の出現位置を維持する。
func NormalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// ParseDate は"YYYY-MM-DD"形式の文字列をUTCの0時として解釈する。
// RFC3339形式も受け付け、日付部分のみを使用する。
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date: %q", s)
	}
	return TruncateToDate(t), nil
}

// TruncateToDate は時刻成分を切り捨てたUTCの日付を返す。
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
