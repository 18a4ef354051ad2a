package subscription

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/recurrence"
)

// PaymentEntry はカレンダー上の1件の支払い。
type PaymentEntry struct {
	ID       string
	Name     string
	Amount   decimal.Decimal
	Currency string
}

// PaymentDatesForMonth は次回支払日（解決後）が指定年月に入るサブスクリプションを
// "YYYY-MM-DD"ごとにまとめて返す。各日付内の順序は入力順を維持する。
func PaymentDatesForMonth(subs []*model.Subscription, year int, month time.Month, now time.Time) map[string][]PaymentEntry {
	out := make(map[string][]PaymentEntry)
	for _, sub := range subs {
		next := recurrence.ResolveNextOccurrence(sub.NextPayment, sub.Frequency, now)
		if next.Year() != year || next.Month() != month {
			continue
		}
		key := next.Format(model.DateLayout)
		out[key] = append(out[key], PaymentEntry{
			ID:       sub.ID,
			Name:     sub.Name,
			Amount:   sub.Amount,
			Currency: sub.Currency,
		})
	}
	return out
}
