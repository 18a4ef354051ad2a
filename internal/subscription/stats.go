package subscription

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/recurrence"
)

// Normalizer は金額を基準通貨に換算するインターフェース。
type Normalizer interface {
	ToReference(amount decimal.Decimal, code string) decimal.Decimal
}

var (
	weeksPerMonth  = decimal.RequireFromString("4.33")
	monthsPerYear  = decimal.NewFromInt(12)
	monthsPerQuart = decimal.NewFromInt(3)
)

// Stats はダッシュボード用の集計値。金額は基準通貨建て。
type Stats struct {
	Count        int
	TotalMonthly decimal.Decimal
	TotalYearly  decimal.Decimal
	DueThisMonth decimal.Decimal
	Overdue      int // 自動更新しない期限切れの件数
}

// MonthlyEquivalent は周期を月額に換算してから基準通貨に換算する。
// 週額は4.33倍、四半期は1/3、年額は1/12とする。
func MonthlyEquivalent(sub *model.Subscription, n Normalizer) decimal.Decimal {
	amount := sub.Amount
	switch sub.Frequency {
	case model.FrequencyWeekly:
		amount = amount.Mul(weeksPerMonth)
	case model.FrequencyQuarterly:
		amount = amount.Div(monthsPerQuart)
	case model.FrequencyYearly:
		amount = amount.Div(monthsPerYear)
	}
	return n.ToReference(amount, sub.Currency)
}

// TotalMonthly は月額換算の合計を返す。
func TotalMonthly(subs []*model.Subscription, n Normalizer) decimal.Decimal {
	total := decimal.Zero
	for _, sub := range subs {
		total = total.Add(MonthlyEquivalent(sub, n))
	}
	return total
}

// TotalYearly は月額合計の12倍を返す。
func TotalYearly(subs []*model.Subscription, n Normalizer) decimal.Decimal {
	return TotalMonthly(subs, n).Mul(monthsPerYear)
}

// DueThisMonth は次回支払日（解決後）がnowと同じ月に入るサブスクリプションの金額合計を返す。
// 周期による月額換算は行わない。
func DueThisMonth(subs []*model.Subscription, n Normalizer, now time.Time) decimal.Decimal {
	start, end := recurrence.MonthBounds(now)
	total := decimal.Zero
	for _, sub := range subs {
		next := recurrence.ResolveNextOccurrence(sub.NextPayment, sub.Frequency, now)
		if next.Before(start) || next.After(end) {
			continue
		}
		total = total.Add(n.ToReference(sub.Amount, sub.Currency))
	}
	return total
}

// ComputeStats は集計値をまとめて計算する。
func ComputeStats(subs []*model.Subscription, n Normalizer, now time.Time) Stats {
	overdue := 0
	for _, sub := range subs {
		if !sub.AutoRenewal && recurrence.IsOverdue(sub.NextPayment, now) {
			overdue++
		}
	}
	return Stats{
		Count:        len(subs),
		TotalMonthly: TotalMonthly(subs, n),
		TotalYearly:  TotalYearly(subs, n),
		DueThisMonth: DueThisMonth(subs, n, now),
		Overdue:      overdue,
	}
}
