// Package report はサブスクリプション一覧をターミナル向けの表として出力する。
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/subman/internal/currency"
	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/recurrence"
	"github.com/hitoshi/subman/internal/subscription"
)

// Normalizer は基準通貨への換算を提供する。
type Normalizer interface {
	subscription.Normalizer
	Reference() string
}

// Render はsubsを並び順のまま表にしてwへ書き出す。
// 自動更新ありの支払日はnow以降に解決して表示する。
// フッターには月額・年額の合計（基準通貨）を出す。
func Render(w io.Writer, subs []*model.Subscription, n Normalizer, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := table.Row{"Name", "Labels", "Frequency", "Next Payment", "Due", "Amount", "Monthly (" + n.Reference() + ")"}
	t.AppendHeader(header)

	for _, sub := range subs {
		next := sub.NextPayment
		if sub.AutoRenewal {
			next = recurrence.ResolveNextOccurrence(next, sub.Frequency, now)
		}
		due := recurrence.FormatDueLabel(next, now)
		if recurrence.IsOverdue(next, now) {
			due = text.FgRed.Sprint(due)
		}
		t.AppendRow(table.Row{
			sub.Name,
			strings.Join(sub.Labels, ", "),
			string(sub.Frequency),
			next.Format(model.DateLayout),
			due,
			currency.Format(sub.Amount, sub.Currency),
			currency.Format(subscription.MonthlyEquivalent(sub, n), n.Reference()),
		})
	}

	t.AppendSeparator()

	monthly := subscription.TotalMonthly(subs, n)
	yearly := subscription.TotalYearly(subs, n)
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d subscriptions", len(subs)), "", "", "", "",
		text.Bold.Sprint("Total / month"), text.Bold.Sprint(formatTotal(monthly, n)),
	})
	t.AppendFooter(table.Row{
		"", "", "", "", "",
		text.Bold.Sprint("Total / year"), text.Bold.Sprint(formatTotal(yearly, n)),
	})

	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault

	colCount := len(header)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: colCount - 1, Align: text.AlignRight},
		{Number: colCount, Align: text.AlignRight},
	})

	t.Render()
}

func formatTotal(amount decimal.Decimal, n Normalizer) string {
	return currency.Format(amount, n.Reference())
}
