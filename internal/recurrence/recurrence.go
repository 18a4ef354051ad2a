// Package recurrence は支払日の周期計算を行う純粋関数を提供する。
// 現在時刻は常に引数で受け取り、内部で time.Now を参照しない。
package recurrence

import (
	"fmt"
	"math"
	"time"

	"github.com/hitoshi/subman/internal/model"
)

// Advance はdateを1周期進める。月・年単位の加算は移動先の月末日に丸める
// （1月31日 + 1ヶ月 = 2月28日または29日）。無効な周期の場合はdateをそのまま返す。
func Advance(date time.Time, freq model.Frequency) time.Time {
	switch freq {
	case model.FrequencyWeekly:
		return date.AddDate(0, 0, 7)
	case model.FrequencyMonthly:
		return addMonthsClamped(date, 1)
	case model.FrequencyQuarterly:
		return addMonthsClamped(date, 3)
	case model.FrequencyYearly:
		return addMonthsClamped(date, 12)
	default:
		return date
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(target.Year(), target.Month(), t.Location()); d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(target.Year(), target.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// IsOverdue はdateがnowより前であればtrueを返す。
func IsOverdue(date, now time.Time) bool {
	return date.Before(now)
}

// ResolveNextOccurrence はnowより後になるまでdateを周期ごとに進めた日付を返す。
// dateが既にnowより後ならそのまま返す。1周期進めても日付が動かない場合
// （無効な周期）は無限ループせずその時点の日付を返す。
func ResolveNextOccurrence(date time.Time, freq model.Frequency, now time.Time) time.Time {
	next := date
	for !next.After(now) {
		advanced := Advance(next, freq)
		if !advanced.After(next) {
			return next
		}
		next = advanced
	}
	return next
}

// DaysUntil はnowからdateまでの日数を切り上げで返す。過去の日付は負数になる。
func DaysUntil(date, now time.Time) int {
	return int(math.Ceil(date.Sub(now).Hours() / 24))
}

// FormatDueLabel は支払日までの残り日数を表示用の文字列にする。
func FormatDueLabel(date, now time.Time) string {
	days := DaysUntil(date, now)
	switch {
	case days < 0:
		return fmt.Sprintf("%d days overdue", -days)
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	default:
		return fmt.Sprintf("due in %d days", days)
	}
}

// MonthBounds はnowが属する月の開始時刻と終了時刻（UTC、終端を含む）を返す。
func MonthBounds(now time.Time) (time.Time, time.Time) {
	y, m, _ := now.UTC().Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}
