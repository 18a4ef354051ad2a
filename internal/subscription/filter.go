package subscription

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hitoshi/subman/internal/model"
)

// SortField は並び替えのキー。
type SortField string

const (
	SortByNextPayment SortField = "nextPayment"
	SortByName        SortField = "name"
	SortByAmount      SortField = "amount"
)

// SortOption は並び替えのキーと方向。
type SortOption struct {
	Field SortField
	Desc  bool
}

// DefaultSort は次回支払日の昇順。
var DefaultSort = SortOption{Field: SortByNextPayment}

// String は"name-desc"形式の文字列を返す。
func (o SortOption) String() string {
	dir := "asc"
	if o.Desc {
		dir = "desc"
	}
	return string(o.Field) + "-" + dir
}

// ParseSortOption は"nextPayment-asc"などの6種類の指定を解析する。
// 空文字は既定の並び順として扱う。
func ParseSortOption(s string) (SortOption, error) {
	if s == "" {
		return DefaultSort, nil
	}
	field, dir, ok := strings.Cut(s, "-")
	if !ok {
		return SortOption{}, model.NewInvalidSortError(s)
	}
	opt := SortOption{Field: SortField(field)}
	switch opt.Field {
	case SortByNextPayment, SortByName, SortByAmount:
	default:
		return SortOption{}, model.NewInvalidSortError(s)
	}
	switch dir {
	case "asc":
	case "desc":
		opt.Desc = true
	default:
		return SortOption{}, model.NewInvalidSortError(s)
	}
	return opt, nil
}

// FilterByLabels は選択したラベルのいずれかを持つサブスクリプションを返す（OR条件、完全一致）。
// 選択が空の場合は全件を返す。
func FilterByLabels(subs []*model.Subscription, selected []string) []*model.Subscription {
	if len(selected) == 0 {
		return subs
	}
	want := make(map[string]struct{}, len(selected))
	for _, l := range selected {
		want[l] = struct{}{}
	}
	out := make([]*model.Subscription, 0, len(subs))
	for _, sub := range subs {
		for _, l := range sub.Labels {
			if _, ok := want[l]; ok {
				out = append(out, sub)
				break
			}
		}
	}
	return out
}

// Sort はsubsのコピーを安定ソートして返す。入力スライスは変更しない。
// nextPaymentは保存されている日付そのもの、amountは基準通貨換算額で比較する。
func Sort(subs []*model.Subscription, opt SortOption, n Normalizer) []*model.Subscription {
	out := make([]*model.Subscription, len(subs))
	copy(out, subs)

	var cmp func(a, b *model.Subscription) int
	switch opt.Field {
	case SortByName:
		// Collatorは内部バッファを持つため呼び出しごとに生成する
		col := collate.New(language.English, collate.IgnoreCase)
		cmp = func(a, b *model.Subscription) int {
			return col.CompareString(a.Name, b.Name)
		}
	case SortByAmount:
		cmp = func(a, b *model.Subscription) int {
			return n.ToReference(a.Amount, a.Currency).Cmp(n.ToReference(b.Amount, b.Currency))
		}
	default:
		cmp = func(a, b *model.Subscription) int {
			return a.NextPayment.Compare(b.NextPayment)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if opt.Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}
