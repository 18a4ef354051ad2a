package subscription

import (
	"sort"

	"github.com/hitoshi/subman/internal/model"
)

// UniqueLabels は全サブスクリプションのラベルを重複なく昇順で返す。
func UniqueLabels(subs []*model.Subscription) []string {
	seen := make(map[string]struct{})
	labels := make([]string, 0)
	for _, sub := range subs {
		for _, l := range sub.Labels {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			labels = append(labels, l)
		}
	}
	sort.Strings(labels)
	return labels
}
