package subscription

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/recurrence"
	"github.com/hitoshi/subman/internal/repository"
)

// RolloverResult は自動更新パス1回分の結果。
type RolloverResult struct {
	Updated int
	Failed  int
}

// RefreshNotifier は自動更新で1件以上の書き込みが成功した場合に1回だけ呼ばれる。
type RefreshNotifier func(ctx context.Context, result RolloverResult)

// Rollover は自動更新が有効で支払日を過ぎたサブスクリプションの次回支払日を進める。
// 書き込みは並行に実行し、全件の完了を待つ。個別の失敗はログに記録して件数に数え、
// 他の更新は中断しない。成功した要素はsubs内のNextPaymentも更新する。
// 2回目の呼び出しでは書き込みは発生しない。
func Rollover(ctx context.Context, repo repository.SubscriptionRepository, subs []*model.Subscription, now time.Time, notify RefreshNotifier) RolloverResult {
	type target struct {
		sub  *model.Subscription
		next time.Time
	}
	var targets []target
	for _, sub := range subs {
		if !sub.AutoRenewal {
			continue
		}
		next := recurrence.ResolveNextOccurrence(sub.NextPayment, sub.Frequency, now)
		if next.Equal(sub.NextPayment) {
			continue
		}
		targets = append(targets, target{sub: sub, next: next})
	}
	if len(targets) == 0 {
		return RolloverResult{}
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result RolloverResult
	)
	for _, tg := range targets {
		wg.Add(1)
		go func(tg target) {
			defer wg.Done()
			next := tg.next
			err := repo.Update(ctx, tg.sub.ID, model.SubscriptionPatch{NextPayment: &next})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				slog.Warn("rollover update failed",
					slog.String("subscription_id", tg.sub.ID),
					slog.String("next_payment", next.Format(model.DateLayout)),
					slog.String("error", err.Error()),
				)
				return
			}
			result.Updated++
			tg.sub.NextPayment = next
		}(tg)
	}
	wg.Wait()

	if result.Updated > 0 && notify != nil {
		notify(ctx, result)
	}
	return result
}
