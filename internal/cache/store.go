// Package cache はサブスクリプションストアの読み取りキャッシュを提供する。
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/subman/internal/metrics"
	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/repository"
)

const maxCleanupInterval = 5 * time.Minute

type entry struct {
	subs      []*model.Subscription
	expiresAt time.Time
}

type inFlightCall struct {
	done chan struct{}
	subs []*model.Subscription
	err  error
}

// Store はワークスペース単位で一覧をTTLキャッシュするSubscriptionStore。
// 書き込みは下位ストアへ委譲した後に該当ワークスペースのエントリを破棄する。
// 返す要素は常にコピーのため、呼び出し側で変更してもキャッシュには影響しない。
type Store struct {
	inner   repository.SubscriptionStore
	ttl     time.Duration
	metrics metrics.MetricsCollector
	now     func() time.Time

	mu          sync.Mutex
	entries     map[string]entry
	generations map[string]uint64
	inFlight    map[string]*inFlightCall
	lastCleanup time.Time
}

var _ repository.SubscriptionStore = (*Store)(nil)

// Wrap はttlが正の場合にinnerをキャッシュで包んで返す。ttlが0以下ならinnerをそのまま返す。
func Wrap(inner repository.SubscriptionStore, ttl time.Duration, m metrics.MetricsCollector) repository.SubscriptionStore {
	if ttl <= 0 {
		return inner
	}
	return New(inner, ttl, m)
}

// New はキャッシュ付きストアを生成する。
func New(inner repository.SubscriptionStore, ttl time.Duration, m metrics.MetricsCollector) *Store {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Store{
		inner:       inner,
		ttl:         ttl,
		metrics:     m,
		now:         time.Now,
		entries:     make(map[string]entry),
		generations: make(map[string]uint64),
		inFlight:    make(map[string]*inFlightCall),
	}
}

func cloneAll(subs []*model.Subscription) []*model.Subscription {
	out := make([]*model.Subscription, len(subs))
	for i, s := range subs {
		out[i] = s.Clone()
	}
	return out
}

// ListByWorkspace はキャッシュが有効ならキャッシュから返す。
// 期限切れまたは未取得の場合は下位ストアから取得する。同一ワークスペースへの
// 同時の取得は1回にまとめる。
func (s *Store) ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.Subscription, error) {
	now := s.now()

	s.mu.Lock()
	if e, ok := s.entries[workspaceID]; ok && now.Before(e.expiresAt) {
		subs := cloneAll(e.subs)
		s.mu.Unlock()
		s.metrics.RecordCacheResult(true)
		return subs, nil
	}
	delete(s.entries, workspaceID)
	s.metrics.RecordCacheResult(false)

	call, waiting := s.inFlight[workspaceID]
	if !waiting {
		call = &inFlightCall{done: make(chan struct{})}
		s.inFlight[workspaceID] = call
		gen := s.generations[workspaceID]
		// 呼び出し元のキャンセルで待機中の他の呼び出しまで失敗させない
		go s.fetch(context.WithoutCancel(ctx), workspaceID, gen, call)
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-call.done:
		if call.err != nil {
			return nil, call.err
		}
		return cloneAll(call.subs), nil
	}
}

func (s *Store) fetch(ctx context.Context, workspaceID string, gen uint64, call *inFlightCall) {
	subs, err := s.inner.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		slog.Warn("cache refresh failed",
			slog.String("workspace_id", workspaceID),
			slog.String("error", err.Error()),
		)
	}

	fetchedAt := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	// 取得中に書き込みがあった場合は古い結果を保存しない
	if err == nil && s.generations[workspaceID] == gen {
		s.entries[workspaceID] = entry{subs: cloneAll(subs), expiresAt: fetchedAt.Add(s.ttl)}
		s.cleanupExpiredLocked(fetchedAt)
	}
	call.subs = subs
	call.err = err
	delete(s.inFlight, workspaceID)
	close(call.done)
}

func (s *Store) cleanupExpiredLocked(now time.Time) {
	interval := min(s.ttl, maxCleanupInterval)
	if !s.lastCleanup.IsZero() && now.Sub(s.lastCleanup) < interval {
		return
	}
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
	s.lastCleanup = now
}

// Invalidate はワークスペースのエントリを破棄する。
func (s *Store) Invalidate(workspaceID string) {
	s.mu.Lock()
	delete(s.entries, workspaceID)
	s.generations[workspaceID]++
	s.mu.Unlock()
}

// ListByShareToken は共有ビュー用のためキャッシュせず下位ストアに委譲する。
func (s *Store) ListByShareToken(ctx context.Context, token string) ([]*model.Subscription, error) {
	return s.inner.ListByShareToken(ctx, token)
}

// CreateInWorkspace は作成後にキャッシュを破棄する。
func (s *Store) CreateInWorkspace(ctx context.Context, workspaceID string, in model.NewSubscription) (*model.Subscription, error) {
	defer s.Invalidate(workspaceID)
	return s.inner.CreateInWorkspace(ctx, workspaceID, in)
}

// UpdateInWorkspace は更新後にキャッシュを破棄する。
func (s *Store) UpdateInWorkspace(ctx context.Context, workspaceID, id string, patch model.SubscriptionPatch) error {
	defer s.Invalidate(workspaceID)
	return s.inner.UpdateInWorkspace(ctx, workspaceID, id, patch)
}

// DeleteInWorkspace は削除後にキャッシュを破棄する。
func (s *Store) DeleteInWorkspace(ctx context.Context, workspaceID, id string) error {
	defer s.Invalidate(workspaceID)
	return s.inner.DeleteInWorkspace(ctx, workspaceID, id)
}
