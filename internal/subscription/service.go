// Package subscription はサブスクリプション管理のドメインロジックを提供する。
// 一覧取得時の自動更新、絞り込みと並び替え、集計、カレンダー表示を扱う。
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/subman/internal/metrics"
	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/repository"
)

// Sanitizer は利用者入力のテキストからマークアップを取り除くインターフェース。
type Sanitizer interface {
	SanitizeText(s string) string
}

// Enricher は作成入力にアイコンや色を補完するインターフェース。
// 補完に失敗しても作成は継続するため、エラーは返さない。
type Enricher interface {
	Enrich(ctx context.Context, in *model.NewSubscription)
}

// Options はServiceの任意の依存。nilのフィールドは無効として扱う。
type Options struct {
	Sanitizer Sanitizer
	Enricher  Enricher
	Metrics   metrics.MetricsCollector
	OnRefresh RefreshNotifier
	Now       func() time.Time
}

// Service はワークスペースにスコープされたサブスクリプションのサービス層。
// リクエストごとにrepository.ForWorkspaceで束縛したリポジトリから生成する。
type Service struct {
	repo       repository.SubscriptionRepository
	normalizer Normalizer
	sanitizer  Sanitizer
	enricher   Enricher
	metrics    metrics.MetricsCollector
	onRefresh  RefreshNotifier
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.SubscriptionRepository, normalizer Normalizer, opts Options) *Service {
	s := &Service{
		repo:       repo,
		normalizer: normalizer,
		sanitizer:  opts.Sanitizer,
		enricher:   opts.Enricher,
		metrics:    opts.Metrics,
		onRefresh:  opts.OnRefresh,
		now:        opts.Now,
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Now はサービスが基準とする現在時刻を返す。
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// Normalizer は金額換算に使うNormalizerを返す。
func (s *Service) Normalizer() Normalizer {
	return s.normalizer
}

// ListAll は自動更新を適用した全サブスクリプションを返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.Subscription, error) {
	subs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプション一覧の取得に失敗しました: %w", err)
	}
	result := Rollover(ctx, s.repo, subs, s.Now(), s.onRefresh)
	if result.Updated > 0 || result.Failed > 0 {
		s.metrics.RecordRollover(result.Updated, result.Failed)
	}
	return subs, nil
}

// List はラベルで絞り込み、指定の順序に並べたサブスクリプションを返す。
func (s *Service) List(ctx context.Context, labels []string, opt SortOption) ([]*model.Subscription, error) {
	subs, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return Sort(FilterByLabels(subs, labels), opt, s.normalizer), nil
}

func (s *Service) sanitize(v string) string {
	if s.sanitizer == nil {
		return v
	}
	return s.sanitizer.SanitizeText(v)
}

func (s *Service) sanitizeLabels(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = s.sanitize(l)
	}
	return out
}

// Create はサブスクリプションを作成する。
// テキスト項目の無害化、検証、アイコン補完の順に処理する。
func (s *Service) Create(ctx context.Context, in model.NewSubscription) (*model.Subscription, error) {
	in.Name = s.sanitize(in.Name)
	in.Comment = s.sanitize(in.Comment)
	in.Labels = s.sanitizeLabels(in.Labels)

	if apiErr := ValidateNew(in); apiErr != nil {
		return nil, apiErr
	}

	if s.enricher != nil {
		s.enricher.Enrich(ctx, &in)
	}

	sub, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの作成に失敗しました: %w", err)
	}
	return sub, nil
}

// Update はサブスクリプションを部分更新し、更新後の値を返す。
func (s *Service) Update(ctx context.Context, id string, patch model.SubscriptionPatch) (*model.Subscription, error) {
	if patch.Name != nil {
		v := s.sanitize(*patch.Name)
		patch.Name = &v
	}
	if patch.Comment != nil {
		v := s.sanitize(*patch.Comment)
		patch.Comment = &v
	}
	if patch.Labels != nil {
		v := s.sanitizeLabels(*patch.Labels)
		patch.Labels = &v
	}

	if apiErr := ValidatePatch(patch); apiErr != nil {
		return nil, apiErr
	}

	if err := s.repo.Update(ctx, id, patch); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewSubscriptionNotFoundError(id)
		}
		return nil, fmt.Errorf("サブスクリプションの更新に失敗しました: %w", err)
	}

	subs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("更新後のサブスクリプションの取得に失敗しました: %w", err)
	}
	for _, sub := range subs {
		if sub.ID == id {
			return sub, nil
		}
	}
	return nil, model.NewSubscriptionNotFoundError(id)
}

// Delete はサブスクリプションを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewSubscriptionNotFoundError(id)
		}
		return fmt.Errorf("サブスクリプションの削除に失敗しました: %w", err)
	}
	return nil
}

// Labels は使用中のラベルを重複なく昇順で返す。
func (s *Service) Labels(ctx context.Context) ([]string, error) {
	subs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ラベル一覧の取得に失敗しました: %w", err)
	}
	return UniqueLabels(subs), nil
}

// Stats はラベルで絞り込んだサブスクリプションの集計値を返す。選択が空の場合は全件が対象。
func (s *Service) Stats(ctx context.Context, labels []string) (Stats, error) {
	subs, err := s.ListAll(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(FilterByLabels(subs, labels), s.normalizer, s.Now()), nil
}

// Calendar は指定年月の支払予定を日付ごとに返す。
func (s *Service) Calendar(ctx context.Context, year int, month time.Month) (map[string][]PaymentEntry, error) {
	if year < 1970 || year > 9999 {
		return nil, model.NewInvalidCalendarPeriodError(fmt.Sprintf("year %d is out of range", year))
	}
	if month < time.January || month > time.December {
		return nil, model.NewInvalidCalendarPeriodError(fmt.Sprintf("month %d is out of range", int(month)))
	}
	subs, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return PaymentDatesForMonth(subs, year, month, s.Now()), nil
}
