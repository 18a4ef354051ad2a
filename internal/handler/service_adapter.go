package handler

import (
	"context"
	"time"

	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/repository"
	"github.com/hitoshi/subman/internal/subscription"
	"github.com/hitoshi/subman/internal/transfer"
	"github.com/hitoshi/subman/internal/workspace"
)

// Normalizer は金額換算と基準通貨コードを提供するインターフェース。
type Normalizer interface {
	subscription.Normalizer
	Reference() string
}

// SortPreferenceProvider はワークスペースに保存された並び順を返すインターフェース。
type SortPreferenceProvider interface {
	SortPreference(ctx context.Context, id string) (subscription.SortOption, error)
}

// SubscriptionServiceAdapter はリクエストごとにワークスペースへ束縛した subscription.Service を生成し、
// SubscriptionServiceInterface に適合させるアダプタ。
type SubscriptionServiceAdapter struct {
	store      repository.SubscriptionStore
	prefs      SortPreferenceProvider
	normalizer Normalizer
	opts       subscription.Options
}

// NewSubscriptionServiceAdapter はSubscriptionServiceAdapterを生成する。
// storeにはキャッシュでラップしたストアを渡す。
func NewSubscriptionServiceAdapter(store repository.SubscriptionStore, prefs SortPreferenceProvider, normalizer Normalizer, opts subscription.Options) *SubscriptionServiceAdapter {
	return &SubscriptionServiceAdapter{
		store:      store,
		prefs:      prefs,
		normalizer: normalizer,
		opts:       opts,
	}
}

func (a *SubscriptionServiceAdapter) serviceFor(workspaceID string) *subscription.Service {
	return subscription.NewService(repository.ForWorkspace(a.store, workspaceID), a.normalizer, a.opts)
}

// List はサブスクリプション一覧をhandlerレスポンス型で返す。
func (a *SubscriptionServiceAdapter) List(ctx context.Context, workspaceID string, labels []string, sort string) ([]subscriptionResponse, error) {
	var opt subscription.SortOption
	var err error
	if sort == "" {
		opt, err = a.prefs.SortPreference(ctx, workspaceID)
	} else {
		opt, err = subscription.ParseSortOption(sort)
	}
	if err != nil {
		return nil, err
	}

	svc := a.serviceFor(workspaceID)
	subs, err := svc.List(ctx, labels, opt)
	if err != nil {
		return nil, err
	}
	return toSubscriptionResponses(subs, a.normalizer, svc.Now()), nil
}

// Create はサブスクリプションを作成しhandlerレスポンス型で返す。
func (a *SubscriptionServiceAdapter) Create(ctx context.Context, workspaceID string, in model.NewSubscription) (*subscriptionResponse, error) {
	svc := a.serviceFor(workspaceID)
	sub, err := svc.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	resp := toSubscriptionResponse(sub, a.normalizer, svc.Now())
	return &resp, nil
}

// Update はサブスクリプションを部分更新しhandlerレスポンス型で返す。
func (a *SubscriptionServiceAdapter) Update(ctx context.Context, workspaceID, id string, patch model.SubscriptionPatch) (*subscriptionResponse, error) {
	svc := a.serviceFor(workspaceID)
	sub, err := svc.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	resp := toSubscriptionResponse(sub, a.normalizer, svc.Now())
	return &resp, nil
}

// Delete はサブスクリプションを削除する。
func (a *SubscriptionServiceAdapter) Delete(ctx context.Context, workspaceID, id string) error {
	return a.serviceFor(workspaceID).Delete(ctx, id)
}

// Stats は集計値をhandlerレスポンス型で返す。
func (a *SubscriptionServiceAdapter) Stats(ctx context.Context, workspaceID string, labels []string) (*statsResponse, error) {
	st, err := a.serviceFor(workspaceID).Stats(ctx, labels)
	if err != nil {
		return nil, err
	}
	resp := toStatsResponse(st, a.normalizer.Reference())
	return &resp, nil
}

// Labels は使用中のラベル一覧を返す。
func (a *SubscriptionServiceAdapter) Labels(ctx context.Context, workspaceID string) ([]string, error) {
	return a.serviceFor(workspaceID).Labels(ctx)
}

// Calendar は指定年月の支払予定をhandlerレスポンス型で返す。
func (a *SubscriptionServiceAdapter) Calendar(ctx context.Context, workspaceID string, year int, month time.Month) (*calendarResponse, error) {
	days, err := a.serviceFor(workspaceID).Calendar(ctx, year, month)
	if err != nil {
		return nil, err
	}
	resp := toCalendarResponse(year, month, days)
	return &resp, nil
}

// TransferServiceAdapter は transfer パッケージを TransferServiceInterface に適合させるアダプタ。
type TransferServiceAdapter struct {
	store      repository.SubscriptionStore
	importer   *transfer.Importer
	normalizer Normalizer
	opts       subscription.Options
	loc        *time.Location
}

// NewTransferServiceAdapter はTransferServiceAdapterを生成する。
// locはxlsxの作成・更新日時の表示に使うタイムゾーン。nilの場合はUTC。
func NewTransferServiceAdapter(store repository.SubscriptionStore, importer *transfer.Importer, normalizer Normalizer, opts subscription.Options, loc *time.Location) *TransferServiceAdapter {
	if loc == nil {
		loc = time.UTC
	}
	return &TransferServiceAdapter{
		store:      store,
		importer:   importer,
		normalizer: normalizer,
		opts:       opts,
		loc:        loc,
	}
}

// listForExport は自動更新を適用した全件を既定の並び順で返す。
func (a *TransferServiceAdapter) listForExport(ctx context.Context, workspaceID string) ([]*model.Subscription, error) {
	svc := subscription.NewService(repository.ForWorkspace(a.store, workspaceID), a.normalizer, a.opts)
	return svc.List(ctx, nil, subscription.DefaultSort)
}

// ExportJSON は全件をJSONで返す。
func (a *TransferServiceAdapter) ExportJSON(ctx context.Context, workspaceID string) ([]byte, error) {
	subs, err := a.listForExport(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return transfer.ExportJSON(subs)
}

// ExportTable は全件をxlsxで返す。
func (a *TransferServiceAdapter) ExportTable(ctx context.Context, workspaceID string) ([]byte, error) {
	subs, err := a.listForExport(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return transfer.ExportTable(subs, a.normalizer, a.loc)
}

// Import はJSONを取り込みワークスペースに登録する。
func (a *TransferServiceAdapter) Import(ctx context.Context, workspaceID string, raw []byte) (*model.ImportResult, error) {
	return a.importer.Import(ctx, raw, repository.ForWorkspace(a.store, workspaceID)), nil
}

// ShareServiceAdapter は workspace.Service の共有ビューを ShareServiceInterface に適合させるアダプタ。
type ShareServiceAdapter struct {
	workspaces *workspace.Service
	normalizer Normalizer
	now        func() time.Time
}

// NewShareServiceAdapter はShareServiceAdapterを生成する。
func NewShareServiceAdapter(workspaces *workspace.Service, normalizer Normalizer, now func() time.Time) *ShareServiceAdapter {
	if now == nil {
		now = time.Now
	}
	return &ShareServiceAdapter{workspaces: workspaces, normalizer: normalizer, now: now}
}

// SharedList は共有ビューを保存された並び順で返す。
func (a *ShareServiceAdapter) SharedList(ctx context.Context, token string) (*sharedListResponse, error) {
	view, err := a.workspaces.Shared(ctx, token)
	if err != nil {
		return nil, err
	}
	subs := subscription.Sort(view.Subscriptions, view.SortOption, a.normalizer)
	return &sharedListResponse{
		Name:          view.Name,
		SortOption:    view.SortOption.String(),
		Subscriptions: toSubscriptionResponses(subs, a.normalizer, a.now().UTC()),
	}, nil
}

// SharedStats は共有ビューの集計値を返す。
func (a *ShareServiceAdapter) SharedStats(ctx context.Context, token string) (*statsResponse, error) {
	view, err := a.workspaces.Shared(ctx, token)
	if err != nil {
		return nil, err
	}
	resp := toStatsResponse(subscription.ComputeStats(view.Subscriptions, a.normalizer, a.now().UTC()), a.normalizer.Reference())
	return &resp, nil
}

// --- compile-time interface checks ---

var _ SubscriptionServiceInterface = (*SubscriptionServiceAdapter)(nil)
var _ TransferServiceInterface = (*TransferServiceAdapter)(nil)
var _ ShareServiceInterface = (*ShareServiceAdapter)(nil)
var _ WorkspaceServiceInterface = (*workspace.Service)(nil)
var _ SortPreferenceProvider = (*workspace.Service)(nil)
