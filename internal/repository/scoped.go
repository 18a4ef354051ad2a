package repository

import (
	"context"

	"github.com/hitoshi/subman/internal/model"
)

// scopedSubscriptionRepo はSubscriptionStoreを1つのワークスペースに束縛したアダプタ。
type scopedSubscriptionRepo struct {
	store       SubscriptionStore
	workspaceID string
}

// ForWorkspace はstoreをworkspaceIDに束縛したSubscriptionRepositoryを返す。
// グローバルな状態は持たず、リクエストごとに生成して注入する。
func ForWorkspace(store SubscriptionStore, workspaceID string) SubscriptionRepository {
	return &scopedSubscriptionRepo{store: store, workspaceID: workspaceID}
}

func (r *scopedSubscriptionRepo) ListAll(ctx context.Context) ([]*model.Subscription, error) {
	return r.store.ListByWorkspace(ctx, r.workspaceID)
}

func (r *scopedSubscriptionRepo) Create(ctx context.Context, in model.NewSubscription) (*model.Subscription, error) {
	return r.store.CreateInWorkspace(ctx, r.workspaceID, in)
}

func (r *scopedSubscriptionRepo) Update(ctx context.Context, id string, patch model.SubscriptionPatch) error {
	return r.store.UpdateInWorkspace(ctx, r.workspaceID, id, patch)
}

func (r *scopedSubscriptionRepo) Delete(ctx context.Context, id string) error {
	return r.store.DeleteInWorkspace(ctx, r.workspaceID, id)
}

var _ SubscriptionRepository = (*scopedSubscriptionRepo)(nil)
