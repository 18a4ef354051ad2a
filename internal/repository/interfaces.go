// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/subman/internal/model"
)

// SubscriptionRepository はワークスペースにスコープされたサブスクリプションの永続化インターフェース。
// コアロジック（subscriptionパッケージ、transferパッケージ）はこのインターフェースのみに依存する。
type SubscriptionRepository interface {
	// ListAll はスコープ内の全サブスクリプションを返す。順序は保証しない。
	ListAll(ctx context.Context) ([]*model.Subscription, error)

	// Create はサブスクリプションを作成する。
	// 入力にIDが無い場合はUUIDを採番し、CreatedAt/UpdatedAtを設定する。
	// AutoRenewalがnilの場合はtrueとする。
	Create(ctx context.Context, in model.NewSubscription) (*model.Subscription, error)

	// Update は指定IDのサブスクリプションを部分更新する。
	// 見つからない場合はmodel.ErrNotFoundを返す。
	Update(ctx context.Context, id string, patch model.SubscriptionPatch) error

	// Delete は指定IDのサブスクリプションを削除する。
	// 見つからない場合はmodel.ErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// SubscriptionStore はワークスペースIDをキーとするバックエンドの永続化インターフェース。
// ForWorkspaceでSubscriptionRepositoryに変換して利用する。
type SubscriptionStore interface {
	// ListByWorkspace はワークスペースの全サブスクリプションを返す。
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.Subscription, error)

	// ListByShareToken は共有トークンに対応するワークスペースの全サブスクリプションを返す。
	// トークンに対応するワークスペースが無い場合はmodel.ErrNotFoundを返す。
	ListByShareToken(ctx context.Context, token string) ([]*model.Subscription, error)

	// CreateInWorkspace はワークスペースにサブスクリプションを作成する。
	CreateInWorkspace(ctx context.Context, workspaceID string, in model.NewSubscription) (*model.Subscription, error)

	// UpdateInWorkspace はワークスペース内のサブスクリプションを部分更新する。
	UpdateInWorkspace(ctx context.Context, workspaceID, id string, patch model.SubscriptionPatch) error

	// DeleteInWorkspace はワークスペース内のサブスクリプションを削除する。
	DeleteInWorkspace(ctx context.Context, workspaceID, id string) error
}

// WorkspaceRepository はワークスペースの永続化インターフェース。
type WorkspaceRepository interface {
	// FindByID は指定IDのワークスペースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Workspace, error)

	// FindByShareToken は共有トークンでワークスペースを検索する。見つからない場合はnilを返す。
	FindByShareToken(ctx context.Context, token string) (*model.Workspace, error)

	// Create はワークスペースを作成する。同じIDが既に存在する場合は何もしない。
	Create(ctx context.Context, ws *model.Workspace) error

	// UpdateName はワークスペース名を更新する。
	UpdateName(ctx context.Context, id, name string) error

	// SetShareToken は共有トークンを設定する。
	SetShareToken(ctx context.Context, id, token string) error

	// UpdateSortOption は並び順の設定を保存する。
	UpdateSortOption(ctx context.Context, id, sortOption string) error
}

// Pinger は疎通確認用のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}
