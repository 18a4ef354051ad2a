// Package workspace はワークスペースと共有リンクのドメインロジックを提供する。
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/repository"
	"github.com/hitoshi/subman/internal/subscription"
)

const msgNameRequired = "Workspace name is required"

// SharedView は共有リンクから参照する読み取り専用のビュー。
type SharedView struct {
	Name          string
	SortOption    subscription.SortOption
	Subscriptions []*model.Subscription
}

// Service はワークスペース管理のサービス層。
type Service struct {
	workspaces repository.WorkspaceRepository
	store      repository.SubscriptionStore
	baseURL    string
}

// NewService はServiceの新しいインスタンスを生成する。
// baseURLは共有リンクの生成に使用する。
func NewService(workspaces repository.WorkspaceRepository, store repository.SubscriptionStore, baseURL string) *Service {
	return &Service{
		workspaces: workspaces,
		store:      store,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// ParseID はワークスペースIDがUUID形式であることを検証して正規化した値を返す。
func ParseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", model.NewInvalidWorkspaceIDError(id)
	}
	return parsed.String(), nil
}

// Init はワークスペースを初期化する。idが空の場合は新しいUUIDを採番し、
// nameが空の場合は既定の名前を使う。既に存在する場合はそのまま返す。
func (s *Service) Init(ctx context.Context, id, name string) (*model.Workspace, error) {
	if id == "" {
		id = uuid.NewString()
	} else {
		parsed, err := ParseID(id)
		if err != nil {
			return nil, err
		}
		id = parsed
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = model.DefaultWorkspaceName
	}

	now := time.Now().UTC()
	ws := &model.Workspace{
		ID:         id,
		Name:       name,
		SortOption: model.DefaultSortOption,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.workspaces.Create(ctx, ws); err != nil {
		return nil, fmt.Errorf("ワークスペースの作成に失敗しました: %w", err)
	}

	created, err := s.workspaces.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ワークスペースの取得に失敗しました: %w", err)
	}
	if created == nil {
		return nil, model.NewWorkspaceNotFoundError(id)
	}
	slog.Info("workspace initialized", slog.String("workspace_id", id))
	return created, nil
}

// Get はワークスペースを取得する。存在しない場合はNotFoundエラーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Workspace, error) {
	ws, err := s.workspaces.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ワークスペースの取得に失敗しました: %w", err)
	}
	if ws == nil {
		return nil, model.NewWorkspaceNotFoundError(id)
	}
	return ws, nil
}

// Exists はワークスペースが存在するかを返す。
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	ws, err := s.workspaces.FindByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("ワークスペースの取得に失敗しました: %w", err)
	}
	return ws != nil, nil
}

func mapNotFound(err error, id, msg string) error {
	if errors.Is(err, model.ErrNotFound) {
		return model.NewWorkspaceNotFoundError(id)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Rename はワークスペース名を変更する。
func (s *Service) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.NewValidationError([]model.FieldError{{Field: "name", Message: msgNameRequired}})
	}
	if err := s.workspaces.UpdateName(ctx, id, name); err != nil {
		return mapNotFound(err, id, "ワークスペース名の更新に失敗しました")
	}
	return nil
}

// SortPreference は保存された並び順を返す。ワークスペースが無い場合や
// 保存値が解析できない場合は既定の並び順を返す。
func (s *Service) SortPreference(ctx context.Context, id string) (subscription.SortOption, error) {
	ws, err := s.workspaces.FindByID(ctx, id)
	if err != nil {
		return subscription.SortOption{}, fmt.Errorf("ワークスペースの取得に失敗しました: %w", err)
	}
	if ws == nil {
		return subscription.DefaultSort, nil
	}
	opt, err := subscription.ParseSortOption(ws.SortOption)
	if err != nil {
		return subscription.DefaultSort, nil
	}
	return opt, nil
}

// SetSortPreference は並び順を検証して保存する。
func (s *Service) SetSortPreference(ctx context.Context, id, sort string) (subscription.SortOption, error) {
	opt, err := subscription.ParseSortOption(sort)
	if err != nil {
		return subscription.SortOption{}, err
	}
	if err := s.workspaces.UpdateSortOption(ctx, id, opt.String()); err != nil {
		return subscription.SortOption{}, mapNotFound(err, id, "並び順の保存に失敗しました")
	}
	return opt, nil
}

// GenerateSharingLink は共有トークンと共有リンクを返す。
// 既にトークンが発行されている場合は再利用する。
func (s *Service) GenerateSharingLink(ctx context.Context, id string) (token, link string, err error) {
	ws, err := s.Get(ctx, id)
	if err != nil {
		return "", "", err
	}
	token = ws.ShareToken
	if token == "" {
		token = uuid.NewString()
		if err := s.workspaces.SetShareToken(ctx, id, token); err != nil {
			return "", "", mapNotFound(err, id, "共有トークンの保存に失敗しました")
		}
		slog.Info("sharing token issued", slog.String("workspace_id", id))
	}
	return token, s.ShareLink(token), nil
}

// ShareLink は共有トークンから閲覧用のURLを組み立てる。
func (s *Service) ShareLink(token string) string {
	return s.baseURL + "/share/" + token
}

// Shared は共有トークンに対応するワークスペースのサブスクリプションを返す。
// 自動更新は行わず保存されている値をそのまま返す。
func (s *Service) Shared(ctx context.Context, token string) (*SharedView, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, model.NewShareNotFoundError()
	}
	ws, err := s.workspaces.FindByShareToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("共有ワークスペースの取得に失敗しました: %w", err)
	}
	if ws == nil {
		return nil, model.NewShareNotFoundError()
	}

	subs, err := s.store.ListByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewShareNotFoundError()
		}
		return nil, fmt.Errorf("共有サブスクリプションの取得に失敗しました: %w", err)
	}

	opt, err := subscription.ParseSortOption(ws.SortOption)
	if err != nil {
		opt = subscription.DefaultSort
	}
	return &SharedView{Name: ws.Name, SortOption: opt, Subscriptions: subs}, nil
}
