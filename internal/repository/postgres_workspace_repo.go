package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/subman/internal/model"
)

// PostgresWorkspaceRepo はPostgreSQLを使用したワークスペースリポジトリ。
type PostgresWorkspaceRepo struct {
	db *sql.DB
}

// NewPostgresWorkspaceRepo はPostgresWorkspaceRepoを生成する。
func NewPostgresWorkspaceRepo(db *sql.DB) *PostgresWorkspaceRepo {
	return &PostgresWorkspaceRepo{db: db}
}

func (r *PostgresWorkspaceRepo) findOne(ctx context.Context, where string, arg any) (*model.Workspace, error) {
	ws := &model.Workspace{}
	var token sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, share_token, sort_option, created_at, updated_at
		 FROM workspaces WHERE `+where+` = $1`,
		arg,
	).Scan(&ws.ID, &ws.Name, &token, &ws.SortOption, &ws.CreatedAt, &ws.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ws.ShareToken = token.String
	return ws, nil
}

// FindByID は指定IDのワークスペースを取得する。見つからない場合はnilを返す。
func (r *PostgresWorkspaceRepo) FindByID(ctx context.Context, id string) (*model.Workspace, error) {
	ws, err := r.findOne(ctx, "id", id)
	if err != nil {
		return nil, fmt.Errorf("ワークスペースの取得に失敗しました: %w", err)
	}
	return ws, nil
}

// FindByShareToken は共有トークンでワークスペースを検索する。見つからない場合はnilを返す。
func (r *PostgresWorkspaceRepo) FindByShareToken(ctx context.Context, token string) (*model.Workspace, error) {
	ws, err := r.findOne(ctx, "share_token", token)
	if err != nil {
		return nil, fmt.Errorf("共有トークンによるワークスペースの検索に失敗しました: %w", err)
	}
	return ws, nil
}

// Create はワークスペースを作成する。同じIDが既に存在する場合は何もしない。
func (r *PostgresWorkspaceRepo) Create(ctx context.Context, ws *model.Workspace) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, sort_option, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
		ws.ID, ws.Name, ws.SortOption, ws.CreatedAt, ws.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ワークスペースの作成に失敗しました: %w", err)
	}
	return nil
}

func (r *PostgresWorkspaceRepo) updateColumn(ctx context.Context, column, id string, value any) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE workspaces SET `+column+` = $2, updated_at = NOW() WHERE id = $1`,
		id, value,
	)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// UpdateName はワークスペース名を更新する。
func (r *PostgresWorkspaceRepo) UpdateName(ctx context.Context, id, name string) error {
	if err := r.updateColumn(ctx, "name", id, name); err != nil {
		return fmt.Errorf("ワークスペース名の更新に失敗しました: %w", err)
	}
	return nil
}

// SetShareToken は共有トークンを設定する。
func (r *PostgresWorkspaceRepo) SetShareToken(ctx context.Context, id, token string) error {
	if err := r.updateColumn(ctx, "share_token", id, token); err != nil {
		return fmt.Errorf("共有トークンの設定に失敗しました: %w", err)
	}
	return nil
}

// UpdateSortOption は並び順の設定を保存する。
func (r *PostgresWorkspaceRepo) UpdateSortOption(ctx context.Context, id, sortOption string) error {
	if err := r.updateColumn(ctx, "sort_option", id, sortOption); err != nil {
		return fmt.Errorf("並び順の保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ WorkspaceRepository = (*PostgresWorkspaceRepo)(nil)
