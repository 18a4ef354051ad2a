package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/subman/internal/model"
)

// PostgresSubscriptionStore はPostgreSQLを使用したサブスクリプションストア。
type PostgresSubscriptionStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresSubscriptionStore はPostgresSubscriptionStoreを生成する。
func NewPostgresSubscriptionStore(db *sql.DB) *PostgresSubscriptionStore {
	return &PostgresSubscriptionStore{db: db, now: time.Now}
}

const subscriptionColumns = `id, workspace_id, name, amount, currency, frequency, next_payment, start_date,
	auto_renewal, labels, url, icon, comment, colors, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	sub := &model.Subscription{}
	var (
		frequency string
		startDate sql.NullTime
		colors    []byte
	)
	if err := row.Scan(
		&sub.ID, &sub.WorkspaceID, &sub.Name, &sub.Amount, &sub.Currency, &frequency, &sub.NextPayment, &startDate,
		&sub.AutoRenewal, pq.Array(&sub.Labels), &sub.URL, &sub.Icon, &sub.Comment, &colors, &sub.CreatedAt, &sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sub.Frequency = model.Frequency(frequency)
	sub.NextPayment = model.TruncateToDate(sub.NextPayment)
	if startDate.Valid {
		d := model.TruncateToDate(startDate.Time)
		sub.StartDate = &d
	}
	if len(colors) > 0 {
		if err := json.Unmarshal(colors, &sub.Colors); err != nil {
			return nil, fmt.Errorf("colorsの復元に失敗しました: %w", err)
		}
	}
	return sub, nil
}

func colorsValue(c model.Colors) (any, error) {
	if len(c) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func labelsValue(labels []string) any {
	if labels == nil {
		labels = []string{}
	}
	return pq.Array(labels)
}

func startDateValue(d *time.Time) any {
	if d == nil {
		return nil
	}
	return *d
}

// ListByWorkspace はワークスペースの全サブスクリプションを返す。
func (r *PostgresSubscriptionStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions WHERE workspace_id = $1 ORDER BY created_at ASC`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプション一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	subs := make([]*model.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("サブスクリプション行の読み取りに失敗しました: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("サブスクリプション一覧の走査に失敗しました: %w", err)
	}
	return subs, nil
}

// ListByShareToken は共有トークンに対応するワークスペースの全サブスクリプションを返す。
func (r *PostgresSubscriptionStore) ListByShareToken(ctx context.Context, token string) ([]*model.Subscription, error) {
	var workspaceID string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM workspaces WHERE share_token = $1`,
		token,
	).Scan(&workspaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("共有トークンによるワークスペースの検索に失敗しました: %w", err)
	}
	return r.ListByWorkspace(ctx, workspaceID)
}

// CreateInWorkspace はサブスクリプションを作成する。
// ワークスペースが未作成の場合は既定の名前で作成する。
func (r *PostgresSubscriptionStore) CreateInWorkspace(ctx context.Context, workspaceID string, in model.NewSubscription) (*model.Subscription, error) {
	now := r.now().UTC()
	sub := newSubscriptionFromInput(workspaceID, in, now)

	colors, err := colorsValue(sub.Colors)
	if err != nil {
		return nil, fmt.Errorf("colorsの変換に失敗しました: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, sort_option, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4) ON CONFLICT (id) DO NOTHING`,
		workspaceID, model.DefaultWorkspaceName, model.DefaultSortOption, now,
	); err != nil {
		return nil, fmt.Errorf("ワークスペースの初期化に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		sub.ID, sub.WorkspaceID, sub.Name, sub.Amount, sub.Currency, string(sub.Frequency), sub.NextPayment,
		startDateValue(sub.StartDate), sub.AutoRenewal, labelsValue(sub.Labels), sub.URL, sub.Icon, sub.Comment,
		colors, sub.CreatedAt, sub.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("サブスクリプションの作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return sub, nil
}

// UpdateInWorkspace はサブスクリプションを部分更新する。
// 行をロックして読み出し、パッチを適用して書き戻す。
func (r *PostgresSubscriptionStore) UpdateInWorkspace(ctx context.Context, workspaceID, id string, patch model.SubscriptionPatch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	sub, err := scanSubscription(tx.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions WHERE workspace_id = $1 AND id = $2 FOR UPDATE`,
		workspaceID, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}

	patch.Apply(sub)
	sub.UpdatedAt = r.now().UTC()

	colors, err := colorsValue(sub.Colors)
	if err != nil {
		return fmt.Errorf("colorsの変換に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET
			name = $3, amount = $4, currency = $5, frequency = $6, next_payment = $7, start_date = $8,
			auto_renewal = $9, labels = $10, url = $11, icon = $12, comment = $13, colors = $14, updated_at = $15
		 WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id, sub.Name, sub.Amount, sub.Currency, string(sub.Frequency), sub.NextPayment,
		startDateValue(sub.StartDate), sub.AutoRenewal, labelsValue(sub.Labels), sub.URL, sub.Icon, sub.Comment,
		colors, sub.UpdatedAt,
	); err != nil {
		return fmt.Errorf("サブスクリプションの更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// DeleteInWorkspace はサブスクリプションを削除する。
func (r *PostgresSubscriptionStore) DeleteInWorkspace(ctx context.Context, workspaceID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプションの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// newSubscriptionFromInput は作成入力から保存用のサブスクリプションを組み立てる。
func newSubscriptionFromInput(workspaceID string, in model.NewSubscription, now time.Time) *model.Subscription {
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	autoRenewal := true
	if in.AutoRenewal != nil {
		autoRenewal = *in.AutoRenewal
	}
	sub := &model.Subscription{
		ID:          id,
		WorkspaceID: workspaceID,
		Name:        in.Name,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Frequency:   in.Frequency,
		NextPayment: model.TruncateToDate(in.NextPayment),
		AutoRenewal: autoRenewal,
		Labels:      model.NormalizeLabels(in.Labels),
		URL:         in.URL,
		Icon:        in.Icon,
		Comment:     in.Comment,
		Colors:      in.Colors,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.StartDate != nil {
		d := model.TruncateToDate(*in.StartDate)
		sub.StartDate = &d
	}
	return sub
}

// compile-time interface check
var _ SubscriptionStore = (*PostgresSubscriptionStore)(nil)
