// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultWorkspaceName はワークスペース作成時に名前が指定されなかった場合の名前。
const DefaultWorkspaceName = "My Subscriptions"

// DefaultSortOption は並び順の初期値。
const DefaultSortOption = "nextPayment-asc"

// Workspace はサブスクリプションの集合を分離する単位。
// 認証は行わず、推測困難なIDそのものがアクセスキーとなる。
type Workspace struct {
	ID         string
	Name       string
	ShareToken string // 空の場合は共有リンク未発行
	SortOption string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ImportResult はインポート1回分の結果。永続化はしない。
type ImportResult struct {
	Success    bool     `json:"success"`
	Imported   int      `json:"imported"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors"`
	Duplicates []string `json:"duplicates"`
}
