// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound はリポジトリ層で対象レコードが存在しない場合に返すセンチネルエラー。
// サービス層でerrors.Isにより判定し、APIErrorに変換する。
var ErrNotFound = errors.New("record not found")

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string       // エラーコード
	Message  string       // エラーメッセージ
	Category string       // カテゴリ: validation, subscription, workspace, system
	Action   string       // ユーザー向け対処方法
	Fields   []FieldError // フィールド単位のバリデーションエラー（任意）
}

// FieldError はフィールド単位のバリデーションエラー。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed      = "VALIDATION_FAILED"
	ErrCodeSubscriptionNotFound  = "SUBSCRIPTION_NOT_FOUND"
	ErrCodeWorkspaceNotFound     = "WORKSPACE_NOT_FOUND"
	ErrCodeShareNotFound         = "SHARE_NOT_FOUND"
	ErrCodeInvalidWorkspaceID    = "INVALID_WORKSPACE_ID"
	ErrCodeInvalidSort           = "INVALID_SORT"
	ErrCodeInvalidCalendarPeriod = "INVALID_CALENDAR_PERIOD"
)

// NewValidationError はフィールド単位のバリデーションエラーをまとめたエラーを生成する。
func NewValidationError(fields []FieldError) *APIError {
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f.Message
	}
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  strings.Join(msgs, "; "),
		Category: "validation",
		Action:   "Correct the highlighted fields and submit again.",
		Fields:   fields,
	}
}

// NewSubscriptionNotFoundError はサブスクリプションが見つからない場合のエラーを生成する。
func NewSubscriptionNotFoundError(subscriptionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionNotFound,
		Message:  fmt.Sprintf("subscription not found: %s", subscriptionID),
		Category: "subscription",
		Action:   "Reload the list; the subscription may have been deleted on another device.",
	}
}

// NewWorkspaceNotFoundError はワークスペースが見つからない場合のエラーを生成する。
func NewWorkspaceNotFoundError(workspaceID string) *APIError {
	return &APIError{
		Code:     ErrCodeWorkspaceNotFound,
		Message:  fmt.Sprintf("workspace not found: %s", workspaceID),
		Category: "workspace",
		Action:   "Check the workspace link or create a new workspace.",
	}
}

// NewShareNotFoundError は共有トークンに対応するワークスペースが無い場合のエラーを生成する。
func NewShareNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeShareNotFound,
		Message:  "shared list not found",
		Category: "workspace",
		Action:   "Ask the owner for a new sharing link.",
	}
}

// NewInvalidWorkspaceIDError はワークスペースIDの形式が不正な場合のエラーを生成する。
func NewInvalidWorkspaceIDError(workspaceID string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWorkspaceID,
		Message:  fmt.Sprintf("invalid workspace id: %s", workspaceID),
		Category: "validation",
		Action:   "Workspace ids are UUIDs; check the link.",
	}
}

// NewInvalidSortError は無効な並び順指定のエラーを生成する。
func NewInvalidSortError(sort string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSort,
		Message:  fmt.Sprintf("invalid sort option: %s", sort),
		Category: "validation",
		Action:   "Use one of nextPayment, name or amount followed by -asc or -desc.",
	}
}

// NewInvalidCalendarPeriodError はカレンダーの年月指定が不正な場合のエラーを生成する。
func NewInvalidCalendarPeriodError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCalendarPeriod,
		Message:  fmt.Sprintf("invalid calendar period: %s", reason),
		Category: "validation",
		Action:   "Pass year as YYYY and month as 1-12.",
	}
}
