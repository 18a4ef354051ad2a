// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は利用者が入力したテキストからマークアップを除去する。
// サービス名・コメント・ラベルはプレーンテキストとして扱うため、全てのタグを取り除く。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はbluemondayのStrictPolicyでTextSanitizerを生成する。
// Policyは生成後に変更しないため、複数のgoroutineから安全に利用できる。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はタグを除去し、前後の空白を取り除いたテキストを返す。
// StrictPolicyがエスケープした文字参照は元の文字に戻す（"AT&T"は"AT&T"のまま）。
func (s *TextSanitizer) SanitizeText(v string) string {
	if v == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
}
