// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は記録名などクライアントが表示する文字列に
// HTMLマークアップが含まれていないかを判定する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は文字列サニタイズのインターフェースを定義する。
type ContentSanitizerService interface {
	// SanitizeText は全てのHTMLタグを除去した平文を返す。
	// script, styleなどの要素は中身ごと除去される。
	// エンティティはエスケープを戻し、前後の空白を取り除く。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string

	// IsPlainText はrawにタグが含まれていない場合にtrueを返す。
	// "&" や "a < b" のようにタグとして解釈されない記号は平文として扱う。
	IsPlainText(raw string) bool
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフなため共有してよい。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// タグを一切許可しないStrictPolicyを使う。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は全てのHTMLタグを除去した平文を返す。
func (s *contentSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	// bluemondayは出力をHTMLエスケープするため、平文として扱う前に戻す
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// IsPlainText はStrictPolicyを通しても文字が失われない場合にtrueを返す。
// エスケープ表現の差は比較前に戻すため、エンティティを含む文字列も平文とみなす。
func (s *contentSanitizer) IsPlainText(raw string) bool {
	if raw == "" {
		return true
	}
	return html.UnescapeString(s.policy.Sanitize(raw)) == html.UnescapeString(raw)
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
