// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は投稿本文をプレーンテキストとしてサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// 投稿はHTMLを含まない短文テキストであるため、bluemondayのStrictPolicyで
// すべてのタグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は投稿本文のサニタイズ機能のインターフェースを定義する。
// 投稿の保存前（バリデーションの前）に使用される。
type ContentSanitizerService interface {
	// Sanitize は本文からすべてのHTMLタグを除去したプレーンテキストを返す。
	// タグ除去後のHTMLエンティティは元の文字に戻す（"a < b" のような
	// 通常のテキストが変形されないようにするため）。
	// 改行コードはLFに統一し、前後の空白は除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(content string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべてのタグと属性を除去し、テキストノードのみを残す。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は本文からすべてのHTMLタグを除去したプレーンテキストを返す。
func (s *contentSanitizer) Sanitize(content string) string {
	if content == "" {
		return ""
	}

	stripped := s.policy.Sanitize(content)

	// StrictPolicyは残存テキストをエンティティ参照にエスケープするため、
	// プレーンテキストとして保存できるよう元の文字へ戻す。
	// 表示時のエスケープはフロントエンドの責務。
	text := html.UnescapeString(stripped)

	// 改行コードをLFに統一し、タグ除去で生じがちな前後の空白を除去する。
	// 文字数バリデーションの前に行うことで、空白だけの本文が空として扱われる。
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
