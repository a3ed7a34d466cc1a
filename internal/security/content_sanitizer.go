// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer はフィード記事のHTMLコンテンツをサニタイズし、
// XSS攻撃などのセキュリティリスクから下流の利用者を保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はHTMLコンテンツのサニタイズ機能を提供する。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 記事本文で一般的なタグ（見出し、段落、リスト、表、整形済みテキスト等）を許可
//   - script, iframe, style および全てのon*イベント属性を除去
//   - imgのsrc属性: http/httpsスキームを許可
//   - 相対URLを許可（リンクの書き換えはパーサー側が記事のベースURLに対して行う）
//   - 数式マークアップ検出のためcode/preタグとclass属性を保持
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "div", "span",
		"ul", "ol", "li", "dl", "dt", "dd",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i", "u", "s", "sub", "sup",
		"table", "thead", "tbody", "tr", "th", "td",
		"figure", "figcaption",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowAttrs("class").OnElements("code", "pre", "span", "div")

	// リンク書き換えをパーサーが行うため相対URLを通す
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https")
	p.RequireNoReferrerOnLinks(true)

	return &ContentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
// 空文字列の入力には空文字列を返す。
// 同一入力に対して常に同一出力を返す（冪等）。
func (s *ContentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
