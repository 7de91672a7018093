// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は投稿本文とコメントを保存前に無害化する。
// 投稿本文はリッチテキストエディタが出力するHTMLを許可リストで絞り込み、
// コメントはタグを除去したプレーンテキストとして扱う。
package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー入力の無害化機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// SanitizePost は投稿本文のHTMLを許可リストに従って無害化する。
	// script, iframe, styleタグおよびon*イベント属性は除去される。
	// 同一入力に対して常に同一出力を返す。
	SanitizePost(rawHTML string) string

	// SanitizeComment はコメントからすべてのタグを除去し、プレーンテキストを返す。
	SanitizeComment(text string) string
}

// editorClassPattern はエディタが付与するクラス名（ql-align-center等）に一致する。
var editorClassPattern = regexp.MustCompile(`^(ql-[a-z0-9-]+\s*)+$`)

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーは生成後に変更しないため並行利用できる。
type contentSanitizer struct {
	post    *bluemonday.Policy
	comment *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		post:    newPostPolicy(),
		comment: bluemonday.StrictPolicy(),
	}
}

// newPostPolicy は投稿本文用のポリシーを構築する。
//   - 許可タグ: 見出し、段落、強調、リスト、引用、コード、リンク、画像
//   - aタグ: http/httpsのみ、target="_blank"とrel="noopener noreferrer"を付与
//   - imgタグ: src属性はhttp/httpsのみ
func newPostPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "h1", "h2", "h3", "h4", "h5", "h6",
		"strong", "em", "u", "s",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
	)
	p.AllowAttrs("class").Matching(editorClassPattern).Globally()

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")

	return p
}

// SanitizePost は投稿本文のHTMLを無害化する。
func (s *contentSanitizer) SanitizePost(rawHTML string) string {
	return s.post.Sanitize(rawHTML)
}

// SanitizeComment はタグを除去したプレーンテキストを返す。
// 入力中の文字参照は文字列のまま残し、タグとして復元しない。
// 表示側で必ずテキストとしてエスケープされる前提。
func (s *contentSanitizer) SanitizeComment(text string) string {
	// '&' を先に参照化し、パーサーに入力中の文字参照を展開させない
	protected := strings.ReplaceAll(text, "&", "&amp;")
	return strings.TrimSpace(html.UnescapeString(s.comment.Sanitize(protected)))
}
