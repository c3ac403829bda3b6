// Package security はユーザー入力のサニタイズ機能を提供する。
//
// コース説明とレッスン本文はインストラクターが書いたHTMLを含みうるため、
// 保存前に許可リストベースのポリシーで安全なタグと属性のみを残す。
package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Sanitizer はリッチテキストのサニタイズ機能のインターフェース。
type Sanitizer interface {
	// Sanitize はHTMLを安全なHTMLに変換する。
	// テキスト中の&や引用符は入力のまま残し、前後の空白は除去する。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// contentSanitizer はSanitizerのbluemonday実装。
// bluemonday.Policyは構築後はスレッドセーフに使える。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は教材向けのポリシーでSanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, h1-h4, ul, ol, li, blockquote, pre, code, strong, em
//   - aタグ: 絶対URLのhrefのみ、target="_blank"とrel="noopener noreferrer"を付与
//   - imgタグ: httpsのsrcとaltのみ
//   - script, iframe, styleと全てのon*属性は除去
func NewContentSanitizer() Sanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "h1", "h2", "h3", "h4",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})

	return &contentSanitizer{policy: p}
}

// Sanitize はHTMLを安全なHTMLに変換する。
func (s *contentSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(restoreText(s.policy.Sanitize(raw)))
}

// textEscaper はテキストノードでタグとして解釈されうる文字のみをエスケープする。
var textEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// restoreText はポリシー出力のテキストノードに含まれる文字参照を元の文字に戻す。
// タグと属性値はポリシー出力のまま書き出す。
func restoreText(sanitized string) string {
	var b strings.Builder
	b.Grow(len(sanitized))

	z := html.NewTokenizer(strings.NewReader(sanitized))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.WriteString(textEscaper.Replace(string(z.Text())))
		default:
			b.Write(z.Raw())
		}
	}
}
