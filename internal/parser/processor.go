package parser

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLToText はHTMLをプレーンテキストに変換する。
// script/styleの中身は捨て、テキストノードのみを連結して空白を正規化する。
// パース不能な入力にもベストエフォートで耐える（x/net/htmlは失敗しない）。
func HTMLToText(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	if !strings.ContainsAny(rawHTML, "<&") {
		return collapseWhitespace(rawHTML)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))
	var sb strings.Builder
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return collapseWhitespace(sb.String())

		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if isInvisibleTag(string(tn)) {
				skipDepth++
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if isInvisibleTag(string(tn)) && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tokenizer.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

// isInvisibleTag はテキスト抽出で中身ごと捨てるタグかどうかを返す。
func isInvisibleTag(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}

// collapseWhitespace は連続した空白文字を1つのスペースにまとめる。
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ProcessStoryLinks は記事コンテンツ内の相対リンクをbaseURLを基準に
// 絶対URLへ書き換える。対象はa[href]とimg[src]。
// baseURLが空、またはコンテンツがHTMLでない場合は入力をそのまま返す。
func ProcessStoryLinks(content, baseURL string) string {
	if content == "" || baseURL == "" || !strings.Contains(content, "<") {
		return content
	}
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return content
	}

	nodes, err := html.ParseFragment(strings.NewReader(content), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return content
	}

	var buf bytes.Buffer
	for _, node := range nodes {
		rewriteLinks(node, base)
		if err := html.Render(&buf, node); err != nil {
			return content
		}
	}
	return buf.String()
}

// rewriteLinks はノードツリーを辿り、相対URL属性を絶対URLに解決する。
func rewriteLinks(n *html.Node, base *url.URL) {
	if n.Type == html.ElementNode {
		var attrName string
		switch n.DataAtom {
		case atom.A:
			attrName = "href"
		case atom.Img:
			attrName = "src"
		}
		if attrName != "" {
			for i, attr := range n.Attr {
				if attr.Key != attrName || attr.Val == "" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(attr.Val))
				if err != nil || ref.IsAbs() {
					continue
				}
				n.Attr[i].Val = base.ResolveReference(ref).String()
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		rewriteLinks(child, base)
	}
}

// mathjaxPattern は数式マークアップの存在を示すパターン。
// MathJaxへの言及、$$...$$ブロック、\(...\)インラインを検出する。
var mathjaxPattern = regexp.MustCompile(`(?is)(mathjax)|(\$\$.+?\$\$)|(\\\(.+?\\\))`)

// HasMathjax はコンテンツに数式マークアップが含まれるかを判定する。
func HasMathjax(content string) bool {
	return mathjaxPattern.MatchString(content)
}

// NormalizeURL は生のURL文字列を整形し、相対URLはbaseURLを基準に解決する。
// 解決できない場合は空文字列を返す（記事の破棄ではなくフィールドの欠落として扱う）。
// 内部に空白を含む値はURLではない文章とみなして棄却する。解決時の
// パーセントエンコードで不正値が有効なURLに化けることを防ぐため、
// 解決前に検査する。
func NormalizeURL(raw, baseURL string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	if baseURL == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// urlMaxLength は検証で許容するURLの最大長。
const urlMaxLength = 4096

// IsValidURL はURLがスキーム・ホストを持つ有効なhttp/https絶対URLかを返す。
func IsValidURL(raw string) bool {
	if raw == "" || len(raw) > urlMaxLength {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// Shorten はテキストをルーン数widthに収まるよう切り詰める。
// 切り詰めた場合は末尾に...を付与し、全体がwidthを超えないようにする。
func Shorten(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// truncateRunes はテキストをルーン数maxに切り詰める。
func truncateRunes(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
