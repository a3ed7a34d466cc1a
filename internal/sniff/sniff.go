// Package sniff はフェッチ結果のコンテンツ種別判定機能を提供する。
// 宣言されたContent-Typeヘッダとボディ先頭バイトの構造マーカーから、
// ペイロードがフィード/ウェブページとして処理可能かどうかと、
// フィードファミリー（RSS/Atom/JSONフィード/HTML）を判定する。
package sniff

import (
	"mime"
	"strings"
)

// FeedType はフィードファミリーの分類を表す。
type FeedType string

const (
	// FeedTypeRSS はRSS（RDF含む）フィード。
	FeedTypeRSS FeedType = "rss"
	// FeedTypeAtom はAtomフィード。
	FeedTypeAtom FeedType = "atom"
	// FeedTypeJSON はJSONフィード。
	FeedTypeJSON FeedType = "json-feed"
	// FeedTypeHTML は通常のウェブページ。
	FeedTypeHTML FeedType = "html"
	// FeedTypeUnknown は分類不能なコンテンツ。
	FeedTypeUnknown FeedType = ""
)

// feedContentTypes はフィードファミリーを直接決定できるContent-Type。
var feedContentTypes = map[string]FeedType{
	"application/rss+xml":   FeedTypeRSS,
	"application/rdf+xml":   FeedTypeRSS,
	"application/atom+xml":  FeedTypeAtom,
	"application/feed+json": FeedTypeJSON,
}

// htmlContentTypes はウェブページとして認識するContent-Type。
var htmlContentTypes = []string{
	"text/html",
	"application/xhtml+xml",
}

// unsupportedPrefixes はフィードにもウェブページにもなり得ないContent-Typeの接頭辞。
var unsupportedPrefixes = []string{
	"image/",
	"audio/",
	"video/",
	"font/",
}

// unsupportedTypes は明示的に拒否するContent-Type。
var unsupportedTypes = []string{
	"text/css",
	"text/csv",
	"application/csv",
	"application/octet-stream",
	"application/pdf",
	"application/zip",
	"application/gzip",
	"application/msword",
}

// Classify は宣言Content-Typeとボディ先頭バイトからコンテンツ種別を判定する。
// 戻り値は処理可能かどうかと、判定できた場合のフィードファミリー。
// 宣言ヘッダが欠落・不正な場合はボディの構造マーカーのみで判定する。
func Classify(declaredContentType string, body []byte) (bool, FeedType) {
	mediaType := parseMediaType(declaredContentType)

	if mediaType != "" {
		for _, prefix := range unsupportedPrefixes {
			if strings.HasPrefix(mediaType, prefix) {
				return false, FeedTypeUnknown
			}
		}
		for _, t := range unsupportedTypes {
			if mediaType == t {
				return false, FeedTypeUnknown
			}
		}

		if ft, ok := feedContentTypes[mediaType]; ok {
			return true, ft
		}
		for _, t := range htmlContentTypes {
			if mediaType == t {
				return true, FeedTypeHTML
			}
		}
	}

	// 汎用XML/JSON/テキスト、またはヘッダ欠落の場合はボディ解析で判定する。
	// 宣言ヘッダで種別を確定できなくても、ここで拒否はしない。
	if ft := sniffBody(body); ft != FeedTypeUnknown {
		return true, ft
	}

	return true, FeedTypeUnknown
}

// parseMediaType はContent-Typeヘッダからメディアタイプを抽出する。
// charset等のパラメータは除去し、パース不能なヘッダにも耐える。
func parseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mediaType)
}

// sniffCheckSize はボディ解析で検査する先頭バイト数。
// XMLプロローグ + ルート要素が含まれるのに十分なサイズ。
const sniffCheckSize = 4096

// sniffBody はボディ先頭の構造マーカーからフィードファミリーを判定する。
func sniffBody(body []byte) FeedType {
	if len(body) == 0 {
		return FeedTypeUnknown
	}
	checkSize := sniffCheckSize
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToLower(string(body[:checkSize]))
	// 先頭のBOM（U+FEFF）と空白を読み飛ばす
	trimmed := strings.TrimLeft(prefix, " \t\r\n\uFEFF")

	// JSONフィードの判定: ルートオブジェクトとjsonfeedのversionキー
	if strings.HasPrefix(trimmed, "{") && strings.Contains(prefix, "jsonfeed.org") {
		return FeedTypeJSON
	}

	// RSSの判定: <rss タグまたは <rdf:RDF タグ
	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return FeedTypeRSS
	}

	// Atomの判定: <feed タグ（Atom namespaceを含む）
	if strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom") {
		return FeedTypeAtom
	}

	// HTMLの判定: doctype宣言または<htmlタグ
	if strings.Contains(prefix, "<!doctype html") || strings.Contains(prefix, "<html") {
		return FeedTypeHTML
	}

	return FeedTypeUnknown
}
