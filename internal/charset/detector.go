// Package charset はテキストエンコーディングの推定機能を提供する。
// トランスポートヘッダで宣言された文字セットを優先しつつ、
// 宣言が欠落または明らかに誤っている場合はバイト列の統計的検出に
// フォールバックする。検出は必ず何らかのエンコーディング名を返し、
// フェッチ全体を失敗させることはない。
package charset

import (
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding は検出が全て失敗した場合に返す既定のエンコーディング名。
const DefaultEncoding = "utf-8"

// validateSize は宣言エンコーディングの検証でデコードする先頭バイト数の上限。
// 宣言の正誤判定には先頭部分で十分であり、巨大ボディの全デコードを避ける。
const validateSize = 32 * 1024

// charsetAliases はhtmlindexが解決しない別名の補完マップ。
var charsetAliases = map[string]string{
	"cp936":     "gbk",
	"cp1252":    "windows-1252",
	"iso8859-1": "iso-8859-1",
	"latin-1":   "iso-8859-1",
	"ascii":     "us-ascii",
	"us_ascii":  "us-ascii",
	"shift-jis": "shift_jis",
	"sjis":      "shift_jis",
}

// Detect は宣言文字セットとボディバイト列からエンコーディング名を推定する。
// 宣言がある場合は正規化して優先し、先頭バイトのデコード検証に通ればそれを返す。
// 宣言がない、または検証に失敗した場合は統計的検出にフォールバックする。
// 戻り値は常に非空のベストエフォート名（最終フォールバックはutf-8）。
func Detect(declaredCharset string, body []byte) string {
	if name := normalizeCharset(declaredCharset); name != "" {
		if decodesCleanly(name, body) {
			return name
		}
	}
	if name := detectByBytes(body); name != "" {
		return name
	}
	return DefaultEncoding
}

// normalizeCharset は宣言文字セットを正規化する。
// 引用符の除去、小文字化、一般的な別名の解決を行い、
// 解決できない名前には空文字列を返す。
func normalizeCharset(declared string) string {
	name := strings.ToLower(strings.TrimSpace(declared))
	name = strings.Trim(name, `"'`)
	if name == "" {
		return ""
	}
	if canonical, ok := charsetAliases[name]; ok {
		name = canonical
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return ""
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return ""
	}
	return canonical
}

// decodesCleanly は指定エンコーディングでボディ先頭を試しにデコードし、
// 置換文字が発生しないことを確認する。宣言の明らかな誤りを弾くための
// 有界なヒューリスティックであり、厳密な妥当性検証ではない。
func decodesCleanly(name string, body []byte) bool {
	if len(body) == 0 {
		return true
	}
	prefix := body
	if len(prefix) > validateSize {
		prefix = prefix[:validateSize]
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return false
	}
	decoded, err := enc.NewDecoder().Bytes(prefix)
	if err != nil {
		return false
	}
	// デコーダは不正なバイト列をU+FFFDに置換するため、
	// 置換文字の出現を宣言の誤りとみなす。
	for i := 0; i < len(decoded); {
		r, size := utf8.DecodeRune(decoded[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if r == '�' {
			return false
		}
		i += size
	}
	return true
}

// detectByBytes はバイト列の統計的検出でエンコーディング名を推定する。
// 検出に失敗した場合は空文字列を返す。
func detectByBytes(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result == nil || result.Charset == "" {
		return ""
	}
	// 検出結果もhtmlindexの正規名に揃える（例: GB-18030 → gb18030）。
	if canonical := normalizeCharset(result.Charset); canonical != "" {
		return canonical
	}
	return strings.ToLower(result.Charset)
}
