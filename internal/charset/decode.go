package charset

import (
	"fmt"

	"golang.org/x/text/encoding/htmlindex"
)

// Decode は指定エンコーディング名のバイト列をUTF-8に変換する。
// フェッチ結果のコンテンツは常に生バイト列のため、デコードが必要な
// 呼び出し元がDetectの結果と組み合わせて使用する。
// 名前が解決できない場合はエラーを返す。
func Decode(name string, body []byte) ([]byte, error) {
	canonical := normalizeCharset(name)
	if canonical == "" {
		return nil, fmt.Errorf("unknown encoding: %q", name)
	}
	if canonical == "utf-8" {
		return body, nil
	}
	enc, err := htmlindex.Get(canonical)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding: %q: %w", name, err)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode as %s failed: %w", canonical, err)
	}
	return decoded, nil
}
