// Package fetcher はフィードURLの安全なフェッチ機能を提供する。
// 接続前のアドレス分類によるSSRF防止、信頼できるリレー経由の取得、
// ステータス・エンコーディング・コンテンツ種別のトランスポート結果の
// 正規化を行い、統一されたFeedResponseを返す。
package fetcher

import (
	"github.com/hitoshi/feedpipe/internal/sniff"
)

// センチネルステータスコード。
// 負の値のためHTTPステータスコードと衝突することはない。
// 上流が返した整数ステータスは標準範囲外の値も含めそのまま透過される。
const (
	// StatusUnknownError は分類不能な失敗。
	StatusUnknownError = -100
	// StatusConnectionError は接続確立の失敗。
	StatusConnectionError = -200
	// StatusTimeoutError はトランスポートのタイムアウト。
	StatusTimeoutError = -201
	// StatusDNSError は名前解決の失敗。アドレスポリシー拒否とは区別される。
	StatusDNSError = -202
	// StatusPrivateAddressError は解決先アドレスのポリシー拒否。
	StatusPrivateAddressError = -300
	// StatusContentTypeNotSupportError はコンテンツ種別のポリシー拒否。
	StatusContentTypeNotSupportError = -301
	// StatusRSSProxyError はリレー自体の失敗。上流の5xxとは混同されない。
	StatusRSSProxyError = -302
)

// FeedResponse はフェッチ1回の正規化された結果を表す。
// 構築後は変更されないイミュータブルな値として扱う。
// Contentは常に生のバイト列であり、デコードは呼び出し元が行う。
type FeedResponse struct {
	Status   int
	URL      string
	Content  []byte
	Encoding string
	FeedType sniff.FeedType
}

// OK はステータスが成功の終端結果かどうかを返す。
func (r *FeedResponse) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}
