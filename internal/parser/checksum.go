// Package parser はフィードの正規化・重複排除・検証機能を提供する。
package parser

import (
	"crypto/sha1"
)

// FeedChecksum は記事の同一性キーからコンテンツハッシュへの対応を保持し、
// 同一論理フィードの繰り返しパースをまたいだ新規/変更記事の検出に使用される。
// 値セマンティクスを持ち、Copyで独立したスナップショットを作れる。
// 同一チェックサムへの並行した変更は想定していない。呼び出し元は
// 論理フィードごとにパースを直列化すること。
type FeedChecksum struct {
	hashes map[string][sha1.Size]byte
}

// NewFeedChecksum は空のFeedChecksumを生成する。
// 論理フィードの購読ごとに1回生成し、呼び出し元がリフレッシュ周期を
// またいで永続化することを想定している。
func NewFeedChecksum() *FeedChecksum {
	return &FeedChecksum{
		hashes: make(map[string][sha1.Size]byte),
	}
}

// Copy は独立したスナップショットを生成する。
// コピーへの変更は元のチェックサムに一切影響しない。
// パース試行を投機的・再試行可能にするための仕組みであり、
// パーサーは渡されたチェックサムを必ずコピーしてから更新する。
func (c *FeedChecksum) Copy() *FeedChecksum {
	hashes := make(map[string][sha1.Size]byte, len(c.hashes))
	for ident, h := range c.hashes {
		hashes[ident] = h
	}
	return &FeedChecksum{hashes: hashes}
}

// Update はコンテンツのハッシュを計算し、記録済みハッシュと比較する。
// 新規または変更された記事の場合はtrueを返して新しいハッシュを記録する。
// コンテンツの同一性はcontentのバイト列のみで定義され、
// ハッシュが等しければ他のメタデータが異なっても未変更として扱う。
func (c *FeedChecksum) Update(ident, content string) bool {
	h := sha1.Sum([]byte(content))
	if prev, ok := c.hashes[ident]; ok && prev == h {
		return false
	}
	c.hashes[ident] = h
	return true
}

// Size は記録されている記事数を返す。
func (c *FeedChecksum) Size() int {
	return len(c.hashes)
}
