// Package model はドメインモデルを定義する。
package model

import "time"

// RawFeed はフィードトークナイザが生成する未検証のフィードフィールド群。
// 各フィールドは型のみが保証され、値の妥当性は一切保証されない。
type RawFeed struct {
	Version         string
	Title           string
	URL             string
	HomeURL         string
	IconURL         string
	Description     string
	DtUpdated       *time.Time
	AuthorName      string
	AuthorURL       string
	AuthorAvatarURL string
}

// RawStory はフィードトークナイザが生成する未検証の記事フィールド群。
// Identは記事の安定した同一性キーであり、URLとは独立している。
type RawStory struct {
	Ident           string
	Title           string
	URL             string
	Content         string
	Summary         string
	ImageURL        string
	DtPublished     *time.Time
	DtUpdated       *time.Time
	AuthorName      string
	AuthorURL       string
	AuthorAvatarURL string
}

// RawFeedResult はフィードトークナイザの出力契約を表す。
// パーサーへの入力境界であり、正規化・検証はパーサー側が行う。
type RawFeedResult struct {
	Feed   RawFeed
	Storys []RawStory
}

// FeedRecord は正規化・検証済みのフィードレコード。
// ソフト任意フィールド（HomeURL等）は検証に失敗した場合、空値に落とされる。
type FeedRecord struct {
	Version         string
	Title           string
	URL             string
	HomeURL         string
	IconURL         string
	Description     string
	DtUpdated       *time.Time
	AuthorName      string
	AuthorURL       string
	AuthorAvatarURL string
}

// StoryRecord は正規化・検証済みの記事レコード。
// URLは正規化に失敗した場合は空になるが、記事自体は破棄されない。
// Identは正規化によって書き換えられることはない。
type StoryRecord struct {
	Ident           string
	Title           string
	URL             string
	Content         string
	Summary         string
	HasMathjax      bool
	ImageURL        string
	DtPublished     *time.Time
	DtUpdated       *time.Time
	AuthorName      string
	AuthorURL       string
	AuthorAvatarURL string
}
