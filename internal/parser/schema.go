package parser

import (
	"fmt"
	"unicode/utf8"

	"github.com/hitoshi/feedpipe/internal/model"
)

// スキーマのフィールド長上限。
const (
	maxLenIdent       = 200
	maxLenTitle       = 200
	maxLenVersion     = 200
	maxLenDescription = 300
	maxLenSummary     = 300
	maxLenAuthorName  = 100
)

// validateFeedRecord はフィードレコードを2段階で検証する。
// 第1段階でソフト任意URLフィールドの不正値を空値に落とし、
// 第2段階で必須フィールド違反のみをハード失敗として報告する。
func validateFeedRecord(feed *model.FeedRecord) error {
	// 第1段階: ソフト任意フィールドの不正値は欠落に落とす
	feed.HomeURL = softURL(feed.HomeURL)
	feed.IconURL = softURL(feed.IconURL)
	feed.AuthorURL = softURL(feed.AuthorURL)
	feed.AuthorAvatarURL = softURL(feed.AuthorAvatarURL)

	// 第2段階: 必須フィールドのハード検証
	if !IsValidURL(feed.URL) {
		return model.NewFeedParseError("url", fmt.Sprintf("invalid feed url: %q", feed.URL))
	}
	if err := checkMaxLen("version", feed.Version, maxLenVersion); err != nil {
		return model.NewFeedParseError("version", err.Error())
	}
	if err := checkMaxLen("title", feed.Title, maxLenTitle); err != nil {
		return model.NewFeedParseError("title", err.Error())
	}
	if err := checkMaxLen("description", feed.Description, maxLenDescription); err != nil {
		return model.NewFeedParseError("description", err.Error())
	}
	if err := checkMaxLen("author_name", feed.AuthorName, maxLenAuthorName); err != nil {
		return model.NewFeedParseError("author_name", err.Error())
	}
	return nil
}

// validateStoryRecord は記事レコードを2段階で検証する。
// indexは結果のStorysスライス内の位置（チェックサムで絞り込んだ後）で、
// ハード失敗の診断情報として報告される。
func validateStoryRecord(index int, story *model.StoryRecord) error {
	// 第1段階: ソフト任意フィールドの不正値は欠落に落とす
	story.URL = softURL(story.URL)
	story.ImageURL = softURL(story.ImageURL)
	story.AuthorURL = softURL(story.AuthorURL)
	story.AuthorAvatarURL = softURL(story.AuthorAvatarURL)

	// 第2段階: 必須フィールドのハード検証。
	// Identは正規化で書き換えられないため、上限超過はここで失敗する。
	if story.Ident == "" {
		return model.NewStoryParseError(index, "ident", "ident is required")
	}
	if err := checkMaxLen("ident", story.Ident, maxLenIdent); err != nil {
		return model.NewStoryParseError(index, "ident", err.Error())
	}
	if err := checkMaxLen("title", story.Title, maxLenTitle); err != nil {
		return model.NewStoryParseError(index, "title", err.Error())
	}
	if err := checkMaxLen("summary", story.Summary, maxLenSummary); err != nil {
		return model.NewStoryParseError(index, "summary", err.Error())
	}
	if err := checkMaxLen("author_name", story.AuthorName, maxLenAuthorName); err != nil {
		return model.NewStoryParseError(index, "author_name", err.Error())
	}
	return nil
}

// softURL はソフト任意URLフィールドの値を検証し、不正なら空値を返す。
func softURL(raw string) string {
	if raw == "" {
		return ""
	}
	if !IsValidURL(raw) {
		return ""
	}
	return raw
}

// checkMaxLen は文字列のルーン数が上限以内であることを検証する。
func checkMaxLen(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%s length %d exceeds %d", field, utf8.RuneCountInString(value), max)
	}
	return nil
}
