package parser

import (
	"bytes"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/feedpipe/internal/model"
)

// RawParser はフェッチ済みバイト列を緩く型付けされたRawFeedResultに変換する。
// RSS/Atom/JSONフィードのトークナイズはgofeedに委譲し、
// フィールドの検証・正規化は一切行わない（それはFeedParserの責務）。
type RawParser struct {
	gofeedParser *gofeed.Parser
}

// NewRawParser はRawParserの新しいインスタンスを生成する。
func NewRawParser() *RawParser {
	return &RawParser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Parse はフィードのバイト列をRawFeedResultに変換する。
// feedURLはフィード自身の取得元URLで、そのままURLフィールドに入る。
// フィード形式として解釈できないデータの場合はエラーを返す。
func (p *RawParser) Parse(data []byte, feedURL string) (*model.RawFeedResult, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize feed: %w", err)
	}

	raw := &model.RawFeedResult{
		Feed: model.RawFeed{
			Version:     feedVersion(feed),
			Title:       feed.Title,
			URL:         feedURL,
			HomeURL:     feed.Link,
			Description: feed.Description,
			DtUpdated:   feedUpdated(feed),
		},
	}
	if feed.Image != nil {
		raw.Feed.IconURL = feed.Image.URL
	}
	if len(feed.Authors) > 0 && feed.Authors[0] != nil {
		raw.Feed.AuthorName = feed.Authors[0].Name
	}

	raw.Storys = make([]model.RawStory, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		raw.Storys = append(raw.Storys, p.rawStory(item))
	}
	return raw, nil
}

// rawStory はgofeedのアイテムをRawStoryに写し替える。
// Identは guid → link → タイトル+公開日 の順でフォールバックする。
func (p *RawParser) rawStory(item *gofeed.Item) model.RawStory {
	ident := item.GUID
	if ident == "" {
		ident = item.Link
	}
	if ident == "" {
		ident = item.Title + "#" + item.Published
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}

	story := model.RawStory{
		Ident:       ident,
		Title:       item.Title,
		URL:         item.Link,
		Content:     content,
		Summary:     item.Description,
		DtPublished: parseTime(item.PublishedParsed, item.Published),
		DtUpdated:   parseTime(item.UpdatedParsed, item.Updated),
	}
	if item.Image != nil {
		story.ImageURL = item.Image.URL
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		story.AuthorName = item.Authors[0].Name
	}
	return story
}

// feedVersion はフィード形式とバージョンを1つの識別子にまとめる。
func feedVersion(feed *gofeed.Feed) string {
	if feed.FeedVersion == "" {
		return feed.FeedType
	}
	return feed.FeedType + feed.FeedVersion
}

// feedUpdated はフィードの更新日時を取得する。
func feedUpdated(feed *gofeed.Feed) *time.Time {
	return parseTime(feed.UpdatedParsed, feed.Updated)
}

// parseTime はgofeedが解釈済みの日時を優先し、未解釈の文字列が残っている
// 場合はdateparseで寛容にパースする。どちらも不能ならnilを返す。
func parseTime(parsed *time.Time, raw string) *time.Time {
	if parsed != nil {
		return parsed
	}
	if raw == "" {
		return nil
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}
	return &t
}
