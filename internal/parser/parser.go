package parser

import (
	"log/slog"

	"github.com/hitoshi/feedpipe/internal/model"
	"github.com/hitoshi/feedpipe/internal/security"
)

// storyContentMaxSize はサニタイズ後コンテンツのサイズ上限（バイト）。
// 上限を超えた記事は処理コストの暴走を避けるためプレーンテキストに落とす。
const storyContentMaxSize = 1024 * 1024

// FeedResult はパース1回の検証済み結果を表す。
// Checksumは今回のパースで前進した内部コピーであり、次周期に引き継ぐため
// 呼び出し元が永続化する。コンストラクタに渡したチェックサムは変更されない。
type FeedResult struct {
	Feed     model.FeedRecord
	Storys   []model.StoryRecord
	Checksum *FeedChecksum
}

// FeedParser は生のパース済みフィード構造を消費し、チェックサムによる
// 重複排除、フィールドの正規化・サニタイズ、スキーマ検証を行う。
// 1インスタンスは1回のパース試行を表し、再利用しない。
type FeedParser struct {
	checksum  *FeedChecksum
	validate  bool
	sanitizer *security.ContentSanitizer
	logger    *slog.Logger
}

// NewFeedParser はFeedParserの新しいインスタンスを生成する。
// checksumは内部でコピーされるため、パース試行が元のチェックサムを
// 汚すことはない。nilの場合は空のチェックサムから開始する。
// validateがfalseの場合はスキーマ検証をスキップする（既検証データの再処理用）。
func NewFeedParser(checksum *FeedChecksum, validate bool) *FeedParser {
	if checksum == nil {
		checksum = NewFeedChecksum()
	} else {
		checksum = checksum.Copy()
	}
	return &FeedParser{
		checksum:  checksum,
		validate:  validate,
		sanitizer: security.NewContentSanitizer(),
		logger:    slog.Default(),
	}
}

// Parse は生のフィード構造を検証済みのFeedResultに変換する。
// 新規/変更された記事のみが結果に含まれる。
// 必須フィールド違反があった場合はエラーを返し、問題の記事の位置を報告する。
func (p *FeedParser) Parse(raw *model.RawFeedResult) (*FeedResult, error) {
	updateStorys := p.checkUpdateStorys(raw.Storys)
	feed := p.parseFeed(&raw.Feed)

	storys := make([]model.StoryRecord, 0, len(updateStorys))
	for _, rawStory := range updateStorys {
		storys = append(storys, p.parseStory(&rawStory, feed.URL))
	}

	result := &FeedResult{
		Feed:     feed,
		Storys:   storys,
		Checksum: p.checksum,
	}
	if p.validate {
		if err := p.validateResult(result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// checkUpdateStorys は生の記事列をチェックサムでフィルタし、
// 新規または変更された記事のみを返す。
// ハッシュはサニタイズ前の生コンテンツに対して計算するため、
// フィールド処理の変更が変更済み記事の誤検出を引き起こすことはない。
func (p *FeedParser) checkUpdateStorys(storys []model.RawStory) []model.RawStory {
	var updates []model.RawStory
	for _, story := range storys {
		if p.checksum.Update(story.Ident, story.Content) {
			updates = append(updates, story)
		}
	}
	return updates
}

// parseFeed はフィードレコードを正規化する。
// HTMLを含むテキストフィールドはプレーンテキスト化して上限まで切り詰め、
// 補助URLはフィード自身のURLを基準に解決する。解決不能な補助URLは
// 失敗ではなく欠落として扱う。
func (p *FeedParser) parseFeed(raw *model.RawFeed) model.FeedRecord {
	url := raw.URL
	return model.FeedRecord{
		Version:         raw.Version,
		Title:           truncateRunes(HTMLToText(raw.Title), maxLenTitle),
		URL:             url,
		HomeURL:         NormalizeURL(raw.HomeURL, url),
		IconURL:         NormalizeURL(raw.IconURL, url),
		Description:     truncateRunes(HTMLToText(raw.Description), maxLenDescription),
		DtUpdated:       raw.DtUpdated,
		AuthorName:      truncateRunes(HTMLToText(raw.AuthorName), maxLenAuthorName),
		AuthorURL:       NormalizeURL(raw.AuthorURL, url),
		AuthorAvatarURL: NormalizeURL(raw.AuthorAvatarURL, url),
	}
}

// parseStory は記事レコードを正規化する。
// URLは空の場合identへフォールバックした上で検証し、無効な場合は
// 欠落とする（記事自体は破棄しない）。Identは一切書き換えない。
func (p *FeedParser) parseStory(raw *model.RawStory, feedURL string) model.StoryRecord {
	rawURL := raw.URL
	if rawURL == "" {
		rawURL = raw.Ident
	}
	storyURL := NormalizeURL(rawURL, feedURL)
	if !IsValidURL(storyURL) {
		storyURL = ""
	}

	// 以降の相対URL解決は記事自身の解決済みURLを基準にする
	baseURL := storyURL
	if baseURL == "" {
		baseURL = feedURL
	}

	content := p.processContent(raw.Content, baseURL)

	summary := raw.Summary
	if summary != "" {
		summary = p.sanitizer.Sanitize(summary)
	} else {
		summary = content
	}
	summary = Shorten(HTMLToText(summary), maxLenSummary)

	return model.StoryRecord{
		Ident:           raw.Ident,
		Title:           truncateRunes(HTMLToText(raw.Title), maxLenTitle),
		URL:             storyURL,
		Content:         content,
		Summary:         summary,
		HasMathjax:      HasMathjax(content),
		ImageURL:        NormalizeURL(raw.ImageURL, baseURL),
		DtPublished:     raw.DtPublished,
		DtUpdated:       raw.DtUpdated,
		AuthorName:      truncateRunes(HTMLToText(raw.AuthorName), maxLenAuthorName),
		AuthorURL:       NormalizeURL(raw.AuthorURL, baseURL),
		AuthorAvatarURL: NormalizeURL(raw.AuthorAvatarURL, baseURL),
	}
}

// processContent は記事コンテンツをサニタイズし、内部リンクを書き換える。
// サニタイズ後のサイズが上限を超える場合は警告を記録した上で
// プレーンテキストのみに落とし、病的な処理コストを回避する。
func (p *FeedParser) processContent(content, baseURL string) string {
	content = p.sanitizer.Sanitize(content)
	if len(content) >= storyContentMaxSize {
		p.logger.Warn("記事コンテンツがサイズ上限を超えたためプレーンテキストのみ保存します",
			slog.String("link", baseURL),
			slog.Int("content_length", len(content)),
		)
		content = HTMLToText(content)
	}
	return ProcessStoryLinks(content, baseURL)
}

// validateResult はフィードと全記事をスキーマ検証にかける。
// ソフト任意フィールドは検証前に欠落へ落とされているため、
// ここで失敗するのは必須フィールド違反のみで、パース全体が中断される。
func (p *FeedParser) validateResult(result *FeedResult) error {
	if err := validateFeedRecord(&result.Feed); err != nil {
		return err
	}
	for i := range result.Storys {
		if err := validateStoryRecord(i, &result.Storys[i]); err != nil {
			return err
		}
	}
	return nil
}
