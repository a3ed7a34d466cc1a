// Package model はドメインモデルを定義する。
package model

import "fmt"

// FeedError は統一エラーフォーマットを表す。
// 呼び出し元に提示する原因カテゴリと対処方法を含む。
type FeedError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, fetch, parse, system
	Action   string // 呼び出し元向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *FeedError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL    = "INVALID_URL"
	ErrCodeInvalidConfig = "INVALID_CONFIG"
	ErrCodeFetchFailed   = "FETCH_FAILED"
	ErrCodeParseFailed   = "PARSE_FAILED"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *FeedError {
	return &FeedError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を指定してください。",
	}
}

// NewInvalidConfigError は設定不備エラーを生成する。
// 通常のネットワーク結果と異なり、呼び出し側の構成ミスを表す。
func NewInvalidConfigError(reason string) *FeedError {
	return &FeedError{
		Code:     ErrCodeInvalidConfig,
		Message:  fmt.Sprintf("設定が不正です: %s", reason),
		Category: "system",
		Action:   "環境変数およびリーダーのオプション設定を確認してください。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *FeedError {
	return &FeedError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "fetch",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// ParseError はフィードパースの検証失敗を表す。
// StoryIndexは問題の発生した記事の位置（フィードレベルの失敗時は-1）。
type ParseError struct {
	StoryIndex int
	Field      string
	Reason     string
}

// Error はerrorインターフェースを実装する。
func (e *ParseError) Error() string {
	if e.StoryIndex < 0 {
		return fmt.Sprintf("[%s] フィードの検証に失敗しました: field=%s: %s",
			ErrCodeParseFailed, e.Field, e.Reason)
	}
	return fmt.Sprintf("[%s] 記事の検証に失敗しました: story[%d] field=%s: %s",
		ErrCodeParseFailed, e.StoryIndex, e.Field, e.Reason)
}

// NewFeedParseError はフィードレベルの検証失敗エラーを生成する。
func NewFeedParseError(field, reason string) *ParseError {
	return &ParseError{StoryIndex: -1, Field: field, Reason: reason}
}

// NewStoryParseError は記事レベルの検証失敗エラーを生成する。
func NewStoryParseError(index int, field, reason string) *ParseError {
	return &ParseError{StoryIndex: index, Field: field, Reason: reason}
}
