// Package app はフェッチ〜パースのパイプラインを組み立てるエントリーポイントを提供する。
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedpipe/internal/charset"
	"github.com/hitoshi/feedpipe/internal/config"
	"github.com/hitoshi/feedpipe/internal/fetcher"
	"github.com/hitoshi/feedpipe/internal/logger"
	"github.com/hitoshi/feedpipe/internal/metrics"
	"github.com/hitoshi/feedpipe/internal/model"
	"github.com/hitoshi/feedpipe/internal/parser"
	"github.com/hitoshi/feedpipe/internal/security"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// logWriterが指定された場合はログ出力先としてそのwriterを使用する。
func Init(logWriter io.Writer) *config.Config {
	logger.SetupDefault(logWriter)
	return config.Load()
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、フェッチ〜パースの
// パイプラインを1回実行して結果をJSONとしてwに出力する。
// argsにはos.Args[1:]を渡す。
func Run(ctx context.Context, w io.Writer, logWriter io.Writer, args []string) error {
	cmd, flags := ParseCommand(args)
	if flags.URL == "" {
		return model.NewInvalidURLError("URLが指定されていません")
	}

	cfg := Init(logWriter)

	pipeline := NewPipeline(cfg, metrics.NewCollector(prometheus.NewRegistry()))

	switch cmd {
	case CommandProbe:
		return pipeline.Probe(ctx, w, flags)
	default:
		return pipeline.Fetch(ctx, w, flags)
	}
}

// Pipeline はフェッチ〜パースの一連の処理を保持する。
type Pipeline struct {
	cfg       *config.Config
	reader    *fetcher.FeedReader
	rawParser *parser.RawParser
	recorder  metrics.Recorder
}

// NewPipeline はPipelineの新しいインスタンスを生成する。
func NewPipeline(cfg *config.Config, recorder metrics.Recorder) *Pipeline {
	guard := security.NewAddressGuard()
	return &Pipeline{
		cfg:       cfg,
		reader:    fetcher.NewFeedReader(cfg, guard, slog.Default()),
		rawParser: parser.NewRawParser(),
		recorder:  recorder,
	}
}

// probeResult はprobeサブコマンドの出力フォーマット。
type probeResult struct {
	Status   int    `json:"status"`
	OK       bool   `json:"ok"`
	URL      string `json:"url"`
	Size     int    `json:"size"`
	Encoding string `json:"encoding,omitempty"`
	FeedType string `json:"feed_type,omitempty"`
}

// Probe はURLをフェッチして応答メタデータのみを出力する。
func (p *Pipeline) Probe(ctx context.Context, w io.Writer, flags FetchFlags) error {
	resp, err := p.read(ctx, flags)
	if err != nil {
		return err
	}
	return writeJSON(w, probeResult{
		Status:   resp.Status,
		OK:       resp.OK(),
		URL:      resp.URL,
		Size:     len(resp.Content),
		Encoding: resp.Encoding,
		FeedType: string(resp.FeedType),
	})
}

// fetchResult はfetchサブコマンドの出力フォーマット。
type fetchResult struct {
	Status   int                 `json:"status"`
	URL      string              `json:"url"`
	Encoding string              `json:"encoding,omitempty"`
	FeedType string              `json:"feed_type,omitempty"`
	Feed     model.FeedRecord    `json:"feed"`
	Storys   []model.StoryRecord `json:"storys"`
}

// Fetch はURLをフェッチし、パース結果をJSONとして出力する。
// フェッチが成功の終端結果でない場合はパースせずエラーを返す。
func (p *Pipeline) Fetch(ctx context.Context, w io.Writer, flags FetchFlags) error {
	resp, err := p.read(ctx, flags)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return model.NewFetchFailedError(fmt.Sprintf("status=%d url=%s", resp.Status, resp.URL))
	}

	result, err := p.parse(resp)
	if err != nil {
		p.recorder.RecordParseFailure()
		return err
	}
	p.recorder.RecordParseSuccess(len(result.Storys))

	return writeJSON(w, fetchResult{
		Status:   resp.Status,
		URL:      resp.URL,
		Encoding: resp.Encoding,
		FeedType: string(resp.FeedType),
		Feed:     result.Feed,
		Storys:   result.Storys,
	})
}

// read はフェッチを1回実行し、結果メトリクスを記録する。
func (p *Pipeline) read(ctx context.Context, flags FetchFlags) (*fetcher.FeedResponse, error) {
	start := time.Now()
	resp, err := p.reader.Read(ctx, flags.URL, fetcher.Options{
		UseProxy:            flags.UseProxy,
		AllowPrivateAddress: flags.AllowPrivateAddress,
		AllowNonWebpage:     flags.AllowNonWebpage,
	})
	if err != nil {
		return nil, err
	}
	p.recorder.RecordFetchOutcome(resp.Status)
	p.recorder.RecordFetchLatency(time.Since(start))

	slog.Info("フェッチが完了しました",
		slog.String("url", resp.URL),
		slog.Int("status", resp.Status),
		slog.Int("content_size", len(resp.Content)),
		slog.String("encoding", resp.Encoding),
		slog.String("feed_type", string(resp.FeedType)),
	)
	return resp, nil
}

// parse はフェッチ結果をデコードし、トークナイズとパースを実行する。
// コンテンツは生バイト列のため、検出済みエンコーディングでUTF-8に変換してから
// トークナイザに渡す。デコード失敗時は生バイト列のままフォールバックする。
func (p *Pipeline) parse(resp *fetcher.FeedResponse) (*parser.FeedResult, error) {
	content := resp.Content
	if resp.Encoding != "" {
		decoded, err := charset.Decode(resp.Encoding, content)
		if err != nil {
			slog.Warn("コンテンツのデコードに失敗したため生バイト列を使用します",
				slog.String("url", resp.URL),
				slog.String("encoding", resp.Encoding),
				slog.String("error", err.Error()),
			)
		} else {
			content = decoded
		}
	}

	raw, err := p.rawParser.Parse(content, resp.URL)
	if err != nil {
		return nil, fmt.Errorf("フィードのトークナイズに失敗: %w", err)
	}

	return parser.NewFeedParser(nil, true).Parse(raw)
}

// writeJSON は結果をインデント付きJSONとして出力する。
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
