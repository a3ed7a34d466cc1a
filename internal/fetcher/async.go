package fetcher

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// ReadResult は非同期フェッチ1件の結果を表す。
// Errは設定不備またはディスパッチ前のコンテキスト中断の場合のみ非nil。
type ReadResult struct {
	Response *FeedResponse
	Err      error
}

// AsyncFeedReader は多数のフェッチを限られたワーカーで並行実行するリーダー。
// フェッチアルゴリズムはFeedReaderと完全に共有しており、同一入力に対して
// ブロッキング版と同一の結果を返す。同時実行数はセマフォで制限され、
// ディスパッチレートはオプションのレートリミッタで制御される。
type AsyncFeedReader struct {
	reader  *FeedReader
	sem     chan struct{}
	limiter *rate.Limiter
}

// NewAsyncFeedReader はAsyncFeedReaderの新しいインスタンスを生成する。
// maxConcurrentが0以下の場合は10として扱う。
// ratePerSecondが0以下の場合はレート制限を行わない。
func NewAsyncFeedReader(reader *FeedReader, maxConcurrent int, ratePerSecond float64) *AsyncFeedReader {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	a := &AsyncFeedReader{
		reader: reader,
		sem:    make(chan struct{}, maxConcurrent),
	}
	if ratePerSecond > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return a
}

// Read はブロッキングでフェッチを実行する。
// 結果の意味論はFeedReader.Readと同一。
func (a *AsyncFeedReader) Read(ctx context.Context, rawURL string, opts Options) (*FeedResponse, error) {
	return a.reader.Read(ctx, rawURL, opts)
}

// ReadAsync はフェッチをワーカーに委ね、結果を受け取るチャネルを返す。
// チャネルはバッファ付きで、受信しなくてもワーカーはリークしない。
// I/O待ちでのみブロックするため、1ワーカー上で多数のフェッチを多重化できる。
func (a *AsyncFeedReader) ReadAsync(ctx context.Context, rawURL string, opts Options) <-chan ReadResult {
	ch := make(chan ReadResult, 1)
	go func() {
		defer close(ch)

		select {
		case a.sem <- struct{}{}:
			defer func() { <-a.sem }()
		case <-ctx.Done():
			ch <- ReadResult{Err: fmt.Errorf("fetch not dispatched: %w", ctx.Err())}
			return
		}

		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				ch <- ReadResult{Err: fmt.Errorf("fetch not dispatched: %w", err)}
				return
			}
		}

		resp, err := a.reader.Read(ctx, rawURL, opts)
		ch <- ReadResult{Response: resp, Err: err}
	}()
	return ch
}
