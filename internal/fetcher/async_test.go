package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// TestReadAsync_SameResultAsSync は同一入力に対して非同期版と
// ブロッキング版が同一の結果を返すことをテストする。
func TestReadAsync_SameResultAsSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Test</title></channel></rss>`)
	}))
	defer server.Close()

	reader := newTestReader(t, nil)
	async := NewAsyncFeedReader(reader, 4, 0)
	opts := Options{AllowPrivateAddress: true}

	syncResp, err := async.Read(context.Background(), server.URL, opts)
	if err != nil {
		t.Fatalf("ブロッキング版でエラー: %v", err)
	}
	result := <-async.ReadAsync(context.Background(), server.URL, opts)
	if result.Err != nil {
		t.Fatalf("非同期版でエラー: %v", result.Err)
	}

	if result.Response.Status != syncResp.Status {
		t.Errorf("ステータスが一致すべき: %d != %d", result.Response.Status, syncResp.Status)
	}
	if string(result.Response.Content) != string(syncResp.Content) {
		t.Error("コンテンツが一致すべき")
	}
	if result.Response.FeedType != syncResp.FeedType {
		t.Errorf("フィード種別が一致すべき: %q != %q", result.Response.FeedType, syncResp.FeedType)
	}
	if result.Response.Encoding != syncResp.Encoding {
		t.Errorf("エンコーディングが一致すべき: %q != %q", result.Response.Encoding, syncResp.Encoding)
	}
}

// TestReadAsync_ConcurrencyLimit は同時実行中のフェッチ数が
// 上限を超えないことをテストする。
func TestReadAsync_ConcurrencyLimit(t *testing.T) {
	const maxConcurrent = 2
	var mu sync.Mutex
	inflight := 0
	peak := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		inflight--
		mu.Unlock()
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	reader := newTestReader(t, nil)
	async := NewAsyncFeedReader(reader, maxConcurrent, 0)
	opts := Options{AllowPrivateAddress: true, AllowNonWebpage: true}

	var chans []<-chan ReadResult
	for i := 0; i < 8; i++ {
		chans = append(chans, async.ReadAsync(context.Background(), server.URL, opts))
	}
	for i, ch := range chans {
		result := <-ch
		if result.Err != nil {
			t.Fatalf("フェッチ%dでエラー: %v", i, result.Err)
		}
		if result.Response.Status != http.StatusOK {
			t.Errorf("フェッチ%d: 期待: 200, 結果: %d", i, result.Response.Status)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > maxConcurrent {
		t.Errorf("同時実行数が上限を超過: peak=%d, 上限=%d", peak, maxConcurrent)
	}
	if peak == 0 {
		t.Error("フェッチが1つも実行されていない")
	}
}

// TestReadAsync_ChannelDoesNotBlock は結果を即座に受信しなくても
// ワーカーがブロックしないことをテストする。
func TestReadAsync_ChannelDoesNotBlock(t *testing.T) {
	served := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case served <- struct{}{}:
		default:
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	reader := newTestReader(t, nil)
	async := NewAsyncFeedReader(reader, 1, 0)
	opts := Options{AllowPrivateAddress: true, AllowNonWebpage: true}

	ch := async.ReadAsync(context.Background(), server.URL, opts)

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("受信前にフェッチが実行されるべき")
	}

	// 後から受信しても結果は保持されている
	select {
	case result := <-ch:
		if result.Err != nil {
			t.Fatalf("エラーは返らないべき: %v", result.Err)
		}
		if result.Response.Status != http.StatusOK {
			t.Errorf("期待: 200, 結果: %d", result.Response.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("結果が届くべき")
	}
}

// TestReadAsync_CanceledBeforeDispatch はワーカーが全て占有されている間に
// 中断されたフェッチがエラー結果を返すことをテストする。
func TestReadAsync_CanceledBeforeDispatch(t *testing.T) {
	entered := make(chan struct{})
	blocker := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-blocker
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	reader := newTestReader(t, nil)
	async := NewAsyncFeedReader(reader, 1, 0)
	opts := Options{AllowPrivateAddress: true, AllowNonWebpage: true}

	// 唯一のワーカー枠を占有させ、リクエスト開始まで待つ
	occupied := async.ReadAsync(context.Background(), server.URL, opts)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("占有フェッチが開始されるべき")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := <-async.ReadAsync(ctx, server.URL, opts)
	if result.Err == nil {
		t.Error("中断されたフェッチはエラーを返すべき")
	}

	close(blocker)
	<-occupied
}
