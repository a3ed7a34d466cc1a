package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/feedpipe/internal/config"
)

const testProxyToken = "TEST_RSS_PROXY_TOKEN"

// relayHandler はリレーのワイヤプロトコルを模倣するハンドラを返す。
// 対象URLのクエリで挙動を制御する:
//   - status=S: ステータスヘッダにSを設定し、ボディにSの文字列を返す
//   - error=ERROR: ステータスヘッダにERRORを設定し、ボディに診断テキストを返す
//   - error=N: ステータスヘッダなしでHTTPステータスNを返す（リレー自体の失敗）
func relayHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req relayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("リレーリクエストのデコードに失敗: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Token != testProxyToken {
			t.Errorf("トークン不一致: %q", req.Token)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Method != http.MethodGet {
			t.Errorf("メソッドはGETであるべき: %q", req.Method)
		}
		if req.Headers["User-Agent"] == "" {
			t.Error("User-Agentヘッダが転送されるべき")
		}

		target, err := url.Parse(req.URL)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		query := target.Query()

		if errVal := query.Get("error"); errVal != "" {
			if errVal == "ERROR" {
				w.Header().Set(ProxyStatusHeader, "ERROR")
				fmt.Fprint(w, "relay internal diagnostic text")
				return
			}
			relayStatus, _ := strconv.Atoi(errVal)
			w.WriteHeader(relayStatus)
			fmt.Fprint(w, "relay failed")
			return
		}

		status := 200
		if s := query.Get("status"); s != "" {
			status, _ = strconv.Atoi(s)
		}
		w.Header().Set(ProxyStatusHeader, strconv.Itoa(status))
		fmt.Fprint(w, strconv.Itoa(status))
	}
}

// newProxyReader はリレー設定済みのFeedReaderを生成する。
func newProxyReader(t *testing.T, proxyURL string) *FeedReader {
	t.Helper()
	cfg := &config.Config{
		FetchTimeout:   5 * time.Second,
		FetchMaxSize:   10 * 1024 * 1024,
		FetchUserAgent: config.DefaultUserAgent,
		RSSProxyURL:    proxyURL,
		RSSProxyToken:  testProxyToken,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFeedReader(cfg, nil, logger)
}

// TestRelay_StatusPassthrough はリレーが報告した上流ステータスが
// そのまま採用されることをテストする。
func TestRelay_StatusPassthrough(t *testing.T) {
	server := httptest.NewServer(relayHandler(t))
	defer server.Close()

	reader := newProxyReader(t, server.URL)
	for _, status := range []int{200, 201, 301, 302, 400, 403, 404, 500, 502, 600} {
		target := fmt.Sprintf("http://not-proxy.example.com/feed?status=%d", status)
		resp, err := reader.Read(context.Background(), target, Options{UseProxy: true, AllowNonWebpage: true})
		if err != nil {
			t.Fatalf("status=%d: エラーは返らないべき: %v", status, err)
		}
		if resp.Status != status {
			t.Errorf("status=%d: 期待: %d, 結果: %d", status, status, resp.Status)
		}
		if string(resp.Content) != strconv.Itoa(status) {
			t.Errorf("status=%d: リレーのボディがそのまま返るべき: %q", status, resp.Content)
		}
	}
}

// TestRelay_ErrorMarker はERRORマーカーがRSS_PROXY_ERRORになり、
// 診断テキストが破棄されることをテストする。
func TestRelay_ErrorMarker(t *testing.T) {
	server := httptest.NewServer(relayHandler(t))
	defer server.Close()

	reader := newProxyReader(t, server.URL)
	resp, err := reader.Read(context.Background(), "http://not-proxy.example.com/feed?error=ERROR", Options{UseProxy: true})
	if err != nil {
		t.Fatalf("エラーは返らないべき: %v", err)
	}
	if resp.Status != StatusRSSProxyError {
		t.Errorf("期待: RSS_PROXY_ERROR, 結果: %d", resp.Status)
	}
	if len(resp.Content) != 0 {
		t.Errorf("リレーの診断テキストは破棄されるべき: %q", resp.Content)
	}
}

// TestRelay_MissingStatusHeader はステータスヘッダなしの応答が
// RSS_PROXY_ERRORになることをテストする。上流の5xxとは混同されない。
func TestRelay_MissingStatusHeader(t *testing.T) {
	server := httptest.NewServer(relayHandler(t))
	defer server.Close()

	reader := newProxyReader(t, server.URL)
	for _, relayStatus := range []int{301, 400, 403, 404, 500, 502} {
		target := fmt.Sprintf("http://not-proxy.example.com/feed?error=%d", relayStatus)
		resp, err := reader.Read(context.Background(), target, Options{UseProxy: true})
		if err != nil {
			t.Fatalf("relay_status=%d: エラーは返らないべき: %v", relayStatus, err)
		}
		if resp.Status != StatusRSSProxyError {
			t.Errorf("relay_status=%d: 期待: RSS_PROXY_ERROR, 結果: %d", relayStatus, resp.Status)
		}
	}
}

// TestRelay_Unreachable はリレー自体に接続できない場合に
// RSS_PROXY_ERRORになることをテストする。
func TestRelay_Unreachable(t *testing.T) {
	server := httptest.NewServer(relayHandler(t))
	proxyURL := server.URL
	server.Close()

	reader := newProxyReader(t, proxyURL)
	resp, err := reader.Read(context.Background(), "http://not-proxy.example.com/feed", Options{UseProxy: true})
	if err != nil {
		t.Fatalf("エラーは返らないべき: %v", err)
	}
	if resp.Status != StatusRSSProxyError {
		t.Errorf("期待: RSS_PROXY_ERROR, 結果: %d", resp.Status)
	}
}

// TestRelay_ContentTypeRejected はリレー経由でも上流のContent-Typeによる
// コンテンツ種別拒否が適用されることをテストする。
func TestRelay_ContentTypeRejected(t *testing.T) {
	pngBytes := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ProxyStatusHeader, "200")
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	}))
	defer server.Close()

	reader := newProxyReader(t, server.URL)
	resp, err := reader.Read(context.Background(), "http://not-proxy.example.com/image.png", Options{UseProxy: true})
	if err != nil {
		t.Fatalf("エラーは返らないべき: %v", err)
	}
	if resp.Status != StatusContentTypeNotSupportError {
		t.Errorf("期待: CONTENT_TYPE_NOT_SUPPORT_ERROR, 結果: %d", resp.Status)
	}
	if len(resp.Content) != 0 {
		t.Errorf("拒否時はコンテンツが破棄されるべき: %q", resp.Content)
	}

	// 許可オプション指定時はそのまま透過する
	resp, err = reader.Read(context.Background(), "http://not-proxy.example.com/image.png", Options{UseProxy: true, AllowNonWebpage: true})
	if err != nil {
		t.Fatalf("エラーは返らないべき: %v", err)
	}
	if resp.Status != 200 {
		t.Errorf("許可時は上流ステータスが透過されるべき: %d", resp.Status)
	}
	if string(resp.Content) != string(pngBytes) {
		t.Error("許可時はボディが保持されるべき")
	}
}

// TestRelay_FeedTypeEnrichment はリレー経由でもフィード種別と
// エンコーディングが付与されることをテストする。
func TestRelay_FeedTypeEnrichment(t *testing.T) {
	body := `<?xml version="1.0"?><rss version="2.0"><channel><title>Test</title></channel></rss>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ProxyStatusHeader, "200")
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	reader := newProxyReader(t, server.URL)
	resp, err := reader.Read(context.Background(), "http://not-proxy.example.com/feed", Options{UseProxy: true})
	if err != nil {
		t.Fatalf("エラーは返らないべき: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("期待: 2xx, 結果: %d", resp.Status)
	}
	if resp.FeedType == "" {
		t.Error("フィード種別が付与されるべき")
	}
	if resp.Encoding == "" {
		t.Error("エンコーディングが付与されるべき")
	}
}
