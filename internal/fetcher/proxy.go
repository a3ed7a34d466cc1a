package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// ProxyStatusHeader はリレーが実際の上流ステータスを通知するレスポンスヘッダ。
// 値は整数のステータスコード、またはリレー自体の失敗を表すリテラルERROR。
const ProxyStatusHeader = "x-rss-proxy-status"

// proxyStatusError はリレー自体の失敗を表すヘッダ値。
const proxyStatusError = "ERROR"

// relayRequest はリレーに送信するリクエストボディのワイヤフォーマット。
type relayRequest struct {
	Token   string            `json:"token"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

// ProxyRelayClient は信頼できるリレー経由のフェッチを実行する。
// 対象ホストが直接アクセスをブロックしている場合や、検証済みの
// エグレス経路が必要な場合に使用される。
// リレーが実際のフェッチを行い、上流ステータスはレスポンスヘッダで通知される。
type ProxyRelayClient struct {
	httpClient *http.Client
	proxyURL   string
	token      string
	logger     *slog.Logger
}

// NewProxyRelayClient はProxyRelayClientの新しいインスタンスを生成する。
func NewProxyRelayClient(proxyURL, token string, timeout time.Duration, logger *slog.Logger) *ProxyRelayClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProxyRelayClient{
		httpClient: &http.Client{Timeout: timeout},
		proxyURL:   proxyURL,
		token:      token,
		logger:     logger,
	}
}

// Relay はリレー経由でURLをフェッチし、正規化された結果を返す。
// ヘッダ値が整数の場合はその上流ステータスとリレーが返したボディをそのまま採用し、
// 上流のContent-Typeも併せて返す（コンテンツ種別判定は直接フェッチと共通）。
// ヘッダ値がERRORの場合、ボディはリレー内部の診断テキストであり破棄する。
// リレー側のトークン不一致等はリレーの責務であり、ここでは結果をそのまま伝える。
func (c *ProxyRelayClient) Relay(ctx context.Context, targetURL string, headers map[string]string) (*FeedResponse, string) {
	payload := relayRequest{
		Token:   c.token,
		Method:  http.MethodGet,
		URL:     targetURL,
		Headers: headers,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("リレーリクエストのエンコードに失敗しました",
			slog.String("url", targetURL),
			slog.String("error", err.Error()),
		)
		return &FeedResponse{Status: StatusRSSProxyError, URL: targetURL}, ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.proxyURL, bytes.NewReader(body))
	if err != nil {
		return &FeedResponse{Status: StatusRSSProxyError, URL: targetURL}, ""
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("リレーへのリクエストに失敗しました",
			slog.String("proxy_url", c.proxyURL),
			slog.String("url", targetURL),
			slog.String("error", err.Error()),
		)
		return &FeedResponse{Status: StatusRSSProxyError, URL: targetURL}, ""
	}
	defer resp.Body.Close()

	statusValue := resp.Header.Get(ProxyStatusHeader)
	if statusValue == "" || statusValue == proxyStatusError {
		if statusValue == "" {
			c.logger.Warn("リレーがステータスヘッダを返しませんでした",
				slog.String("url", targetURL),
				slog.Int("relay_http_status", resp.StatusCode),
			)
		}
		return &FeedResponse{Status: StatusRSSProxyError, URL: targetURL}, ""
	}

	upstreamStatus, err := strconv.Atoi(statusValue)
	if err != nil {
		c.logger.Warn("リレーのステータスヘッダが不正です",
			slog.String("url", targetURL),
			slog.String("header_value", statusValue),
		)
		return &FeedResponse{Status: StatusRSSProxyError, URL: targetURL}, ""
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FeedResponse{Status: StatusRSSProxyError, URL: targetURL}, ""
	}

	return &FeedResponse{
		Status:  upstreamStatus,
		URL:     targetURL,
		Content: content,
	}, resp.Header.Get("Content-Type")
}
