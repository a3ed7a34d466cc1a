package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hitoshi/feedpipe/internal/charset"
	"github.com/hitoshi/feedpipe/internal/config"
	"github.com/hitoshi/feedpipe/internal/model"
	"github.com/hitoshi/feedpipe/internal/security"
	"github.com/hitoshi/feedpipe/internal/sniff"
)

// Options はフェッチ1回のオプション群。
type Options struct {
	// UseProxy はリレー経由でフェッチすることを示す。
	// リレーが設定されていない状態でtrueを指定するとエラーになる。
	UseProxy bool
	// AllowPrivateAddress はプライベートアドレスへの接続を許可する。
	AllowPrivateAddress bool
	// AllowNonWebpage はフィード/ウェブページ以外のコンテンツ種別を許可する。
	AllowNonWebpage bool
}

// AddressChecker はアドレスポリシー検証のインターフェース。
// security.AddressGuardを抽象化してテスタビリティを向上させる。
type AddressChecker interface {
	Check(ctx context.Context, rawURL string) error
	NewSafeClient(timeout time.Duration, allowPrivate bool) *http.Client
}

// FeedReader はフィードURLのフェッチを実行する。
// 呼び出しごとに独立しており、設定以外の共有可変状態を持たない。
type FeedReader struct {
	guard       AddressChecker
	proxy       *ProxyRelayClient
	logger      *slog.Logger
	userAgent   string
	timeout     time.Duration
	maxBodySize int64
}

// NewFeedReader はFeedReaderの新しいインスタンスを生成する。
// cfg.RSSProxyURLが設定されている場合はリレークライアントも構成される。
func NewFeedReader(cfg *config.Config, guard AddressChecker, logger *slog.Logger) *FeedReader {
	if logger == nil {
		logger = slog.Default()
	}
	r := &FeedReader{
		guard:       guard,
		logger:      logger,
		userAgent:   cfg.FetchUserAgent,
		timeout:     cfg.FetchTimeout,
		maxBodySize: cfg.FetchMaxSize,
	}
	if cfg.RSSProxyURL != "" {
		r.proxy = NewProxyRelayClient(cfg.RSSProxyURL, cfg.RSSProxyToken, cfg.FetchTimeout, logger)
	}
	return r
}

// HasRSSProxy はリレーが設定されているかどうかを返す。
func (r *FeedReader) HasRSSProxy() bool {
	return r.proxy != nil
}

// Read はURLをフェッチして正規化された結果を返す。
// 1回の呼び出しは1回の論理的な試行であり、内部リトライは行わない。
// アドレスポリシー拒否・コンテンツ種別拒否・トランスポート失敗は
// センチネルステータスとして結果に反映され、エラーにはならない。
// エラーが返るのは設定不備（リレー未設定でのUseProxy等）の場合のみ。
func (r *FeedReader) Read(ctx context.Context, rawURL string, opts Options) (*FeedResponse, error) {
	if opts.UseProxy {
		if r.proxy == nil {
			return nil, model.NewInvalidConfigError("rss proxy is not configured")
		}
		resp, contentType := r.proxy.Relay(ctx, rawURL, r.relayHeaders())
		return r.enrich(resp, contentType, opts), nil
	}

	// 接続前のアドレスポリシー検証。
	// 拒否された場合はネットワークI/Oを一切行わずに終了する。
	if !opts.AllowPrivateAddress {
		if err := r.guard.Check(ctx, rawURL); err != nil {
			return r.classifyGuardError(rawURL, err)
		}
	}

	client := r.guard.NewSafeClient(r.timeout, opts.AllowPrivateAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := client.Do(req)
	if err != nil {
		return &FeedResponse{Status: classifyTransportError(err), URL: rawURL}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodySize))
	if err != nil {
		r.logger.Warn("レスポンスボディの読み取りに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return &FeedResponse{Status: classifyTransportError(err), URL: rawURL}, nil
	}

	result := &FeedResponse{
		Status:  resp.StatusCode,
		URL:     rawURL,
		Content: body,
	}
	return r.enrich(result, resp.Header.Get("Content-Type"), opts), nil
}

// acceptHeader はフェッチ時に送信するAcceptヘッダ値。
const acceptHeader = "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*"

// relayHeaders はリレーに転送させるリクエストヘッダを構築する。
func (r *FeedReader) relayHeaders() map[string]string {
	return map[string]string{
		"User-Agent": r.userAgent,
		"Accept":     acceptHeader,
	}
}

// enrich はペイロードに対してコンテンツ種別判定とエンコーディング検出を適用する。
// 種別が許可されない場合はボディを破棄してセンチネルステータスに差し替える。
// リレー経由・直接フェッチの両方で同一の判定が適用される。
func (r *FeedReader) enrich(resp *FeedResponse, declaredContentType string, opts Options) *FeedResponse {
	if len(resp.Content) == 0 && declaredContentType == "" {
		return resp
	}

	supported, feedType := sniff.Classify(declaredContentType, resp.Content)
	if !supported && !opts.AllowNonWebpage {
		return &FeedResponse{
			Status: StatusContentTypeNotSupportError,
			URL:    resp.URL,
		}
	}

	resp.FeedType = feedType
	if len(resp.Content) > 0 {
		resp.Encoding = charset.Detect(declaredCharset(declaredContentType), resp.Content)
	}
	return resp
}

// declaredCharset はContent-Typeヘッダからcharsetパラメータを抽出する。
// 引用やパラメータ大文字小文字の揺れに耐える。
func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err == nil {
		if cs, ok := params["charset"]; ok {
			return cs
		}
		return ""
	}
	// パース不能なヘッダからのベストエフォート抽出
	for _, part := range strings.Split(contentType, ";") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 && strings.EqualFold(strings.TrimSpace(kv[0]), "charset") {
			return strings.Trim(strings.TrimSpace(kv[1]), `"'`)
		}
	}
	return ""
}

// classifyGuardError はアドレス検証エラーを結果またはエラーに分類する。
// ポリシー拒否と名前解決失敗はセンチネルステータス、URL自体の不備はエラー。
func (r *FeedReader) classifyGuardError(rawURL string, err error) (*FeedResponse, error) {
	if errors.Is(err, security.ErrPrivateAddress) {
		r.logger.Info("プライベートアドレスへのフェッチをブロックしました",
			slog.String("url", rawURL),
		)
		return &FeedResponse{Status: StatusPrivateAddressError, URL: rawURL}, nil
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &FeedResponse{Status: StatusDNSError, URL: rawURL}, nil
	}
	return nil, model.NewInvalidURLError(err.Error())
}

// classifyTransportError はトランスポート失敗をセンチネルステータスに分類する。
func classifyTransportError(err error) int {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return StatusDNSError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeoutError
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return StatusTimeoutError
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return StatusConnectionError
	}
	if errors.Is(err, context.Canceled) {
		return StatusConnectionError
	}
	// url.Errorにラップされた接続失敗を拾う
	if strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset") {
		return StatusConnectionError
	}
	return StatusUnknownError
}
