// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrPrivateAddress は解決先アドレスがポリシーによりブロックされたことを表す。
// 名前解決の失敗とは区別され、errors.Isで判定できる。
var ErrPrivateAddress = errors.New("private address blocked")

// AddressGuard は接続前のアドレス分類によるSSRF防止機能を提供する。
// フェッチ実行前にURLのホストを名前解決し、解決先がループバック・
// リンクローカル・プライベート帯域・非ルーティング帯域の場合は接続を拒否する。
type AddressGuard struct {
	resolver *net.Resolver
}

// NewAddressGuard はAddressGuardの新しいインスタンスを生成する。
func NewAddressGuard() *AddressGuard {
	return &AddressGuard{resolver: net.DefaultResolver}
}

// allowedSchemes はフェッチで許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は接続を拒否するネットワーク範囲。
// パッケージ初期化時に1回だけパースし、Checkでの分類に使用する。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// Check はURLのホストを名前解決し、解決先アドレスを分類する。
// いずれかの解決先がブロック対象帯域に含まれる場合はErrPrivateAddressを返す。
// 名前解決の失敗は別種のエラーとして返され、ポリシー拒否とは混同されない。
// このチェックはリクエスト送信前に完結し、対象ホストへデータは一切送られない。
func (g *AddressGuard) Check(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	// IPリテラルの場合は名前解決なしで分類する
	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("%w: %s", ErrPrivateAddress, ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("%w: host %s", ErrPrivateAddress, host)
	}

	// ホスト名の場合は解決先の全アドレスを分類する
	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("DNS resolution failed for %s: %w", host, err)
	}
	for _, addr := range addrs {
		if isBlockedIP(addr.IP) {
			return fmt.Errorf("%w: %s resolved to %s", ErrPrivateAddress, host, addr.IP.String())
		}
	}

	return nil
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// 事前のCheckをすり抜けるDNS再バインディング攻撃にも対応している。
// allowPrivateがtrueの場合は検証なしの通常クライアントを返す（テスト・イントラ用途）。
// リダイレクトは追跡しない。上流のステータスコードをそのまま透過するため、
// 3xxも終端結果として呼び出し元に返す。
func (g *AddressGuard) NewSafeClient(timeout time.Duration, allowPrivate bool) *http.Client {
	if allowPrivate {
		return &http.Client{
			Timeout:       timeout,
			CheckRedirect: noRedirect,
		}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		Build()

	wrappedClient := safeurl.Client(config)
	client := wrappedClient.Client
	client.CheckRedirect = noRedirect
	return client
}

// noRedirect はリダイレクトを追跡せず、最初のレスポンスをそのまま返させる。
func noRedirect(req *http.Request, via []*http.Request) error {
	return http.ErrUseLastResponse
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// blockedHostnames は名前解決を待たずに拒否するホスト名。
var blockedHostnames = []string{
	"localhost",
}

// isBlockedHostname はホスト名がブロック対象かを検証する。
func isBlockedHostname(host string) bool {
	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return true
		}
	}
	return false
}
