// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Fetch
	FetchTimeout   time.Duration
	FetchMaxSize   int64
	FetchUserAgent string

	// RSS Proxy
	RSSProxyURL   string
	RSSProxyToken string

	// Async Reader
	AsyncMaxConcurrent int
	AsyncRatePerSecond float64
}

// Load は環境変数からConfigを読み込む。
// 全フィールドにデフォルト値があるため、環境変数未設定でも起動できる。
// RSSプロキシはFEEDPIPE_RSS_PROXY_URLが設定された場合のみ有効になる。
func Load() *Config {
	cfg := &Config{}

	cfg.FetchTimeout = getEnvDuration("FEEDPIPE_FETCH_TIMEOUT", 30*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FEEDPIPE_FETCH_MAX_SIZE", 10*1024*1024)
	cfg.FetchUserAgent = getEnvString("FEEDPIPE_USER_AGENT", DefaultUserAgent)
	cfg.RSSProxyURL = getEnvString("FEEDPIPE_RSS_PROXY_URL", "")
	cfg.RSSProxyToken = getEnvString("FEEDPIPE_RSS_PROXY_TOKEN", "")
	cfg.AsyncMaxConcurrent = getEnvInt("FEEDPIPE_ASYNC_MAX_CONCURRENT", 10)
	cfg.AsyncRatePerSecond = getEnvFloat("FEEDPIPE_ASYNC_RATE_PER_SECOND", 0)

	return cfg
}

// DefaultUserAgent はフェッチ時に使用する既定のUser-Agentヘッダ値。
const DefaultUserAgent = "Feedpipe/1.0 Feed Fetcher"

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
