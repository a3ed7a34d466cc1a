package config

import (
	"testing"
	"time"
)

// TestLoad_Defaults は環境変数未設定時にデフォルト値で起動できることをテストする。
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FEEDPIPE_FETCH_TIMEOUT", "")
	t.Setenv("FEEDPIPE_FETCH_MAX_SIZE", "")
	t.Setenv("FEEDPIPE_USER_AGENT", "")
	t.Setenv("FEEDPIPE_RSS_PROXY_URL", "")
	t.Setenv("FEEDPIPE_RSS_PROXY_TOKEN", "")
	t.Setenv("FEEDPIPE_ASYNC_MAX_CONCURRENT", "")
	t.Setenv("FEEDPIPE_ASYNC_RATE_PER_SECOND", "")

	cfg := Load()
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeoutのデフォルト値が不正: %v", cfg.FetchTimeout)
	}
	if cfg.FetchMaxSize != 10*1024*1024 {
		t.Errorf("FetchMaxSizeのデフォルト値が不正: %d", cfg.FetchMaxSize)
	}
	if cfg.FetchUserAgent != DefaultUserAgent {
		t.Errorf("FetchUserAgentのデフォルト値が不正: %q", cfg.FetchUserAgent)
	}
	if cfg.RSSProxyURL != "" {
		t.Errorf("RSSProxyURLのデフォルトは空であるべき: %q", cfg.RSSProxyURL)
	}
	if cfg.AsyncMaxConcurrent != 10 {
		t.Errorf("AsyncMaxConcurrentのデフォルト値が不正: %d", cfg.AsyncMaxConcurrent)
	}
	if cfg.AsyncRatePerSecond != 0 {
		t.Errorf("AsyncRatePerSecondのデフォルト値が不正: %f", cfg.AsyncRatePerSecond)
	}
}

// TestLoad_Overrides は環境変数による上書きをテストする。
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FEEDPIPE_FETCH_TIMEOUT", "5s")
	t.Setenv("FEEDPIPE_FETCH_MAX_SIZE", "1048576")
	t.Setenv("FEEDPIPE_USER_AGENT", "CustomAgent/2.0")
	t.Setenv("FEEDPIPE_RSS_PROXY_URL", "http://proxy.example.com/relay")
	t.Setenv("FEEDPIPE_RSS_PROXY_TOKEN", "secret")
	t.Setenv("FEEDPIPE_ASYNC_MAX_CONCURRENT", "4")
	t.Setenv("FEEDPIPE_ASYNC_RATE_PER_SECOND", "2.5")

	cfg := Load()
	if cfg.FetchTimeout != 5*time.Second {
		t.Errorf("FetchTimeoutが上書きされるべき: %v", cfg.FetchTimeout)
	}
	if cfg.FetchMaxSize != 1048576 {
		t.Errorf("FetchMaxSizeが上書きされるべき: %d", cfg.FetchMaxSize)
	}
	if cfg.FetchUserAgent != "CustomAgent/2.0" {
		t.Errorf("FetchUserAgentが上書きされるべき: %q", cfg.FetchUserAgent)
	}
	if cfg.RSSProxyURL != "http://proxy.example.com/relay" {
		t.Errorf("RSSProxyURLが上書きされるべき: %q", cfg.RSSProxyURL)
	}
	if cfg.RSSProxyToken != "secret" {
		t.Errorf("RSSProxyTokenが上書きされるべき: %q", cfg.RSSProxyToken)
	}
	if cfg.AsyncMaxConcurrent != 4 {
		t.Errorf("AsyncMaxConcurrentが上書きされるべき: %d", cfg.AsyncMaxConcurrent)
	}
	if cfg.AsyncRatePerSecond != 2.5 {
		t.Errorf("AsyncRatePerSecondが上書きされるべき: %f", cfg.AsyncRatePerSecond)
	}
}

// TestLoad_InvalidValues は不正な値がデフォルトへフォールバックすることをテストする。
func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("FEEDPIPE_FETCH_TIMEOUT", "not-a-duration")
	t.Setenv("FEEDPIPE_FETCH_MAX_SIZE", "abc")
	t.Setenv("FEEDPIPE_ASYNC_MAX_CONCURRENT", "xyz")

	cfg := Load()
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("不正なdurationはデフォルトに戻るべき: %v", cfg.FetchTimeout)
	}
	if cfg.FetchMaxSize != 10*1024*1024 {
		t.Errorf("不正な整数はデフォルトに戻るべき: %d", cfg.FetchMaxSize)
	}
	if cfg.AsyncMaxConcurrent != 10 {
		t.Errorf("不正な整数はデフォルトに戻るべき: %d", cfg.AsyncMaxConcurrent)
	}
}
