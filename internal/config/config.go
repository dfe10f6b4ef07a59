// Package config はshopmonの設定を提供する。
// 環境変数から読み込む実行時設定（Config）と、
// 監視対象サイトと通知先を記述するJSONドキュメント（Document）の両方を扱う。
package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の実行時設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// ConfigPath は監視設定ドキュメントのパス。
	// 空の場合はconfig.private.json、次にconfig.jsonを探す。
	ConfigPath string

	// Logging
	LogLevel string

	// Fetch
	FetchTimeout   time.Duration
	WebhookTimeout time.Duration

	// SafeFetch が真の場合、上流フェッチにSSRF防止付きクライアントを使用する。
	SafeFetch bool

	// Status server
	StatusPort      string
	StatusRateLimit int // req/min/IP
}

// Load は環境変数からConfigを読み込む。
// すべての項目にデフォルト値があるため、エラーは返さない。
func Load() *Config {
	return &Config{
		ConfigPath:      getEnvString("CONFIG_PATH", ""),
		LogLevel:        getEnvString("LOG_LEVEL", "info"),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		WebhookTimeout:  getEnvDuration("WEBHOOK_TIMEOUT", 15*time.Second),
		SafeFetch:       getEnvBool("SAFE_FETCH", false),
		StatusPort:      getEnvString("STATUS_PORT", "8080"),
		StatusRateLimit: getEnvInt("STATUS_RATE_LIMIT", 120),
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
