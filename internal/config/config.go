package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 署名シークレットとDB接続先はここからコンストラクタへ明示的に渡す。
type Config struct {
	// Database
	DatabaseURL string

	// Session Token
	JWTSecret    string
	TokenTTL     time.Duration
	CookieMaxAge time.Duration
	CookieSecure bool
	CookieDomain string

	// OAuth（任意。未設定の場合はサーバー側のGoogleログインフローを無効化する）
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Worker
	CleanupInterval   time.Duration
	WorkerMetricsPort string // workerプロセスの/metrics公開ポート

	// Logging
	LogLevel string

	// Server
	Port          string
	PublicBaseURL string

	// CORS
	FrontendURL string
}

// GoogleOAuthEnabled はGoogle OAuthの認可コードフローが設定済みかを返す。
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 24*time.Hour)
	cfg.CookieMaxAge = getEnvDuration("COOKIE_MAX_AGE", 15*24*time.Hour)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", true)
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.GoogleClientID = getEnvString("GOOGLE_CLIENT_ID", "")
	cfg.GoogleClientSecret = getEnvString("GOOGLE_CLIENT_SECRET", "")
	cfg.GoogleRedirectURL = getEnvString("GOOGLE_REDIRECT_URL", "")
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.WorkerMetricsPort = getEnvString("WORKER_METRICS_PORT", "9091")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.Port = getEnvString("PORT", "3000")
	cfg.FrontendURL = getEnvString("FRONTEND_URL", "http://localhost:5173")
	cfg.PublicBaseURL = getEnvString("PUBLIC_BASE_URL", cfg.FrontendURL)

	// 0以下の期間は発行直後に失効するトークンやTickerのpanicになる
	var nonPositive []string
	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"TOKEN_TTL", cfg.TokenTTL},
		{"COOKIE_MAX_AGE", cfg.CookieMaxAge},
		{"CLEANUP_INTERVAL", cfg.CleanupInterval},
	} {
		if d.value <= 0 {
			nonPositive = append(nonPositive, d.key)
		}
	}
	if len(nonPositive) > 0 {
		return nil, fmt.Errorf("durations must be positive: %v", nonPositive)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
