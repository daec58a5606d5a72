package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// News
	NewsProvider    string
	NewsSourcesFile string
	GNewsAPIKey     string
	NewsAPIKey      string

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Cache
	CacheTTL      time.Duration
	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rate Limit（req/min/IP）
	RateLimitPerMinute int

	// Server
	ServerPort        string
	CORSAllowedOrigin string
	// trueの場合のみX-Forwarded-For / X-Real-IPをクライアントIPとして信頼する
	TrustProxyHeaders bool

	// Logging
	LogLevel string

	// CLI
	PortalURL          string
	WatchlistDB        string
	AlphaVantageAPIKey string
	QuoteInterval      time.Duration
}

// 対応するキャッシュバックエンド。
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// LoadDotEnv はカレントディレクトリの.envを読み込む。
// ファイルが存在しない場合は何もしない。既存の環境変数は上書きしない。
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load は環境変数からConfigを読み込む。
// 値が不正な場合はエラーを返す。認証情報の有無はリクエスト時に判定するため、ここでは検証しない。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.NewsProvider = strings.ToLower(getEnvString("NEWS_PROVIDER", "rss2json"))
	cfg.NewsSourcesFile = getEnvString("NEWS_SOURCES_FILE", "")
	cfg.GNewsAPIKey = os.Getenv("GNEWS_API_KEY")
	cfg.NewsAPIKey = os.Getenv("NEWSAPI_KEY")

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)

	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 30*time.Minute)
	cfg.CacheBackend = strings.ToLower(getEnvString("CACHE_BACKEND", CacheBackendMemory))
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)

	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 60)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)

	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))

	cfg.PortalURL = strings.TrimRight(getEnvString("PORTAL_URL", "http://localhost:"+cfg.ServerPort), "/")
	cfg.WatchlistDB = expandPath(getEnvString("WATCHLIST_DB", defaultWatchlistDB()))
	cfg.AlphaVantageAPIKey = os.Getenv("ALPHAVANTAGE_API_KEY")
	cfg.QuoteInterval = getEnvDuration("QUOTE_INTERVAL", 12*time.Second)

	var invalid []string
	if cfg.CacheBackend != CacheBackendMemory && cfg.CacheBackend != CacheBackendRedis {
		invalid = append(invalid, "CACHE_BACKEND")
	}
	if cfg.FetchTimeout <= 0 {
		invalid = append(invalid, "FETCH_TIMEOUT")
	}
	if cfg.CacheTTL <= 0 {
		invalid = append(invalid, "CACHE_TTL")
	}
	if cfg.FetchMaxSize <= 0 {
		invalid = append(invalid, "FETCH_MAX_SIZE")
	}
	if cfg.RateLimitPerMinute <= 0 {
		invalid = append(invalid, "RATE_LIMIT_PER_MINUTE")
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}

	return cfg, nil
}

// Credentials は認証情報を環境変数名で引けるマップとして返す。
// ソース定義のcredential_envと突き合わせて使う。extraに渡した環境変数名は起動時の値を読み込んで加える。
func (c *Config) Credentials(extra ...string) map[string]string {
	creds := map[string]string{
		"GNEWS_API_KEY": c.GNewsAPIKey,
		"NEWSAPI_KEY":   c.NewsAPIKey,
	}
	for _, name := range extra {
		if _, ok := creds[name]; ok {
			continue
		}
		creds[name] = os.Getenv(name)
	}
	return creds
}

func defaultWatchlistDB() string {
	return filepath.Join("~", ".config", "portal", "watchlist.db")
}

// expandPath は先頭の~をホームディレクトリに展開する。
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
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
