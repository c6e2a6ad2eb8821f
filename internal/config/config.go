package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 資格情報ストアのバックエンド種別。
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend API
	APIBaseURL      string
	APITimeout      time.Duration
	APIMaxBodySize  int64
	APIStrictEgress bool

	// Credential store
	CredentialBackend       string
	DatabaseURL             string
	RedisURL                string
	CredentialTTL           time.Duration
	CredentialRetentionDays int

	// Session
	SessionIdleTTL        time.Duration
	BrowsingContextMaxAge int

	// Rate Limit
	RateLimitGeneral int
	RateLimitLogin   int

	// Worker
	CleanupInterval time.Duration

	// Server
	ServerPort        string
	BaseURL           string
	TrustProxyHeaders bool

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、またはバックエンドの指定が矛盾している場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.APIBaseURL = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "API_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 30*time.Second)
	cfg.APIMaxBodySize = getEnvInt64("API_MAX_BODY_SIZE", 10485760)
	cfg.APIStrictEgress = getEnvBool("API_STRICT_EGRESS", false)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.CredentialTTL = getEnvDuration("CREDENTIAL_TTL", 0)
	cfg.CredentialRetentionDays = getEnvInt("CREDENTIAL_RETENTION_DAYS", 30)
	cfg.SessionIdleTTL = getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute)
	cfg.BrowsingContextMaxAge = getEnvInt("BROWSING_CONTEXT_MAX_AGE", 2592000)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	backend, err := resolveBackend(os.Getenv("CREDENTIAL_BACKEND"), cfg.DatabaseURL, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	cfg.CredentialBackend = backend

	return cfg, nil
}

// resolveBackend は明示指定がなければDATABASE_URL、REDIS_URLの順に
// 設定されているものを選び、どちらもなければmemoryとする。
func resolveBackend(explicit, databaseURL, redisURL string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case "":
		switch {
		case databaseURL != "":
			return BackendPostgres, nil
		case redisURL != "":
			return BackendRedis, nil
		default:
			return BackendMemory, nil
		}
	case BackendMemory:
		return BackendMemory, nil
	case BackendPostgres:
		if databaseURL == "" {
			return "", fmt.Errorf("CREDENTIAL_BACKEND=postgres requires DATABASE_URL")
		}
		return BackendPostgres, nil
	case BackendRedis:
		if redisURL == "" {
			return "", fmt.Errorf("CREDENTIAL_BACKEND=redis requires REDIS_URL")
		}
		return BackendRedis, nil
	default:
		return "", fmt.Errorf("unknown CREDENTIAL_BACKEND: %q (allowed: memory, postgres, redis)", explicit)
	}
}

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
