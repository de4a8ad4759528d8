// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultFrontendURL  = "http://localhost:8000"
	defaultGroqURL      = "https://api.groq.com/openai/v1/chat/completions"
	defaultGroqModel    = "llama-3.1-8b-instant"
	defaultServerPort   = "8000"
	defaultDotEnvFile   = ".env"
	defaultLogLevelName = "info"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// リクエスト処理中に環境変数を直接参照してはならない。
type Config struct {
	// CORS
	FrontendURL string

	// Identity (Google Sign-In)
	GoogleClientID  string
	IdentityTimeout time.Duration

	// Session
	SessionSecret string
	CookieSecure  bool // trueの場合はTLS判定に関係なくSecure属性を付与する

	// Completion (Groq)
	GroqAPIKey        string
	GroqURL           string
	GroqModel         string
	CompletionTimeout time.Duration

	// Storage（任意）
	DatabaseURL    string
	StorageTimeout time.Duration

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitChat    int

	// Server
	ServerPort string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envファイルがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須項目が欠けていてもエラーにはせず、MissingRequiredで呼び出し側が検出してログに出す。
func Load() *Config {
	// .envが無いのは正常系
	_ = godotenv.Load(defaultDotEnvFile)

	cfg := &Config{}

	cfg.FrontendURL = getEnvString("FRONTEND_URL", defaultFrontendURL)
	cfg.GoogleClientID = strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID"))
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	cfg.GroqAPIKey = strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.GroqURL = getEnvString("GROQ_URL", defaultGroqURL)
	cfg.GroqModel = getEnvString("GROQ_MODEL", defaultGroqModel)
	cfg.CompletionTimeout = getEnvDuration("COMPLETION_TIMEOUT", 30*time.Second)
	cfg.IdentityTimeout = getEnvDuration("IDENTITY_TIMEOUT", 10*time.Second)
	cfg.StorageTimeout = getEnvDuration("STORAGE_TIMEOUT", 5*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitChat = getEnvInt("RATE_LIMIT_CHAT", 20)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.LogLevel = getEnvString("LOG_LEVEL", defaultLogLevelName)

	// PaaSが注入するPORTをSERVER_PORTより優先度低で受け付ける
	cfg.ServerPort = getEnvString("SERVER_PORT", getEnvString("PORT", defaultServerPort))

	return cfg
}

// MissingRequired は未設定の必須環境変数名を返す。
// DATABASE_URLは任意のため含まない。
func (c *Config) MissingRequired() []string {
	var missing []string
	if c.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if c.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if c.GroqAPIKey == "" {
		missing = append(missing, "GROQ_API_KEY")
	}
	return missing
}

// StorageEnabled は履歴ストレージの接続文字列が設定されているかを返す。
func (c *Config) StorageEnabled() bool {
	return c.DatabaseURL != ""
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
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
	if err != nil || i <= 0 {
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
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
