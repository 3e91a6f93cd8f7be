package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	AppEnv   string
	HTTPAddr string

	StoreDriver string
	StoreDSN    string

	SetsSourceURL    string
	SetsCacheTTLMins int

	ExplainProxyURL string

	FeedbackRelayURL  string
	FeedbackRecipient string

	NavTransitionMS  int
	RestoreNoticeMS  int
	RateLimitPerMin  int
	CORSAllowOrigins []string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string
}

func LoadConfig() Config {
	// A local .env is optional; a missing file is fine.
	_ = godotenv.Load()

	smtpPort := 587
	if p := stringsToInt(os.Getenv("SMTP_PORT")); p > 0 {
		smtpPort = p
	}

	origins := []string{"*"}
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS")); v != "" {
		origins = origins[:0]
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return Config{
		AppEnv:            envOrDefault("APP_ENV", "development"),
		HTTPAddr:          envOrDefault("HTTP_ADDR", ":8080"),
		StoreDriver:       envOrDefault("STORE_DRIVER", "sqlite"),
		StoreDSN:          envOrDefault("STORE_DSN", "file:mcqsr.db"),
		SetsSourceURL:     envOrDefault("SETS_SOURCE_URL", ""),
		SetsCacheTTLMins:  intOrDefault("SETS_CACHE_TTL_MINUTES", 15),
		ExplainProxyURL:   os.Getenv("EXPLAIN_PROXY_URL"),
		FeedbackRelayURL:  os.Getenv("FEEDBACK_RELAY_URL"),
		FeedbackRecipient: os.Getenv("FEEDBACK_RECIPIENT"),
		NavTransitionMS:   intOrDefault("NAV_TRANSITION_MS", 100),
		RestoreNoticeMS:   intOrDefault("RESTORE_NOTICE_MS", 1000),
		RateLimitPerMin:   intOrDefault("RATE_LIMIT_PER_MINUTE", 120),
		CORSAllowOrigins:  origins,
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          smtpPort,
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPass:          os.Getenv("SMTP_PASS"),
		SMTPFrom:          envOrDefault("SMTP_FROM", "noreply@mcqsr.local"),
	}
}

func (c Config) NavTransition() time.Duration {
	return time.Duration(c.NavTransitionMS) * time.Millisecond
}

func (c Config) RestoreNotice() time.Duration {
	return time.Duration(c.RestoreNoticeMS) * time.Millisecond
}

func (c Config) SetsCacheTTL() time.Duration {
	return time.Duration(c.SetsCacheTTLMins) * time.Minute
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsToInt(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

func intOrDefault(key string, fallback int) int {
	v := stringsToInt(os.Getenv(key))
	if v <= 0 {
		return fallback
	}
	return v
}
