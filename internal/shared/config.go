package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	MetricsAddr   string
	StorageDriver string
	MySQLDSN      string
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	CacheTTL      time.Duration

	JWTSecret   string
	JWTAudience string
	CORSOrigins []string
	RateLimit   string

	ReviewAutoApprove bool
	ViewBuffer        int
	ViewFlush         time.Duration

	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string

	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	SMTPFrom      string
	PublicBaseURL string

	LegacyBase     string
	LegacyKey      string
	ImportWorkers  int
	ImportPageSize int
	ImportRPS      int
}

// Load reads the environment after an optional .env file. Variables already
// set in the environment win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env")
	}
	return fromEnv()
}

func fromEnv() Config {
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ":9100"),
		StorageDriver: strings.ToLower(env("STORAGE_DRIVER", "mysql")),
		MySQLDSN:      env("MYSQL_DSN", "root:root@tcp(localhost:3306)/midtown?parseTime=true&charset=utf8mb4,utf8&loc=UTC&clientFoundRows=true"),
		RedisAddr:     env("REDIS_ADDR", ""),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		JWTSecret:   env("JWT_SECRET", ""),
		JWTAudience: env("JWT_AUDIENCE", "authenticated"),
		CORSOrigins: list("CORS_ORIGINS"),
		RateLimit:   env("RATE_LIMIT", "300-M"),

		ReviewAutoApprove: boolean("REVIEW_AUTO_APPROVE", false),
		ViewBuffer:        atoi("VIEW_BUFFER", 4096),
		ViewFlush:         time.Duration(atoi("VIEW_FLUSH_INTERVAL_SECONDS", 10)) * time.Second,

		S3Region:    env("S3_REGION", "us-east-1"),
		S3Bucket:    env("S3_BUCKET", ""),
		S3AccessKey: env("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey: env("AWS_SECRET_ACCESS_KEY", ""),
		S3Endpoint:  env("S3_ENDPOINT", ""),

		SMTPHost:      env("SMTP_HOST", ""),
		SMTPPort:      atoi("SMTP_PORT", 587),
		SMTPUser:      env("SMTP_USER", ""),
		SMTPPass:      env("SMTP_PASSWORD", ""),
		SMTPFrom:      env("SMTP_FROM", "Midtown Book <no-reply@midtownbook.local>"),
		PublicBaseURL: env("PUBLIC_BASE_URL", "http://localhost:3000"),

		LegacyBase:     env("LEGACY_BASE_URL", ""),
		LegacyKey:      env("LEGACY_API_KEY", ""),
		ImportWorkers:  atoi("IMPORT_WORKERS", 8),
		ImportPageSize: atoi("IMPORT_PAGE_SIZE", 500),
		ImportRPS:      atoi("IMPORT_RPS", 5),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty; authenticated routes will reject every token")
	}
	return c
}

// DocumentsEnabled reports whether claim documents can be stored.
func (c Config) DocumentsEnabled() bool { return c.S3Bucket != "" }

// MailEnabled reports whether claim decisions are e-mailed.
func (c Config) MailEnabled() bool { return c.SMTPHost != "" }

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not an integer; using default")
	}
	return def
}

func boolean(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not a boolean; using default")
	}
	return def
}

// list splits a comma separated variable, dropping blanks.
func list(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
