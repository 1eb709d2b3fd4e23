// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the database, payment processor credentials, auth, object storage,
// caching, the chat assistant, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "quilt-shop-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the SQL backend.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file
	URL    string // Postgres DSN
}

// StripeConfig holds payment processor credentials.
type StripeConfig struct {
	SecretKey     string // STRIPE_SECRET_KEY (required)
	WebhookSecret string // STRIPE_WEBHOOK_SECRET (required)
	Currency      string // ISO currency for checkout line items
	APIURL        string // optional API base override (stripe-mock, tests)
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret     string        // JWT_SECRET (required)
	TokenTTL      time.Duration // JWT_TTL
	CookieName    string        // AUTH_COOKIE
	CookieSecure  bool          // AUTH_COOKIE_SECURE
	AdminEmail    string        // bootstrap admin (optional)
	AdminPassword string
}

// LLMConfig configures the hosted language model used by the chat assistant.
type LLMConfig struct {
	APIKey       string // empty disables the model; retrieval-only answers are served
	BaseURL      string
	Model        string
	Temperature  float64
	MaxTokens    int
	HistoryLimit int
}

// StorageConfig configures the S3-compatible object store for pattern files.
type StorageConfig struct {
	Endpoint       string // empty disables object storage
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	UseSSL         bool
	PublicURL      string // base URL used to build public links for uploaded files
	DownloadURLTTL time.Duration
	UploadMaxBytes int64
}

// Enabled reports whether object storage is configured.
func (s StorageConfig) Enabled() bool { return strings.TrimSpace(s.Endpoint) != "" }

// RedisConfig configures the optional catalog cache.
type RedisConfig struct {
	Addr     string // empty disables caching
	Password string
	DB       int
	TTL      time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes
	WebhookPath    string // processor webhook route (outside APIBasePath)
	PublicOrigin   string // storefront origin used for checkout redirects

	// App
	DB            DBConfig
	KnowledgePath string // optional markdown guide indexed for the assistant

	Stripe  StripeConfig
	Auth    AuthConfig
	LLM     LLMConfig
	Storage StorageConfig
	Redis   RedisConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		WebhookPath:    normalizeBasePath(getenv("WEBHOOK_PATH", "/api/stripe/webhook")),
		PublicOrigin:   strings.TrimRight(getenv("PUBLIC_ORIGIN", "http://localhost:3000"), "/"),

		// App
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "app.db"),
			URL:    getenv("DATABASE_URL", ""),
		},
		KnowledgePath: getenv("KNOWLEDGE_PATH", ""),

		Stripe: StripeConfig{
			SecretKey:     getenv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getenv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(getenv("STRIPE_CURRENCY", "usd")),
			APIURL:        getenv("STRIPE_API_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:     getenv("JWT_SECRET", ""),
			TokenTTL:      getdur("JWT_TTL", 7*24*time.Hour),
			CookieName:    getenv("AUTH_COOKIE", "auth_token"),
			CookieSecure:  getbool("AUTH_COOKIE_SECURE", false),
			AdminEmail:    strings.ToLower(strings.TrimSpace(getenv("ADMIN_EMAIL", ""))),
			AdminPassword: getenv("ADMIN_PASSWORD", ""),
		},
		LLM: LLMConfig{
			APIKey:       getenv("OPENAI_API_KEY", ""),
			BaseURL:      getenv("OPENAI_BASE_URL", ""),
			Model:        getenv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature:  getfloat("OPENAI_TEMPERATURE", 0.7),
			MaxTokens:    getint("OPENAI_MAX_TOKENS", 1000),
			HistoryLimit: getint("CHAT_HISTORY_LIMIT", 20),
		},
		Storage: StorageConfig{
			Endpoint:       getenv("S3_ENDPOINT", ""),
			AccessKey:      getenv("S3_ACCESS_KEY", ""),
			SecretKey:      getenv("S3_SECRET_KEY", ""),
			Bucket:         getenv("S3_BUCKET", "patterns"),
			Region:         getenv("S3_REGION", "us-east-1"),
			UseSSL:         getbool("S3_USE_SSL", true),
			PublicURL:      strings.TrimRight(getenv("S3_PUBLIC_URL", ""), "/"),
			DownloadURLTTL: getdur("DOWNLOAD_URL_TTL", 15*time.Minute),
			UploadMaxBytes: int64(getint("UPLOAD_MAX_BYTES", 25<<20)),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
			TTL:      getdur("CATALOG_CACHE_TTL", 5*time.Minute),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "quilt-shop-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" || cfg.DB.Driver == "pg" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}

	// Secrets: fail fast rather than at first use.
	if strings.TrimSpace(cfg.Stripe.SecretKey) == "" {
		return cfg, errors.New("STRIPE_SECRET_KEY is required")
	}
	if strings.TrimSpace(cfg.Stripe.WebhookSecret) == "" {
		return cfg, errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	if len(cfg.Stripe.Currency) != 3 {
		return cfg, errors.New("STRIPE_CURRENCY must be a 3-letter ISO code")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return cfg, errors.New("JWT_TTL must be > 0")
	}
	if (cfg.Auth.AdminEmail == "") != (cfg.Auth.AdminPassword == "") {
		return cfg, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return cfg, errors.New("OPENAI_TEMPERATURE must be in [0,2]")
	}
	if cfg.LLM.MaxTokens <= 0 {
		return cfg, errors.New("OPENAI_MAX_TOKENS must be > 0")
	}
	if cfg.LLM.HistoryLimit < 1 {
		return cfg, errors.New("CHAT_HISTORY_LIMIT must be >= 1")
	}
	if cfg.Storage.Enabled() {
		if cfg.Storage.AccessKey == "" || cfg.Storage.SecretKey == "" || cfg.Storage.Bucket == "" {
			return cfg, errors.New("S3_ACCESS_KEY, S3_SECRET_KEY and S3_BUCKET are required when S3_ENDPOINT is set")
		}
	}
	if cfg.Storage.DownloadURLTTL <= 0 {
		return cfg, errors.New("DOWNLOAD_URL_TTL must be > 0")
	}
	if cfg.Storage.UploadMaxBytes <= 0 {
		return cfg, errors.New("UPLOAD_MAX_BYTES must be > 0")
	}
	if cfg.Redis.TTL <= 0 {
		return cfg, errors.New("CATALOG_CACHE_TTL must be > 0")
	}

	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
