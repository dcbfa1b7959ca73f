// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage, AI provider, payment gateways,
// rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "recipe-chat-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the storage driver.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file path
	DSN    string // Postgres DSN
}

// AuthConfig configures token issuance and identity extraction.
type AuthConfig struct {
	JWTSecret       string
	TokenTTL        time.Duration
	TrustUserHeader bool // accept X-User-ID from trusted callers
}

// CreditsConfig holds the credit economy settings.
type CreditsConfig struct {
	WelcomeGrant int   // credits granted at signup
	Packs        []int // purchasable pack sizes
}

// GeminiConfig configures the AI completion provider.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	AltModels       []string
	Timeout         time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
	HistoryTurns    int
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
}

// Budget is the longest a single completion can take: every attempt timing
// out on the primary model and, when configured, on the first alternate,
// plus the exponential backoff between attempts.
func (g GeminiConfig) Budget() time.Duration {
	retries := max(g.MaxRetries, 1)
	round := time.Duration(retries)*g.Timeout + g.BackoffBase*time.Duration(1<<(retries-1)-1)
	if len(g.AltModels) > 0 {
		return 2 * round
	}
	return round
}

// writeHeadroom covers the work around a completion: storage, keyword
// extraction and encoding the reply.
const writeHeadroom = 15 * time.Second

// StripeConfig configures the card checkout gateway. A missing SecretKey
// leaves the gateway unconfigured.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	PriceIDs      map[int]string          // pack -> Stripe price ID
	Amounts       map[int]decimal.Decimal // pack -> display amount in major units
}

// PhonePeConfig configures the mobile-wallet gateway. A missing MerchantID
// or SaltKey leaves the gateway unconfigured.
type PhonePeConfig struct {
	MerchantID string
	SaltKey    string
	SaltIndex  string
	Env        string // sandbox|production
	BaseURL    string // overrides Env when set
	Prices     map[int]decimal.Decimal
}

// RedisConfig enables the shared webhook event guard when URL is set.
type RedisConfig struct {
	URL      string
	EventTTL time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // derived from the completion budget unless set
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	LogRedact      bool   // scrub PII from access logs
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	BaseURL        string // public site URL used for payment redirects
	DB             DBConfig
	MaxMessageLen  int // runes per chat message
	TitleMaxLen    int
	SessionPageMax int

	Auth    AuthConfig
	Credits CreditsConfig
	Gemini  GeminiConfig
	Stripe  StripeConfig
	PhonePe PhonePeConfig
	Redis   RedisConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

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
	packs, packsErr := parsePacks(getenv("CREDIT_PACKS", "20,60,150"))

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 0),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		LogRedact:      getbool("LOG_REDACT", true),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		BaseURL: strings.TrimRight(getenv("BASE_URL", "http://localhost:8080"), "/"),
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "app.db"),
			DSN:    getenv("DATABASE_URL", ""),
		},
		MaxMessageLen:  getint("MAX_MESSAGE_LEN", 2000),
		TitleMaxLen:    getint("TITLE_MAX_LEN", 100),
		SessionPageMax: getint("SESSION_PAGE_MAX", 100),

		Auth: AuthConfig{
			JWTSecret:       getenv("JWT_SECRET", ""),
			TokenTTL:        getdur("JWT_TTL", 7*24*time.Hour),
			TrustUserHeader: getbool("TRUST_USER_HEADER", false),
		},
		Credits: CreditsConfig{
			WelcomeGrant: getint("WELCOME_CREDITS", 10),
			Packs:        packs,
		},
		Gemini: GeminiConfig{
			APIKey:          getenv("GEMINI_API_KEY", ""),
			BaseURL:         strings.TrimRight(getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"), "/"),
			Model:           getenv("GEMINI_MODEL", "gemini-1.5-flash"),
			AltModels:       splitCSV(getenv("GEMINI_ALT_MODELS", "gemini-1.5-pro")),
			Timeout:         getdur("GEMINI_TIMEOUT", 20*time.Second),
			MaxRetries:      getint("GEMINI_MAX_RETRIES", 3),
			BackoffBase:     getdur("GEMINI_BACKOFF_BASE", 200*time.Millisecond),
			HistoryTurns:    getint("GEMINI_HISTORY_TURNS", 10),
			Temperature:     getfloat("GEMINI_TEMPERATURE", 0.7),
			TopK:            getint("GEMINI_TOP_K", 40),
			TopP:            getfloat("GEMINI_TOP_P", 0.95),
			MaxOutputTokens: getint("GEMINI_MAX_OUTPUT_TOKENS", 1000),
		},
		Stripe: StripeConfig{
			SecretKey:     getenv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getenv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(getenv("STRIPE_CURRENCY", "usd")),
			PriceIDs:      packStrings("STRIPE_PRICE_", packs),
		},
		PhonePe: PhonePeConfig{
			MerchantID: getenv("PHONEPE_MERCHANT_ID", ""),
			SaltKey:    getenv("PHONEPE_SALT_KEY", ""),
			SaltIndex:  getenv("PHONEPE_SALT_INDEX", "1"),
			Env:        strings.ToLower(getenv("PHONEPE_ENV", "sandbox")),
			BaseURL:    strings.TrimRight(getenv("PHONEPE_BASE_URL", ""), "/"),
		},
		Redis: RedisConfig{
			URL:      getenv("REDIS_URL", ""),
			EventTTL: getdur("WEBHOOK_EVENT_TTL", 72*time.Hour),
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

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "recipe-chat-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	var priceErr error
	cfg.Stripe.Amounts, priceErr = packAmounts("STRIPE_AMOUNT_", packs, nil)
	if priceErr != nil {
		return cfg, priceErr
	}
	cfg.PhonePe.Prices, priceErr = packAmounts("PHONEPE_PRICE_", packs, map[int]string{20: "99", 60: "249", 150: "499"})
	if priceErr != nil {
		return cfg, priceErr
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
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = max(60*time.Second, cfg.Gemini.Budget()+writeHeadroom)
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
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if packsErr != nil {
		return cfg, packsErr
	}
	if cfg.Credits.WelcomeGrant < 0 {
		return cfg, errors.New("WELCOME_CREDITS must be >= 0")
	}
	if cfg.MaxMessageLen <= 0 || cfg.TitleMaxLen <= 0 || cfg.SessionPageMax <= 0 {
		return cfg, errors.New("MAX_MESSAGE_LEN, TITLE_MAX_LEN and SESSION_PAGE_MAX must be > 0")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return cfg, errors.New("JWT_TTL must be > 0")
	}
	if cfg.Gemini.Timeout <= 0 || cfg.Gemini.BackoffBase <= 0 {
		return cfg, errors.New("GEMINI_TIMEOUT and GEMINI_BACKOFF_BASE must be positive durations")
	}
	if cfg.Gemini.MaxRetries < 1 {
		return cfg, errors.New("GEMINI_MAX_RETRIES must be >= 1")
	}
	if cfg.Gemini.HistoryTurns < 0 {
		return cfg, errors.New("GEMINI_HISTORY_TURNS must be >= 0")
	}
	switch cfg.PhonePe.Env {
	case "sandbox", "production":
	default:
		return cfg, errors.New("PHONEPE_ENV must be one of: sandbox, production")
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
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.Redis.EventTTL <= 0 {
		return cfg, errors.New("WEBHOOK_EVENT_TTL must be > 0")
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

// parsePacks parses a CSV of positive, distinct pack sizes.
func parsePacks(s string) ([]int, error) {
	raw := splitCSV(s)
	if len(raw) == 0 {
		return nil, errors.New("CREDIT_PACKS must list at least one pack size")
	}
	seen := make(map[int]bool, len(raw))
	out := make([]int, 0, len(raw))
	for _, r := range raw {
		n, err := strconv.Atoi(r)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("CREDIT_PACKS: invalid pack size %q", r)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

// packStrings reads PREFIX<pack> for each pack, skipping unset keys.
func packStrings(prefix string, packs []int) map[int]string {
	out := make(map[int]string, len(packs))
	for _, p := range packs {
		if v := strings.TrimSpace(getenv(prefix+strconv.Itoa(p), "")); v != "" {
			out[p] = v
		}
	}
	return out
}

// packAmounts reads decimal amounts per pack. Packs with neither an env value
// nor a default are left out of the table.
func packAmounts(prefix string, packs []int, defaults map[int]string) (map[int]decimal.Decimal, error) {
	out := make(map[int]decimal.Decimal, len(packs))
	for _, p := range packs {
		key := prefix + strconv.Itoa(p)
		v := getenv(key, defaults[p])
		if strings.TrimSpace(v) == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil || !d.IsPositive() {
			return nil, fmt.Errorf("%s must be a positive amount", key)
		}
		out[p] = d
	}
	return out, nil
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
