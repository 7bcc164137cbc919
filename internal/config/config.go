// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the bot
// fleet, the webhook receiver, database pooling, translation, usage limits,
// and observability.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MaxBotSlots is the size of the bot fleet: slot numbers run 1..MaxBotSlots.
const MaxBotSlots = 5

// Industry describes one selectable industry and the context handed to the
// translator for it.
type Industry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CORSConfig defines Cross-Origin Resource Sharing settings for the read-model
// routes.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TranslationConfig groups translator provider settings.
type TranslationConfig struct {
	Provider    string        // TRANSLATION_PROVIDER ("claude")
	APIKey      string        // TRANSLATOR_API_KEY
	Model       string        // TRANSLATION_MODEL
	ContextSize int           // TRANSLATION_CONTEXT_SIZE, messages of context per call
	Timeout     time.Duration // TRANSLATE_TIMEOUT, per-attempt deadline
	MaxAttempts int           // TRANSLATE_MAX_ATTEMPTS
}

// CheckoutConfig holds the billing provider's hosted-checkout coordinates.
// The manager ID rides along as custom data so webhook events can be routed
// back to the right manager.
type CheckoutConfig struct {
	StoreURL  string // CHECKOUT_STORE_URL, e.g. "bridgeos.lemonsqueezy.com"
	VariantID string // CHECKOUT_VARIANT_ID
}

// Config holds all configuration values for the application.
type Config struct {
	// Server (webhook receiver / read model)
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	GinMode           string // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool

	// Database
	DatabaseURL string // DATABASE_URL (PostgreSQL DSN)
	DBMaxOpen   int    // pool upper bound
	DBMaxIdle   int    // warm connections

	// Bot fleet
	BotSlot          int            // derived from BOT_ID (bot1..bot5)
	BotTokens        map[int]string // TELEGRAM_TOKEN_BOT1..5
	BotNames         map[int]string // BOT_USERNAME_1..5, used in invite links
	TransportTimeout time.Duration  // per-send deadline

	// Translation
	Translation TranslationConfig

	// Usage gating
	FreeMessageLimit int
	EnforceLimits    bool
	TestUserIDs      []int64 // whitelist, bypasses gating

	// Registration surface
	Languages  []string
	Industries map[string]Industry

	// Billing
	WebhookSecret string
	Checkout      CheckoutConfig

	// Retention (0 disables the janitor)
	MessageRetentionDays int

	// Read model
	AdminToken string
	CORS       CORSConfig

	// Rate limiting (read-model routes)
	RateRPS   float64
	RateBurst int

	// Observability
	OTEL OTELConfig
}

// defaultIndustries is used when INDUSTRIES_PATH is not set.
var defaultIndustries = map[string]Industry{
	"dairy_farm":   {Name: "Dairy Farm", Description: "Dairy farming operations: milking, feeding, animal health, barn equipment."},
	"construction": {Name: "Construction", Description: "Construction site communication: materials, tools, schedules, site safety."},
	"agriculture":  {Name: "Agriculture", Description: "Field work: crops, irrigation, harvest, machinery."},
	"hospitality":  {Name: "Hospitality", Description: "Hotel and restaurant operations: housekeeping, kitchen, guest service."},
	"other":        {Name: "Workplace", Description: "General workplace communication."},
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		DatabaseURL: getenv("DATABASE_URL", ""),
		DBMaxOpen:   getint("DB_MAX_OPEN", 20),
		DBMaxIdle:   getint("DB_MAX_IDLE", 5),

		BotSlot:          slotFromBotID(getenv("BOT_ID", "bot1")),
		BotTokens:        map[int]string{},
		BotNames:         map[int]string{},
		TransportTimeout: getdur("TRANSPORT_TIMEOUT", 5*time.Second),

		Translation: TranslationConfig{
			Provider:    strings.ToLower(getenv("TRANSLATION_PROVIDER", "claude")),
			APIKey:      getenv("TRANSLATOR_API_KEY", ""),
			Model:       getenv("TRANSLATION_MODEL", "claude-3-5-haiku-latest"),
			ContextSize: getint("TRANSLATION_CONTEXT_SIZE", 6),
			Timeout:     getdur("TRANSLATE_TIMEOUT", 15*time.Second),
			MaxAttempts: getint("TRANSLATE_MAX_ATTEMPTS", 3),
		},

		FreeMessageLimit: getint("FREE_MESSAGE_LIMIT", 8),
		EnforceLimits:    getbool("ENFORCE_LIMITS", true),
		TestUserIDs:      splitIDs(getenv("TEST_USER_IDS", "")),

		Languages: splitCSV(getenv("LANGUAGES", "English,Español,עברית,Русский,ไทย,हिन्दी")),

		WebhookSecret: getenv("WEBHOOK_SECRET", ""),
		Checkout: CheckoutConfig{
			StoreURL:  getenv("CHECKOUT_STORE_URL", ""),
			VariantID: getenv("CHECKOUT_VARIANT_ID", ""),
		},

		MessageRetentionDays: getint("MESSAGE_RETENTION_DAYS", 0),

		AdminToken: getenv("ADMIN_TOKEN", ""),
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-bridge-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	for slot := 1; slot <= MaxBotSlots; slot++ {
		if tok := getenv(fmt.Sprintf("TELEGRAM_TOKEN_BOT%d", slot), ""); tok != "" {
			cfg.BotTokens[slot] = tok
		}
		cfg.BotNames[slot] = getenv(fmt.Sprintf("BOT_USERNAME_%d", slot), fmt.Sprintf("BridgeOS_%dbot", slot))
	}

	if path := getenv("INDUSTRIES_PATH", ""); path != "" {
		industries, err := loadIndustries(path)
		if err != nil {
			return cfg, err
		}
		cfg.Industries = industries
	} else {
		cfg.Industries = defaultIndustries
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
	if cfg.BotSlot < 1 || cfg.BotSlot > MaxBotSlots {
		return cfg, fmt.Errorf("BOT_ID must name a slot between bot1 and bot%d", MaxBotSlots)
	}
	if cfg.DBMaxOpen < 1 {
		return cfg, errors.New("DB_MAX_OPEN must be >= 1")
	}
	if cfg.DBMaxIdle < 0 || cfg.DBMaxIdle > cfg.DBMaxOpen {
		return cfg, errors.New("DB_MAX_IDLE must be between 0 and DB_MAX_OPEN")
	}
	if cfg.FreeMessageLimit < 1 {
		return cfg, errors.New("FREE_MESSAGE_LIMIT must be >= 1")
	}
	if cfg.Translation.ContextSize < 0 {
		return cfg, errors.New("TRANSLATION_CONTEXT_SIZE must be >= 0")
	}
	if cfg.Translation.MaxAttempts < 1 {
		return cfg, errors.New("TRANSLATE_MAX_ATTEMPTS must be >= 1")
	}
	if len(cfg.Languages) == 0 {
		return cfg, errors.New("LANGUAGES must name at least one language")
	}
	if cfg.MessageRetentionDays < 0 {
		return cfg, errors.New("MESSAGE_RETENTION_DAYS must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// BotToken returns the transport token for the process's own slot.
func (c Config) BotToken() string { return c.BotTokens[c.BotSlot] }

// BotUsername returns the public bot username for a slot, used when building
// invitation links.
func (c Config) BotUsername(slot int) string { return c.BotNames[slot] }

// IsTestUser reports whether a user ID is on the gating whitelist.
func (c Config) IsTestUser(userID int64) bool {
	for _, id := range c.TestUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// slotFromBotID extracts the numeric slot from a BOT_ID like "bot3".
func slotFromBotID(botID string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(botID)), "bot"))
	if err != nil {
		return 0
	}
	return n
}

// loadIndustries reads an industry map override from a JSON file.
func loadIndustries(path string) (map[string]Industry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read INDUSTRIES_PATH: %w", err)
	}
	var out map[string]Industry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse INDUSTRIES_PATH: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("INDUSTRIES_PATH must define at least one industry")
	}
	return out, nil
}

// ---- helpers (no external deps) ----

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
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func splitIDs(s string) []int64 {
	parts := splitCSV(s)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
