// Package config loads service configuration from the environment (optionally via a .env file).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// DBConfig holds database configuration
type DBConfig struct {
	Driver          string // postgres | sqlite
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	SQLitePath      string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the PostgreSQL connection string
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig holds Redis configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LLMConfig holds the language-model API configuration.
type LLMConfig struct {
	APIKey      string
	Model       string
	VisionModel string
	Timeout     time.Duration
}

// TwilioConfig holds the WhatsApp messaging provider configuration.
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	WhatsAppFrom      string
	ValidateSignature bool
}

// Enabled reports whether credentials for outbound WhatsApp are present.
func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.WhatsAppFrom != ""
}

// Config holds all configuration
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DB     DBConfig
	Redis  RedisConfig
	LLM    LLMConfig
	Twilio TwilioConfig

	TelegramToken    string
	JWTSecret        string
	JWTTTL           time.Duration
	PublicBaseURL    string
	UploadDir        string
	OutboundTimeout  time.Duration
	DefaultLanguage  string
	InboundCity      string
	InboundState     string
	TransitionPolicy string
	DedupeTTL        time.Duration
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		Port:     getEnv("SERVER_PORT", DefaultServerPort),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DB: DBConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "grievances"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			SQLitePath:      getEnv("SQLITE_PATH", DefaultSQLitePath),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("LLM_API_KEY", os.Getenv("GEMINI_API_KEY")),
			Model:       getEnv("LLM_MODEL", DefaultLLMModel),
			VisionModel: getEnv("LLM_VISION_MODEL", DefaultVisionModel),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", DefaultLLMTimeout),
		},
		Twilio: TwilioConfig{
			AccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
			WhatsAppFrom:      getEnv("TWILIO_WHATSAPP_FROM", ""),
			ValidateSignature: getEnvAsBool("TWILIO_VALIDATE_SIGNATURE", false),
		},
		TelegramToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTTTL:           getEnvAsDuration("JWT_TTL", DefaultJWTTTL),
		PublicBaseURL:    strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		UploadDir:        getEnv("UPLOAD_DIR", DefaultUploadDir),
		OutboundTimeout:  getEnvAsDuration("OUTBOUND_TIMEOUT", DefaultOutboundTimeout),
		DefaultLanguage:  getEnv("DEFAULT_LANGUAGE", "en"),
		InboundCity:      getEnv("INBOUND_DEFAULT_CITY", ""),
		InboundState:     getEnv("INBOUND_DEFAULT_STATE", ""),
		TransitionPolicy: strings.ToLower(getEnv("STATUS_TRANSITION_POLICY", TransitionOpen)),
		DedupeTTL:        getEnvAsDuration("DEDUPE_TTL", DefaultDedupeTTL),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate перевіряє значення, які не мають безпечного значення за замовчуванням.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DB.Driver)
	}
	switch c.TransitionPolicy {
	case TransitionOpen, TransitionForward:
	default:
		return fmt.Errorf("config: unsupported STATUS_TRANSITION_POLICY %q", c.TransitionPolicy)
	}
	if c.Env == "production" && c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required in production")
	}
	if c.OutboundTimeout <= 0 {
		c.OutboundTimeout = DefaultOutboundTimeout
	}
	return nil
}

// LogFields returns the configuration as zap fields with every secret reduced to set/unset.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Env),
		zap.String("server_port", c.Port),
		zap.String("db_driver", c.DB.Driver),
		zap.String("db_host", c.DB.Host),
		zap.String("db_name", c.DB.Name),
		zap.String("db_password", redact(c.DB.Password)),
		zap.String("redis_addr", c.Redis.Addr),
		zap.String("llm_model", c.LLM.Model),
		zap.String("llm_api_key", redact(c.LLM.APIKey)),
		zap.String("twilio_account_sid", redact(c.Twilio.AccountSID)),
		zap.String("twilio_auth_token", redact(c.Twilio.AuthToken)),
		zap.String("twilio_whatsapp_from", c.Twilio.WhatsAppFrom),
		zap.String("telegram_bot_token", redact(c.TelegramToken)),
		zap.String("jwt_secret", redact(c.JWTSecret)),
		zap.Duration("outbound_timeout", c.OutboundTimeout),
		zap.String("transition_policy", c.TransitionPolicy),
	}
}

func redact(secret string) string {
	if secret == "" {
		return "unset"
	}
	return "set"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
