package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	APIKeys     APIKeysConfig     `mapstructure:"api_keys"`
	Billing     BillingConfig     `mapstructure:"billing"`
	Email       EmailConfig       `mapstructure:"email"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Client      ClientConfig      `mapstructure:"client"`
	Worker      WorkerConfig      `mapstructure:"worker"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// RedisConfig is optional; an empty Addr selects the in-memory idempotency store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig holds the identity provider's signing secret. Tokens are issued
// elsewhere; this service only verifies them.
type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	FunctionsPerMinute int `mapstructure:"functions_per_minute"`
	RestReadPerMinute  int `mapstructure:"rest_read_per_minute"`
	RestWritePerMinute int `mapstructure:"rest_write_per_minute"`
	Burst              int `mapstructure:"burst"`
}

type IdempotencyConfig struct {
	Window time.Duration `mapstructure:"window"`
}

type APIKeysConfig struct {
	Pepper string `mapstructure:"pepper"`
	Prefix string `mapstructure:"prefix"`
}

type BillingConfig struct {
	Provider      string            `mapstructure:"provider"`
	APIKey        string            `mapstructure:"api_key"`
	WebhookSecret string            `mapstructure:"webhook_secret"`
	Environment   string            `mapstructure:"environment"`
	SuccessURL    string            `mapstructure:"success_url"`
	CancelURL     string            `mapstructure:"cancel_url"`
	PriceIDs      map[string]string `mapstructure:"price_ids"`
}

type EmailConfig struct {
	Provider             string `mapstructure:"provider"`
	PostmarkServerToken  string `mapstructure:"postmark_server_token"`
	PostmarkAccountToken string `mapstructure:"postmark_account_token"`
	FromAddress          string `mapstructure:"from_address"`
	FromName             string `mapstructure:"from_name"`
	SupportAddress       string `mapstructure:"support_address"`
	SiteURL              string `mapstructure:"site_url"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// ClientConfig configures the SDK used by alaweinctl.
type ClientConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Token       string        `mapstructure:"token"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type WorkerConfig struct {
	InviteInterval time.Duration `mapstructure:"invite_interval"`
	InviteBatch    int           `mapstructure:"invite_batch"`
}

func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("database.url", "file:./data/alawein.db")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("jwt.access_token_ttl", time.Hour)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"authorization", "x-client-info", "content-type", "idempotency-key"})
	v.SetDefault("cors.max_age", 86400)
	v.SetDefault("rate_limit.functions_per_minute", 60)
	v.SetDefault("rate_limit.rest_read_per_minute", 600)
	v.SetDefault("rate_limit.rest_write_per_minute", 120)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("idempotency.window", 10*time.Minute)
	v.SetDefault("api_keys.prefix", "alw_live_")
	v.SetDefault("billing.provider", "paddle")
	v.SetDefault("billing.environment", "sandbox")
	v.SetDefault("email.provider", "log")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.max_attempts", 1)
	v.SetDefault("client.cache_ttl", 5*time.Minute)
	v.SetDefault("worker.invite_interval", time.Minute)
	v.SetDefault("worker.invite_batch", 50)
}
