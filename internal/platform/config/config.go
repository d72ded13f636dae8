package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process-level configuration parsed from the environment.
type Server struct {
	Addr        string `env:"IMRICH_ADDR" envDefault:":8080"`
	ServiceName string `env:"IMRICH_SERVICE_NAME" envDefault:"rich-ai-certificate-api"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// StoreBackend selects the certificate store: memory, postgres or sqlite.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`

	Postgres     PostgresConfig     `envPrefix:"POSTGRES_"`
	SQLite       SQLiteConfig       `envPrefix:"SQLITE_"`
	Redis        RedisConfig        `envPrefix:"REDIS_"`
	Kafka        KafkaConfig        `envPrefix:"KAFKA_"`
	Producer     ProducerConfig     `envPrefix:"PRODUCER_"`
	Auth         AuthConfig         `envPrefix:"AUTH_"`
	Verification VerificationConfig `envPrefix:"VERIFY_"`
	RateLimit    RateLimitConfig    `envPrefix:"RATELIMIT_"`
	Payments     PaymentsConfig     `envPrefix:"PAYMENT_"`

	ModelCatalogPath string        `env:"MODEL_CATALOG_PATH"`
	AssetBaseURL     string        `env:"ASSET_BASE_URL" envDefault:"/api/images/"`
	PublicBaseURL    string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"90s"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// TrustedProxies are CIDRs or addresses whose X-Forwarded-For is honored.
	// Empty means the peer address is always the client IP.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// PostgresConfig holds connection settings for the Postgres certificate store.
type PostgresConfig struct {
	DSN          string        `env:"DSN"`
	MaxOpenConns int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLife  time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

// SQLiteConfig holds the file path for the single-node SQLite store.
type SQLiteConfig struct {
	Path string `env:"PATH" envDefault:"data/imrich.db"`
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"10m"`
}

// KafkaConfig configures the payment-status consumer. Empty brokers disable it.
type KafkaConfig struct {
	Brokers       []string `env:"BROKERS" envSeparator:","`
	PaymentTopic  string   `env:"PAYMENT_TOPIC" envDefault:"payment.status"`
	ConsumerGroup string   `env:"CONSUMER_GROUP" envDefault:"imrich-payments"`
}

// ProducerConfig configures the AI artifact producer collaborator.
type ProducerConfig struct {
	// URL of the image backend. Empty selects the placeholder producer.
	URL     string        `env:"URL"`
	APIKey  string        `env:"API_KEY"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"60s"`
}

// AuthConfig configures validation of bearer tokens minted by the auth service.
type AuthConfig struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"JWT_ISSUER"`
	JWTAudience   string `env:"JWT_AUDIENCE"`
}

// VerificationConfig controls what the public verification endpoint reveals.
type VerificationConfig struct {
	ExposeOwnerEmail bool `env:"EXPOSE_OWNER_EMAIL" envDefault:"true"`
}

// RateLimitConfig bounds public verification traffic per client IP. It is
// off by default: while enabled, over-limit callers get 429 instead of an answer.
type RateLimitConfig struct {
	VerifyEnabled  bool          `env:"VERIFY_ENABLED" envDefault:"false"`
	VerifyRequests int           `env:"VERIFY_REQUESTS" envDefault:"60"`
	VerifyWindow   time.Duration `env:"VERIFY_WINDOW" envDefault:"1m"`
}

// PaymentsConfig holds the shared secret used to sign payment webhooks.
type PaymentsConfig struct {
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Server) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.Producer.Timeout <= 0 {
		return errors.New("PRODUCER_TIMEOUT must be positive")
	}
	if c.RateLimit.VerifyRequests <= 0 || c.RateLimit.VerifyWindow <= 0 {
		return errors.New("RATELIMIT_VERIFY_REQUESTS and RATELIMIT_VERIFY_WINDOW must be positive")
	}
	return nil
}
