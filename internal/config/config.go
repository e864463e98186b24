package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Log       LogConfig
	Gateway   GatewayConfig
	Outbox    OutboxConfig
	Reconcile ReconcileConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"order_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// GatewayConfig holds payment gateway client configuration.
type GatewayConfig struct {
	BaseURL string `envconfig:"PG_BASE_URL" default:"http://localhost:8082"`
	// Orders resource root; the adapter appends /{orderId}/callback to
	// build the URL the PG posts status updates to.
	CallbackBaseURL string        `envconfig:"PG_CALLBACK_BASE_URL" default:"http://localhost:3000/api/v1/orders"`
	RequestTimeout  time.Duration `envconfig:"PG_REQUEST_TIMEOUT" default:"5s"`
	StatusRetryMax  int           `envconfig:"PG_STATUS_RETRY_MAX" default:"3"`
	// Breaker trips after this many consecutive failures and half-opens
	// after the cooldown elapses.
	BreakerFailureThreshold int           `envconfig:"PG_BREAKER_FAILURES" default:"5"`
	BreakerCooldown         time.Duration `envconfig:"PG_BREAKER_COOLDOWN" default:"10s"`
	// Delay before the post-timeout status lookup runs.
	TimeoutRecoveryDelay time.Duration `envconfig:"PG_TIMEOUT_RECOVERY_DELAY" default:"3s"`
}

// OutboxConfig holds outbox dispatcher configuration.
type OutboxConfig struct {
	PollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"1s"`
	BatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
}

// ReconcileConfig holds reconciliation loop configuration.
type ReconcileConfig struct {
	Interval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
	// Payments must have been PENDING at least this long before the
	// reconciler touches them; fresher ones still belong to the online path.
	PendingAge time.Duration `envconfig:"RECONCILE_PENDING_AGE" default:"2m"`
	BatchSize  int           `envconfig:"RECONCILE_BATCH_SIZE" default:"50"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
