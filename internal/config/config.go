// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

// Config holds every PAYLEDGER_* setting.
type Config struct {
	Env      string `env:"PAYLEDGER_ENV,default=development"`
	LogLevel string `env:"PAYLEDGER_LOG_LEVEL,default=info"`

	HTTPAddr        string        `env:"PAYLEDGER_HTTP_ADDR,default=:8080"`
	ShutdownTimeout time.Duration `env:"PAYLEDGER_SHUTDOWN_TIMEOUT,default=15s"`

	// DatabaseURL selects the Postgres store. When empty the in-memory store
	// is used.
	DatabaseURL     string        `env:"PAYLEDGER_DATABASE_URL"`
	DBMaxConns      int           `env:"PAYLEDGER_DB_MAX_CONNS,default=10"`
	DBMaxConnIdle   time.Duration `env:"PAYLEDGER_DB_MAX_CONN_IDLE,default=30m"`
	DBMaxConnLife   time.Duration `env:"PAYLEDGER_DB_MAX_CONN_LIFETIME,default=1h"`
	MigrateOnStart  bool          `env:"PAYLEDGER_MIGRATE_ON_START,default=false"`
	Providers       string        `env:"PAYLEDGER_PROVIDERS,default=bkash"`
	StatementDir    string        `env:"PAYLEDGER_STATEMENT_DIR"`
	StatementURL    string        `env:"PAYLEDGER_STATEMENT_URL"`
	StatementToken  string        `env:"PAYLEDGER_STATEMENT_TOKEN"`
	StatementWait   time.Duration `env:"PAYLEDGER_STATEMENT_TIMEOUT,default=30s"`
	FetchRetries    uint64        `env:"PAYLEDGER_STATEMENT_FETCH_RETRIES,default=3"`
	FetchBackoff    time.Duration `env:"PAYLEDGER_STATEMENT_FETCH_BACKOFF,default=2s"`
	ReconWindow     time.Duration `env:"PAYLEDGER_RECONCILIATION_WINDOW,default=24h"`
	ReconMaxRuntime time.Duration `env:"PAYLEDGER_RECONCILIATION_MAX_RUNTIME,default=30m"`

	AmountEpsilonMinor int64 `env:"PAYLEDGER_AMOUNT_EPSILON_MINOR,default=0"`
	MediumValueMinor   int64 `env:"PAYLEDGER_SEVERITY_MEDIUM_MINOR,default=10000"`
	HighValueMinor     int64 `env:"PAYLEDGER_SEVERITY_HIGH_MINOR,default=1000000"`

	PayoutProcessingTimeout time.Duration `env:"PAYLEDGER_PAYOUT_PROCESSING_TIMEOUT,default=24h"`

	DisputeFeeMinor       int64  `env:"PAYLEDGER_DISPUTE_FEE_MINOR,default=0"`
	DisputeDeadlinePolicy string `env:"PAYLEDGER_DISPUTE_DEADLINE_POLICY,default=flag"`

	IngestionMaxRetries int           `env:"PAYLEDGER_INGESTION_MAX_RETRIES,default=8"`
	IngestionRetryBase  time.Duration `env:"PAYLEDGER_INGESTION_RETRY_BASE,default=30s"`
	IngestionRetryMax   time.Duration `env:"PAYLEDGER_INGESTION_RETRY_MAX,default=1h"`

	ReconciliationSchedule string `env:"PAYLEDGER_SCHEDULE_RECONCILIATION,default=0 2 * * *"`
	DisputeSweepSchedule   string `env:"PAYLEDGER_SCHEDULE_DISPUTE_DEADLINES,default=*/15 * * * *"`
	AttentionSchedule      string `env:"PAYLEDGER_SCHEDULE_ATTENTION,default=*/10 * * * *"`
	VerificationSchedule   string `env:"PAYLEDGER_SCHEDULE_VERIFICATION,default=0 * * * *"`
}

// Load reads the given dotenv files, or .env when none is named, and decodes
// the environment. A missing default .env file is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", strings.Join(files, ", "), err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("PAYLEDGER_HTTP_ADDR must not be empty"))
	}
	if len(c.ProviderList()) == 0 {
		errs = append(errs, errors.New("PAYLEDGER_PROVIDERS must name at least one provider"))
	}
	if c.AmountEpsilonMinor < 0 {
		errs = append(errs, errors.New("PAYLEDGER_AMOUNT_EPSILON_MINOR must not be negative"))
	}
	if c.MediumValueMinor <= 0 || c.HighValueMinor <= c.MediumValueMinor {
		errs = append(errs, errors.New("severity thresholds must satisfy 0 < medium < high"))
	}
	if c.DisputeFeeMinor < 0 {
		errs = append(errs, errors.New("PAYLEDGER_DISPUTE_FEE_MINOR must not be negative"))
	}
	switch usecase.DeadlinePolicy(c.DisputeDeadlinePolicy) {
	case usecase.DeadlinePolicyFlag, usecase.DeadlinePolicyExpire:
	default:
		errs = append(errs, fmt.Errorf("unknown dispute deadline policy %q", c.DisputeDeadlinePolicy))
	}
	if c.IngestionMaxRetries < 0 {
		errs = append(errs, errors.New("PAYLEDGER_INGESTION_MAX_RETRIES must not be negative"))
	}
	if c.ReconWindow <= 0 {
		errs = append(errs, errors.New("PAYLEDGER_RECONCILIATION_WINDOW must be positive"))
	}
	if c.PayoutProcessingTimeout <= 0 {
		errs = append(errs, errors.New("PAYLEDGER_PAYOUT_PROCESSING_TIMEOUT must be positive"))
	}
	if c.DBMaxConns <= 0 {
		errs = append(errs, errors.New("PAYLEDGER_DB_MAX_CONNS must be positive"))
	}
	return errors.Join(errs...)
}

// ProviderList returns the configured providers.
func (c *Config) ProviderList() []string {
	var out []string
	for _, p := range strings.Split(c.Providers, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Reconciliation returns the matcher settings.
func (c *Config) Reconciliation() usecase.ReconciliationConfig {
	return usecase.ReconciliationConfig{
		AmountEpsilonMinor: c.AmountEpsilonMinor,
		Thresholds: domain.SeverityThresholds{
			MediumValueMinor: c.MediumValueMinor,
			HighValueMinor:   c.HighValueMinor,
		},
		MaxRuntime:   c.ReconMaxRuntime,
		FetchRetries: c.FetchRetries,
		FetchBackoff: c.FetchBackoff,
	}
}

// Dispute returns the dispute workflow settings.
func (c *Config) Dispute() usecase.DisputeConfig {
	return usecase.DisputeConfig{
		FeeMinor:       c.DisputeFeeMinor,
		DeadlinePolicy: usecase.DeadlinePolicy(c.DisputeDeadlinePolicy),
	}
}

// Ingestion returns the webhook retry settings.
func (c *Config) Ingestion() usecase.IngestionConfig {
	return usecase.IngestionConfig{
		MaxRetries:     c.IngestionMaxRetries,
		RetryBaseDelay: c.IngestionRetryBase,
		RetryMaxDelay:  c.IngestionRetryMax,
	}
}
