package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/dhe2en832/erp-next-system-sub000/internal/erp"
	"github.com/dhe2en832/erp-next-system-sub000/internal/warkat"
)

// Guard backends.
const (
	GuardBackendMemory = "memory"
	GuardBackendRedis  = "redis"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	RateLimitPerMin   int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// PGDSN is optional; without it audit records are only logged.
	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr    string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	GuardBackend string        `envconfig:"GUARD_BACKEND" default:"memory"`
	GuardTTL     time.Duration `envconfig:"GUARD_TTL" default:"24h"`

	ERPBaseURL   string        `envconfig:"ERP_BASE_URL" required:"true"`
	ERPAPIKey    string        `envconfig:"ERP_API_KEY"`
	ERPAPISecret string        `envconfig:"ERP_API_SECRET"`
	ERPTimeout   time.Duration `envconfig:"ERP_TIMEOUT" default:"30s"`

	DefaultCompany    string `envconfig:"DEFAULT_COMPANY"`
	CompanyAbbr       string `envconfig:"COMPANY_ABBR"`
	StockLowThreshold int    `envconfig:"STOCK_LOW_THRESHOLD" default:"10"`

	WarkatKeluarAccount  string `envconfig:"WARKAT_KELUAR_ACCOUNT" default:"Warkat Keluar"`
	WarkatMasukAccount   string `envconfig:"WARKAT_MASUK_ACCOUNT" default:"Warkat Masuk"`
	HutangDagangAccount  string `envconfig:"HUTANG_DAGANG_ACCOUNT" default:"Hutang Dagang"`
	PiutangDagangAccount string `envconfig:"PIUTANG_DAGANG_ACCOUNT" default:"Piutang Dagang"`

	WarkatAgingCron string `envconfig:"WARKAT_AGING_CRON" default:"0 6 * * *"`
	WarkatAgingDays int    `envconfig:"WARKAT_AGING_DAYS" default:"14"`

	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"5"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9090"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ERPBaseURL == "" {
		return errors.New("erp base url must be provided")
	}
	if (c.ERPAPIKey == "") != (c.ERPAPISecret == "") {
		return errors.New("erp api key and secret must be provided together")
	}
	switch c.GuardBackend {
	case GuardBackendMemory, GuardBackendRedis:
	default:
		return fmt.Errorf("unknown guard backend %q", c.GuardBackend)
	}
	if c.WarkatAgingDays <= 0 {
		return errors.New("warkat aging days must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// ERP returns the client settings.
func (c *Config) ERP() erp.Config {
	return erp.Config{
		BaseURL:   c.ERPBaseURL,
		APIKey:    c.ERPAPIKey,
		APISecret: c.ERPAPISecret,
		Timeout:   c.ERPTimeout,
	}
}

// AccountBook returns the settlement account names.
func (c *Config) AccountBook() warkat.AccountBook {
	return warkat.AccountBook{
		WarkatKeluar:  c.WarkatKeluarAccount,
		WarkatMasuk:   c.WarkatMasukAccount,
		HutangDagang:  c.HutangDagangAccount,
		PiutangDagang: c.PiutangDagangAccount,
	}
}
