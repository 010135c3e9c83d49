package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Env var names shared with tests and tooling.
const (
	EnvPrefix = ""

	EnvAppEnv   = "CATERFLOW_APP_ENV"
	EnvPort     = "CATERFLOW_APP_PORT"
	EnvDBDSN    = "CATERFLOW_DB_DSN"
	EnvDBHost   = "CATERFLOW_DB_HOST"
	EnvDBUser   = "CATERFLOW_DB_USER"
	EnvDBName   = "CATERFLOW_DB_NAME"
	EnvRedisURL = "CATERFLOW_REDIS_URL"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	Billing BillingConfig
	Stripe  StripeConfig
	Outbox  OutboxConfig
	Worker  WorkerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CATERFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"CATERFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CATERFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CATERFLOW_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"CATERFLOW_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CATERFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CATERFLOW_DB_DSN"`
	Driver string `envconfig:"CATERFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CATERFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"CATERFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CATERFLOW_DB_USER"`
	LegacyPassword string `envconfig:"CATERFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"CATERFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"CATERFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CATERFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CATERFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CATERFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CATERFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CATERFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CATERFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"CATERFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"CATERFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CATERFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CATERFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CATERFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CATERFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CATERFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// BillingConfig carries the payment policy knobs. The schedule percentages and
// the interim placement are business policy constants, not derived values.
type BillingConfig struct {
	TaxRateBps             int     `envconfig:"CATERFLOW_BILLING_TAX_RATE_BPS" default:"800"`
	DepositPercent         int     `envconfig:"CATERFLOW_BILLING_DEPOSIT_PERCENT" default:"25"`
	InterimPercent         int     `envconfig:"CATERFLOW_BILLING_INTERIM_PERCENT" default:"50"`
	BalancePercent         int     `envconfig:"CATERFLOW_BILLING_BALANCE_PERCENT" default:"25"`
	RushCutoffDays         int     `envconfig:"CATERFLOW_BILLING_RUSH_CUTOFF_DAYS" default:"10"`
	InterimPlacement       float64 `envconfig:"CATERFLOW_BILLING_INTERIM_PLACEMENT" default:"0.5"`
	BalanceLeadDays        int     `envconfig:"CATERFLOW_BILLING_BALANCE_LEAD_DAYS" default:"3"`
	Net30Days              int     `envconfig:"CATERFLOW_BILLING_NET30_DAYS" default:"30"`
	ApprovalThresholdCents int64   `envconfig:"CATERFLOW_BILLING_APPROVAL_THRESHOLD_CENTS" default:"50000"`
}

type StripeConfig struct {
	APIKey string `envconfig:"CATERFLOW_STRIPE_API_KEY"`
	Secret string `envconfig:"CATERFLOW_STRIPE_SECRET"`
	Env    string `envconfig:"CATERFLOW_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type OutboxConfig struct {
	BatchSize   int `envconfig:"CATERFLOW_OUTBOX_BATCH_SIZE" default:"50"`
	MaxAttempts int `envconfig:"CATERFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type WorkerConfig struct {
	Interval       time.Duration `envconfig:"CATERFLOW_WORKER_INTERVAL" default:"1m"`
	LockTTL        time.Duration `envconfig:"CATERFLOW_WORKER_LOCK_TTL" default:"5m"`
	OutboxKeepDays int           `envconfig:"CATERFLOW_WORKER_OUTBOX_KEEP_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
