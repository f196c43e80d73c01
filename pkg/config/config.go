package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	HTTP         HTTPConfig
	FeatureFlags FeatureFlagsConfig
	Ordering     OrderingConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Ordering.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BOBA_APP_ENV" required:"true"`
	Port         string `envconfig:"BOBA_APP_PORT" default:"3000"`
	LogLevel     string `envconfig:"BOBA_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"BOBA_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"BOBA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BOBA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BOBA_DB_DSN"`
	Driver string `envconfig:"BOBA_DB_DRIVER" default:"sqlite"`
	Path   string `envconfig:"BOBA_DB_PATH" default:"data/boba.db"`

	BusyTimeout   time.Duration `envconfig:"BOBA_DB_BUSY_TIMEOUT" default:"5s"`
	TxWaitTimeout time.Duration `envconfig:"BOBA_DB_TX_WAIT_TIMEOUT" default:"5s"`

	MaxOpenConns    int           `envconfig:"BOBA_DB_MAX_OPEN_CONNS" default:"1"`
	MaxIdleConns    int           `envconfig:"BOBA_DB_MAX_IDLE_CONNS" default:"1"`
	ConnMaxLifetime time.Duration `envconfig:"BOBA_DB_CONN_MAX_LIFETIME" default:"0"`
	ConnMaxIdleTime time.Duration `envconfig:"BOBA_DB_CONN_MAX_IDLE_TIME" default:"0"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite store.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"BOBA_REDIS_URL"`
	Address      string        `envconfig:"BOBA_REDIS_ADDR"`
	Password     string        `envconfig:"BOBA_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOBA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOBA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOBA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOBA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOBA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOBA_REDIS_WRITE_TIMEOUT" default:"5s"`
	// KeyPrefix namespaces every key written by this deployment.
	KeyPrefix string `envconfig:"BOBA_REDIS_KEY_PREFIX" default:"boba"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// HTTPConfig tunes the public API surface.
type HTTPConfig struct {
	CORSOrigins     []string      `envconfig:"BOBA_CORS_ORIGINS" default:"http://localhost:3000"`
	OrderRateLimit  int           `envconfig:"BOBA_ORDER_RATE_LIMIT" default:"10"`
	OrderRateWindow time.Duration `envconfig:"BOBA_ORDER_RATE_WINDOW" default:"1m"`
	IdempotencyTTL  time.Duration `envconfig:"BOBA_IDEMPOTENCY_TTL" default:"24h"`
	ShutdownTimeout time.Duration `envconfig:"BOBA_SHUTDOWN_TIMEOUT" default:"15s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate       bool `envconfig:"BOBA_AUTO_MIGRATE" default:"true"`
	CacheDiscountRule bool `envconfig:"BOBA_CACHE_DISCOUNT_RULES" default:"true"`
}

// OrderingConfig drives the scheduled open/close window and public caches.
type OrderingConfig struct {
	OpenAt           string        `envconfig:"BOBA_ORDERING_OPEN_AT"`
	CloseAt          string        `envconfig:"BOBA_ORDERING_CLOSE_AT"`
	TimeZone         string        `envconfig:"BOBA_ORDERING_TIMEZONE" default:"UTC"`
	DiscountRuleTTL  time.Duration `envconfig:"BOBA_DISCOUNT_RULE_CACHE_TTL" default:"60s"`
	MaxVisibleCycles int           `envconfig:"BOBA_MAX_VISIBLE_CYCLES" default:"10"`
}

// WindowEnabled reports whether both ends of the daily ordering window are set.
func (o OrderingConfig) WindowEnabled() bool {
	return strings.TrimSpace(o.OpenAt) != "" && strings.TrimSpace(o.CloseAt) != ""
}

// Location resolves the configured time zone, defaulting to UTC.
func (o OrderingConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(o.TimeZone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading ordering timezone %q: %w", name, err)
	}
	return loc, nil
}

func (o OrderingConfig) validate() error {
	if _, err := o.Location(); err != nil {
		return err
	}
	if !o.WindowEnabled() {
		return nil
	}
	for env, value := range map[string]string{EnvOrderingOpenAt: o.OpenAt, EnvOrderingCloseAt: o.CloseAt} {
		if _, err := time.Parse(ClockLayout, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%s must use %s: %w", env, ClockLayout, err)
		}
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BOBA_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"BOBA_CRON_LOCK_TTL" default:"55s"`
	// JobTimeout bounds each job run inside a tick.
	JobTimeout time.Duration `envconfig:"BOBA_CRON_JOB_TIMEOUT" default:"50s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if !db.IsSQLite() {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, db.Driver)
	}
	if strings.TrimSpace(db.Path) == "" {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, EnvDBPath)
	}

	busy := db.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	db.DSN = fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate",
		db.Path, busy.Milliseconds())
	return nil
}
