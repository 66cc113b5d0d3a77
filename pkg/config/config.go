package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	APIRateLimit  APIRateLimitConfig
	Flash         FlashConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Stats         StatsConfig
	CORS          CORSConfig
}

// Load reads the environment and rejects combinations that only fail later
// at runtime. Every problem found is reported, not just the first.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.DB.DSN == "" {
		dsn, err := cfg.DB.legacyDSN()
		if err != nil {
			return nil, err
		}
		cfg.DB.DSN = dsn
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.JWT.ExpirationMinutes > 0, "%s must be positive", EnvJWTExpMins)
	check(c.Cron.LockTTL > 0, "cron lock ttl must be positive")
	check(c.Cron.Interval > 0, "cron interval must be positive")
	check(c.Outbox.MaxAttempts > 0, "outbox max attempts must be positive")
	check(c.DB.TxRetries >= 0, "db tx retries cannot be negative")
	check(c.Password.ArgonKeyLen >= 16, "argon key length must be at least 16 bytes")
	if c.App.IsProd() {
		check(!c.FeatureFlags.UseSQLite, "sqlite is not allowed in %s", c.App.Env)
		check(!c.FeatureFlags.AutoMigrate, "auto migrate is not allowed in %s", c.App.Env)
	}
	return errs
}

type AppConfig struct {
	Env          string `envconfig:"RECICLAJE_APP_ENV" required:"true"`
	Port         string `envconfig:"RECICLAJE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RECICLAJE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RECICLAJE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"RECICLAJE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RECICLAJE_DB_DSN"`
	Driver string `envconfig:"RECICLAJE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RECICLAJE_DB_HOST"`
	LegacyPort     int    `envconfig:"RECICLAJE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RECICLAJE_DB_USER"`
	LegacyPassword string `envconfig:"RECICLAJE_DB_PASSWORD"`
	LegacyName     string `envconfig:"RECICLAJE_DB_NAME"`
	LegacySSLMode  string `envconfig:"RECICLAJE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RECICLAJE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RECICLAJE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RECICLAJE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RECICLAJE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"RECICLAJE_DB_SLOW_QUERY" default:"500ms"`
	// TxRetries is how many times a transaction is replayed after a
	// serialization failure or deadlock.
	TxRetries int `envconfig:"RECICLAJE_DB_TX_RETRIES" default:"2"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RECICLAJE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RECICLAJE_REDIS_ADDR"`
	Password     string        `envconfig:"RECICLAJE_REDIS_PASSWORD"`
	DB           int           `envconfig:"RECICLAJE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RECICLAJE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RECICLAJE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RECICLAJE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RECICLAJE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RECICLAJE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"RECICLAJE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"RECICLAJE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"RECICLAJE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"RECICLAJE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"RECICLAJE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"RECICLAJE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"RECICLAJE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"RECICLAJE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"RECICLAJE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"RECICLAJE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIdentityLimit int           `envconfig:"RECICLAJE_AUTH_RATE_LIMIT_LOGIN_IDENTITY_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"RECICLAJE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"RECICLAJE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterIdentLimit int           `envconfig:"RECICLAJE_AUTH_RATE_LIMIT_REGISTER_IDENTITY_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"RECICLAJE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// APIRateLimitConfig throttles authenticated API traffic per user.
type APIRateLimitConfig struct {
	Window time.Duration `envconfig:"RECICLAJE_API_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"RECICLAJE_API_RATE_LIMIT" default:"120"`
}

type FlashConfig struct {
	TTL time.Duration `envconfig:"RECICLAJE_FLASH_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RECICLAJE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RECICLAJE_AUTO_MIGRATE" default:"false"`
	// AssignAllowReopen lets bulk assignment move finished requests back to EN_ROUTE.
	AssignAllowReopen bool `envconfig:"RECICLAJE_ASSIGN_ALLOW_REOPEN" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"RECICLAJE_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RECICLAJE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"RECICLAJE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	RequestsTopic        string `envconfig:"RECICLAJE_PUBSUB_REQUESTS_TOPIC" default:"rm-pickup-request-events"`
	RequestsSubscription string `envconfig:"RECICLAJE_PUBSUB_REQUESTS_SUBSCRIPTION" default:"rm-pickup-request-notifications"`
	// Provision creates a missing topic or subscription instead of failing.
	// Meant for the local emulator.
	Provision      bool `envconfig:"RECICLAJE_PUBSUB_PROVISION" default:"false"`
	MaxOutstanding int  `envconfig:"RECICLAJE_PUBSUB_MAX_OUTSTANDING" default:"100"`
	AckDeadlineSec int  `envconfig:"RECICLAJE_PUBSUB_ACK_DEADLINE_SECONDS" default:"30"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"RECICLAJE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"RECICLAJE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"RECICLAJE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"RECICLAJE_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"RECICLAJE_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"RECICLAJE_CRON_LOCK_TTL" default:"4m"`
	// StalePendingAfter is how long a request may wait unassigned before it is reported.
	StalePendingAfter time.Duration `envconfig:"RECICLAJE_CRON_STALE_PENDING_AFTER" default:"72h"`
	StalePendingEvery time.Duration `envconfig:"RECICLAJE_CRON_STALE_PENDING_EVERY" default:"1h"`
	RetentionEvery    time.Duration `envconfig:"RECICLAJE_CRON_RETENTION_EVERY" default:"24h"`
}

type StatsConfig struct {
	CacheTTL time.Duration `envconfig:"RECICLAJE_STATS_CACHE_TTL" default:"10m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"RECICLAJE_CORS_ALLOWED_ORIGINS" default:"*"`
}

// PollInterval converts the configured poll milliseconds into a duration.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

// legacyDSN assembles a postgres URL from the discrete RECICLAJE_DB_* settings.
func (db DBConfig) legacyDSN() (string, error) {
	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		u.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	return u.String(), nil
}
