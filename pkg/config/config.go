package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	API          APIConfig
	Cron         CronConfig
	Scheduling   SchedulingConfig
	Rebuy        RebuyConfig
	Email        EmailConfig
	Sendgrid     SendgridConfig
	Portal       PortalConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Rebuy.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ELOCALPASS_APP_ENV" required:"true"`
	Port         string `envconfig:"ELOCALPASS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ELOCALPASS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ELOCALPASS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ELOCALPASS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ELOCALPASS_DB_DSN"`
	Driver string `envconfig:"ELOCALPASS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ELOCALPASS_DB_HOST"`
	LegacyPort     int    `envconfig:"ELOCALPASS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ELOCALPASS_DB_USER"`
	LegacyPassword string `envconfig:"ELOCALPASS_DB_PASSWORD"`
	LegacyName     string `envconfig:"ELOCALPASS_DB_NAME"`
	LegacySSLMode  string `envconfig:"ELOCALPASS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ELOCALPASS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ELOCALPASS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ELOCALPASS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ELOCALPASS_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"ELOCALPASS_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ELOCALPASS_REDIS_URL"`
	Address      string        `envconfig:"ELOCALPASS_REDIS_ADDR"`
	Password     string        `envconfig:"ELOCALPASS_REDIS_PASSWORD"`
	DB           int           `envconfig:"ELOCALPASS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ELOCALPASS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ELOCALPASS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ELOCALPASS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ELOCALPASS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ELOCALPASS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ELOCALPASS_AUTO_MIGRATE" default:"false"`
}

// APIConfig holds the bearer tokens guarding non-trigger routes.
type APIConfig struct {
	IntakeToken string `envconfig:"ELOCALPASS_INTAKE_TOKEN"`
	AdminToken  string `envconfig:"ELOCALPASS_ADMIN_TOKEN"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"ELOCALPASS_CRON_INTERVAL" default:"5m"`
	LockTTL               time.Duration `envconfig:"ELOCALPASS_CRON_LOCK_TTL" default:"4m"`
	DeliveryRetention     time.Duration `envconfig:"ELOCALPASS_EMAIL_DELIVERY_RETENTION" default:"720h"`
	OutboxRetention       time.Duration `envconfig:"ELOCALPASS_OUTBOX_RETENTION" default:"720h"`
	OutboxFailedRetention time.Duration `envconfig:"ELOCALPASS_OUTBOX_FAILED_RETENTION" default:"720h"`
	WelcomeResendGrace    time.Duration `envconfig:"ELOCALPASS_WELCOME_RESEND_GRACE" default:"15m"`
	WelcomeResendMaxAge   time.Duration `envconfig:"ELOCALPASS_WELCOME_RESEND_MAX_AGE" default:"72h"`
}

type SchedulingConfig struct {
	QStashURL               string        `envconfig:"ELOCALPASS_QSTASH_URL" default:"https://qstash.upstash.io"`
	QStashToken             string        `envconfig:"QSTASH_TOKEN"`
	QStashCurrentSigningKey string        `envconfig:"QSTASH_CURRENT_SIGNING_KEY"`
	QStashNextSigningKey    string        `envconfig:"QSTASH_NEXT_SIGNING_KEY"`
	QStashTimeout           time.Duration `envconfig:"ELOCALPASS_QSTASH_TIMEOUT" default:"10s"`
	CallbackBaseURL         string        `envconfig:"ELOCALPASS_CALLBACK_BASE_URL"`
	QStashRetries           int           `envconfig:"ELOCALPASS_QSTASH_RETRIES" default:"3"`
	CronSecret              string        `envconfig:"CRON_SECRET"`
	RetryBatchSize          int           `envconfig:"ELOCALPASS_SCHEDULED_RETRY_BATCH_SIZE" default:"100"`
}

// DispatchEnabled reports whether delayed triggers can be published.
func (s SchedulingConfig) DispatchEnabled() bool {
	return strings.TrimSpace(s.QStashToken) != "" && strings.TrimSpace(s.CallbackBaseURL) != ""
}

// SigningKeys returns the non-empty QStash signing keys, current first.
func (s SchedulingConfig) SigningKeys() []string {
	keys := make([]string, 0, 2)
	for _, k := range []string{s.QStashCurrentSigningKey, s.QStashNextSigningKey} {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

type RebuyConfig struct {
	WindowStart time.Duration `envconfig:"ELOCALPASS_REBUY_WINDOW_START" default:"6h"`
	WindowEnd   time.Duration `envconfig:"ELOCALPASS_REBUY_WINDOW_END" default:"12h"`
	ClaimLease  time.Duration `envconfig:"ELOCALPASS_REBUY_CLAIM_LEASE" default:"15m"`
	BatchSize   int           `envconfig:"ELOCALPASS_REBUY_BATCH_SIZE" default:"200"`
}

func (r RebuyConfig) validate() error {
	if r.WindowStart < 0 || r.WindowEnd <= r.WindowStart {
		return fmt.Errorf("%s must be greater than %s", EnvRebuyWindowEnd, EnvRebuyWindowStart)
	}
	return nil
}

type EmailConfig struct {
	Provider    string        `envconfig:"ELOCALPASS_EMAIL_PROVIDER" default:"log"`
	FromEmail   string        `envconfig:"ELOCALPASS_EMAIL_FROM" default:"noreply@elocalpass.com"`
	FromName    string        `envconfig:"ELOCALPASS_EMAIL_FROM_NAME" default:"ELocalPass"`
	SendTimeout time.Duration `envconfig:"ELOCALPASS_EMAIL_SEND_TIMEOUT" default:"10s"`
}

type SendgridConfig struct {
	APIKey string `envconfig:"ELOCALPASS_SENDGRID_API_KEY"`
}

type PortalConfig struct {
	BaseURL         string `envconfig:"ELOCALPASS_PORTAL_BASE_URL" default:"https://elocalpass.com"`
	MagicLinkSecret string `envconfig:"ELOCALPASS_MAGIC_LINK_SECRET"`
	MagicLinkIssuer string `envconfig:"ELOCALPASS_MAGIC_LINK_ISSUER" default:"elocalpass"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ELOCALPASS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	EventsTopic string `envconfig:"ELOCALPASS_PUBSUB_EVENTS_TOPIC" default:"elocalpass-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ELOCALPASS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ELOCALPASS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ELOCALPASS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// MetricsAddr exposes the publisher's Prometheus counters when set, e.g. ":9102".
	MetricsAddr string `envconfig:"ELOCALPASS_OUTBOX_METRICS_ADDR"`
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
