package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Eventing  EventingConfig
	GCP       GCPConfig
	GCS       GCSConfig
	PubSub    PubSubConfig
	BigQuery  BigQueryConfig
	Outbox    OutboxConfig
	Orian     OrianConfig
	Logistics LogisticsConfig
	RateLimit RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Orian.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BENEFITS_APP_ENV" required:"true"`
	Port         string `envconfig:"BENEFITS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BENEFITS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BENEFITS_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"BENEFITS_LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"BENEFITS_APP_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind        string `envconfig:"BENEFITS_SERVICE_KIND" default:"api"`
	MetricsAddr string `envconfig:"BENEFITS_METRICS_ADDR"`
}

type DBConfig struct {
	DSN         string `envconfig:"BENEFITS_DB_DSN"`
	Driver      string `envconfig:"BENEFITS_DB_DRIVER" default:"postgres"`
	AutoMigrate bool   `envconfig:"BENEFITS_DB_AUTO_MIGRATE" default:"false"`

	LegacyHost     string `envconfig:"BENEFITS_DB_HOST"`
	LegacyPort     int    `envconfig:"BENEFITS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BENEFITS_DB_USER"`
	LegacyPassword string `envconfig:"BENEFITS_DB_PASSWORD"`
	LegacyName     string `envconfig:"BENEFITS_DB_NAME"`
	LegacySSLMode  string `envconfig:"BENEFITS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BENEFITS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BENEFITS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BENEFITS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BENEFITS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"BENEFITS_DB_SLOW_QUERY" default:"500ms"`
}

// IsSQLite reports whether the sqlite driver is configured.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"BENEFITS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BENEFITS_REDIS_ADDR"`
	Password     string        `envconfig:"BENEFITS_REDIS_PASSWORD"`
	DB           int           `envconfig:"BENEFITS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BENEFITS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BENEFITS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BENEFITS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BENEFITS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BENEFITS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BENEFITS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BENEFITS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BENEFITS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"BENEFITS_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BENEFITS_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"BENEFITS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BENEFITS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"BENEFITS_GCS_BUCKET_NAME" required:"true"`
}

type PubSubConfig struct {
	LogisticsTopic        string `envconfig:"BENEFITS_PUBSUB_LOGISTICS_TOPIC" required:"true"`
	LogisticsSubscription string `envconfig:"BENEFITS_PUBSUB_LOGISTICS_SUBSCRIPTION" required:"true"`
	AnalyticsTopic        string `envconfig:"BENEFITS_PUBSUB_ANALYTICS_TOPIC" required:"true"`
	AnalyticsSubscription string `envconfig:"BENEFITS_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
	MaxOutstanding        int    `envconfig:"BENEFITS_PUBSUB_MAX_OUTSTANDING" default:"100"`
}

type BigQueryConfig struct {
	Dataset           string `envconfig:"BENEFITS_BIGQUERY_DATASET" default:"benefits_logistics"`
	StatusEventsTable string `envconfig:"BENEFITS_BIGQUERY_STATUS_EVENTS_TABLE" default:"logistics_status_events"`
	ReceiptLinesTable string `envconfig:"BENEFITS_BIGQUERY_RECEIPT_LINES_TABLE" default:"logistics_receipt_lines"`
	CreateTables      bool   `envconfig:"BENEFITS_BIGQUERY_CREATE_TABLES" default:"false"`

	BatchSize     int           `envconfig:"BENEFITS_BIGQUERY_BATCH_SIZE" default:"1"`
	FlushInterval time.Duration `envconfig:"BENEFITS_BIGQUERY_FLUSH_INTERVAL" default:"5s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BENEFITS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BENEFITS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BENEFITS_OUTBOX_MAX_ATTEMPTS" default:"10"`

	RetentionDays    int `envconfig:"BENEFITS_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays int `envconfig:"BENEFITS_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
}

type OrianConfig struct {
	BaseURL             string        `envconfig:"BENEFITS_ORIAN_BASE_URL" required:"true"`
	APIToken            string        `envconfig:"BENEFITS_ORIAN_API_TOKEN" required:"true"`
	Consignee           string        `envconfig:"BENEFITS_ORIAN_CONSIGNEE" required:"true"`
	MessageTimezoneName string        `envconfig:"BENEFITS_ORIAN_MESSAGE_TIMEZONE_NAME" default:"Asia/Jerusalem"`
	RequestTimeout      time.Duration `envconfig:"BENEFITS_ORIAN_REQUEST_TIMEOUT" default:"10s"`
	IDPrefix            string        `envconfig:"BENEFITS_ORIAN_ID_PREFIX" default:"PLATFORM"`
	WebhookSecret       string        `envconfig:"BENEFITS_ORIAN_WEBHOOK_SECRET"`
	WebhookReplayTTL    time.Duration `envconfig:"BENEFITS_ORIAN_WEBHOOK_REPLAY_TTL" default:"10m"`
}

// Location resolves the timezone Orian uses for message dates.
func (o OrianConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(o.MessageTimezoneName)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvOrianTimezone, name, err)
	}
	return loc, nil
}

type LogisticsConfig struct {
	SnapshotPrefix      string        `envconfig:"BENEFITS_LOGISTICS_SNAPSHOT_PREFIX" default:"ORIAN"`
	DispatchBatchSize   int           `envconfig:"BENEFITS_LOGISTICS_DISPATCH_BATCH_SIZE" default:"100"`
	DispatchOrderMinAge time.Duration `envconfig:"BENEFITS_LOGISTICS_DISPATCH_ORDER_MIN_AGE" default:"30m"`
	ReplayBatchSize     int           `envconfig:"BENEFITS_LOGISTICS_REPLAY_BATCH_SIZE" default:"50"`
	ReplayGracePeriod   time.Duration `envconfig:"BENEFITS_LOGISTICS_REPLAY_GRACE_PERIOD" default:"15m"`
	DispatchInterval    time.Duration `envconfig:"BENEFITS_LOGISTICS_DISPATCH_INTERVAL" default:"5m"`
	ReplayInterval      time.Duration `envconfig:"BENEFITS_LOGISTICS_REPLAY_INTERVAL" default:"10m"`
	RetentionInterval   time.Duration `envconfig:"BENEFITS_LOGISTICS_RETENTION_INTERVAL" default:"24h"`
	CronTick            time.Duration `envconfig:"BENEFITS_LOGISTICS_CRON_TICK" default:"1m"`
	CronLockTTL         time.Duration `envconfig:"BENEFITS_LOGISTICS_CRON_LOCK_TTL" default:"10m"`
}

type RateLimitConfig struct {
	Window         time.Duration `envconfig:"BENEFITS_RATE_LIMIT_WINDOW" default:"1m"`
	WebhookIPLimit int           `envconfig:"BENEFITS_RATE_LIMIT_WEBHOOK_IP" default:"600"`
	AdminIPLimit   int           `envconfig:"BENEFITS_RATE_LIMIT_ADMIN_IP" default:"120"`
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
