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
	JWT          JWTConfig
	API          APIConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Audit        AuditConfig
	Inventory    InventoryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Audit.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"WAREHOUSE_APP_ENV" required:"true"`
	Port         string `envconfig:"WAREHOUSE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WAREHOUSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WAREHOUSE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"WAREHOUSE_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"WAREHOUSE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"WAREHOUSE_DB_DSN"`
	Driver string `envconfig:"WAREHOUSE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"WAREHOUSE_DB_HOST"`
	Port     int    `envconfig:"WAREHOUSE_DB_PORT" default:"5432"`
	User     string `envconfig:"WAREHOUSE_DB_USER"`
	Password string `envconfig:"WAREHOUSE_DB_PASSWORD"`
	Name     string `envconfig:"WAREHOUSE_DB_NAME"`
	SSLMode  string `envconfig:"WAREHOUSE_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"WAREHOUSE_SQLITE_PATH" default:"warehouse.db"`

	MaxOpenConns    int           `envconfig:"WAREHOUSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WAREHOUSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WAREHOUSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WAREHOUSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQueryThreshold logs statements at or above it; zero disables.
	SlowQueryThreshold time.Duration `envconfig:"WAREHOUSE_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WAREHOUSE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WAREHOUSE_REDIS_ADDR"`
	Password     string        `envconfig:"WAREHOUSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"WAREHOUSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WAREHOUSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WAREHOUSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WAREHOUSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WAREHOUSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WAREHOUSE_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"WAREHOUSE_REDIS_KEY_PREFIX" default:"wh"`
}

// JWTConfig carries the verification settings for access tokens issued by the
// identity service.
type JWTConfig struct {
	Secret            string `envconfig:"WAREHOUSE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"WAREHOUSE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"WAREHOUSE_JWT_EXPIRATION_MINUTES" default:"60"`
	Audience          string `envconfig:"WAREHOUSE_JWT_AUDIENCE"`
	LeewaySeconds     int    `envconfig:"WAREHOUSE_JWT_LEEWAY_SECONDS" default:"30"`
}

// APIConfig tunes the HTTP surface.
type APIConfig struct {
	CORSOrigins       []string      `envconfig:"WAREHOUSE_CORS_ORIGINS" default:"http://localhost:3000"`
	WriteRateLimit    int           `envconfig:"WAREHOUSE_WRITE_RATE_LIMIT" default:"120"`
	WriteRateWindow   time.Duration `envconfig:"WAREHOUSE_WRITE_RATE_WINDOW" default:"1m"`
	ReadHeaderTimeout time.Duration `envconfig:"WAREHOUSE_READ_HEADER_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"WAREHOUSE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"WAREHOUSE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"WAREHOUSE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"WAREHOUSE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"WAREHOUSE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AuditTopic        string `envconfig:"WAREHOUSE_PUBSUB_AUDIT_TOPIC" default:"inventory-movements"`
	AuditSubscription string `envconfig:"WAREHOUSE_PUBSUB_AUDIT_SUBSCRIPTION"`
	AlertsTopic       string `envconfig:"WAREHOUSE_PUBSUB_ALERTS_TOPIC" default:"inventory-alerts"`
}

type BigQueryConfig struct {
	Dataset        string `envconfig:"WAREHOUSE_BIGQUERY_DATASET" default:"warehouse"`
	MovementsTable string `envconfig:"WAREHOUSE_BIGQUERY_MOVEMENTS_TABLE" default:"inventory_movements"`
	// CreateTables lets the relay create a missing movements table.
	CreateTables bool `envconfig:"WAREHOUSE_BIGQUERY_CREATE_TABLES" default:"false"`
}

type OutboxConfig struct {
	BatchSize        int `envconfig:"WAREHOUSE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS   int `envconfig:"WAREHOUSE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts      int `envconfig:"WAREHOUSE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays    int `envconfig:"WAREHOUSE_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays int `envconfig:"WAREHOUSE_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
}

// AuditConfig selects where committed movements are mirrored.
type AuditConfig struct {
	Sink string `envconfig:"WAREHOUSE_AUDIT_SINK" default:"log"`
}

func (a AuditConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.Sink)) {
	case AuditSinkLog, AuditSinkPubSub, AuditSinkBigQuery:
		return nil
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s", EnvAuditSink, AuditSinkLog, AuditSinkPubSub, AuditSinkBigQuery)
	}
}

// Kind returns the normalized sink kind.
func (a AuditConfig) Kind() string {
	kind := strings.ToLower(strings.TrimSpace(a.Sink))
	if kind == "" {
		return AuditSinkLog
	}
	return kind
}

type InventoryConfig struct {
	ExpiryWarningDays int           `envconfig:"WAREHOUSE_EXPIRY_WARNING_DAYS" default:"30"`
	CronInterval      time.Duration `envconfig:"WAREHOUSE_CRON_INTERVAL" default:"1h"`
	AlertDedupeTTL    time.Duration `envconfig:"WAREHOUSE_ALERT_DEDUPE_TTL" default:"36h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
