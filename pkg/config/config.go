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
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	Tracing      TracingConfig
	Retention    RetentionConfig
	Orders       OrdersConfig
	HTTP         HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Outbox.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERSTOCK_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERSTOCK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ORDERSTOCK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"ORDERSTOCK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"ORDERSTOCK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERSTOCK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"ORDERSTOCK_DB_DSN"`

	Host     string `envconfig:"ORDERSTOCK_DB_HOST"`
	Port     int    `envconfig:"ORDERSTOCK_DB_PORT" default:"5432"`
	User     string `envconfig:"ORDERSTOCK_DB_USER"`
	Password string `envconfig:"ORDERSTOCK_DB_PASSWORD"`
	Name     string `envconfig:"ORDERSTOCK_DB_NAME"`
	SSLMode  string `envconfig:"ORDERSTOCK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERSTOCK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERSTOCK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERSTOCK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERSTOCK_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// LockTimeout bounds how long a transaction waits on a row lock before
	// the database aborts it. Zero leaves the server default in place.
	LockTimeout time.Duration `envconfig:"ORDERSTOCK_DB_LOCK_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERSTOCK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDERSTOCK_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERSTOCK_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERSTOCK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERSTOCK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERSTOCK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERSTOCK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERSTOCK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERSTOCK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ORDERSTOCK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ORDERSTOCK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ORDERSTOCK_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate       bool `envconfig:"ORDERSTOCK_AUTO_MIGRATE" default:"false"`
	SeedReferenceData bool `envconfig:"ORDERSTOCK_SEED_REFERENCE_DATA" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ORDERSTOCK_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"ORDERSTOCK_PUBSUB_ORDERS_TOPIC" default:"orderstock-orders"`
	StockTopic  string `envconfig:"ORDERSTOCK_PUBSUB_STOCK_TOPIC" default:"orderstock-stock"`
}

type KafkaConfig struct {
	Brokers     string `envconfig:"ORDERSTOCK_KAFKA_BROKERS"`
	OrdersTopic string `envconfig:"ORDERSTOCK_KAFKA_ORDERS_TOPIC" default:"orderstock.orders"`
	StockTopic  string `envconfig:"ORDERSTOCK_KAFKA_STOCK_TOPIC" default:"orderstock.stock"`
}

// BrokerList splits the configured comma separated broker addresses.
func (k KafkaConfig) BrokerList() []string {
	return splitList(k.Brokers)
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"ORDERSTOCK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"ORDERSTOCK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"ORDERSTOCK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Sink           string `envconfig:"ORDERSTOCK_OUTBOX_SINK" default:"pubsub"`
}

func (o OutboxConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.Sink)) {
	case OutboxSinkPubSub, OutboxSinkKafka, OutboxSinkLog:
		return nil
	}
	return fmt.Errorf("unsupported outbox sink %q", o.Sink)
}

type TracingConfig struct {
	Endpoint    string  `envconfig:"ORDERSTOCK_OTEL_EXPORTER_ENDPOINT"`
	Insecure    bool    `envconfig:"ORDERSTOCK_OTEL_EXPORTER_INSECURE" default:"true"`
	SampleRatio float64 `envconfig:"ORDERSTOCK_OTEL_SAMPLE_RATIO" default:"1"`
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

type RetentionConfig struct {
	CancelledOrderDays int `envconfig:"ORDERSTOCK_RETENTION_CANCELLED_ORDER_DAYS" default:"180"`
	OutboxDays         int `envconfig:"ORDERSTOCK_RETENTION_OUTBOX_DAYS" default:"30"`
}

type OrdersConfig struct {
	RetryAttempts uint64        `envconfig:"ORDERSTOCK_ORDERS_RETRY_ATTEMPTS" default:"3"`
	RetryBackoff  time.Duration `envconfig:"ORDERSTOCK_ORDERS_RETRY_BACKOFF" default:"50ms"`
}

type HTTPConfig struct {
	CORSAllowedOrigins string        `envconfig:"ORDERSTOCK_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	RateLimitWindow    time.Duration `envconfig:"ORDERSTOCK_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitRequests  int           `envconfig:"ORDERSTOCK_RATE_LIMIT_REQUESTS" default:"120"`
	ShutdownTimeout    time.Duration `envconfig:"ORDERSTOCK_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// AllowedOrigins splits the configured comma separated CORS origins.
func (h HTTPConfig) AllowedOrigins() []string {
	return splitList(h.CORSAllowedOrigins)
}

func splitList(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range hostDBEnvVars {
		if values[env] == "" {
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
