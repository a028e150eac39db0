package config

const EnvPrefix = "ORDERSTOCK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	OutboxSinkPubSub = "pubsub"
	OutboxSinkKafka  = "kafka"
	OutboxSinkLog    = "log"
)

const (
	EnvAppEnv      = "ORDERSTOCK_APP_ENV"
	EnvPort        = "ORDERSTOCK_APP_PORT"
	EnvLogLevel    = "ORDERSTOCK_LOG_LEVEL"
	EnvDBDSN       = "ORDERSTOCK_DB_DSN"
	EnvDBHost      = "ORDERSTOCK_DB_HOST"
	EnvDBPort      = "ORDERSTOCK_DB_PORT"
	EnvDBUser      = "ORDERSTOCK_DB_USER"
	EnvDBPassword  = "ORDERSTOCK_DB_PASSWORD"
	EnvDBName      = "ORDERSTOCK_DB_NAME"
	EnvDBLockWait  = "ORDERSTOCK_DB_LOCK_TIMEOUT"
	EnvRedisURL    = "ORDERSTOCK_REDIS_URL"
	EnvJWTSecret   = "ORDERSTOCK_JWT_SECRET"
	EnvJWTIssuer   = "ORDERSTOCK_JWT_ISSUER"
	EnvOutboxSink  = "ORDERSTOCK_OUTBOX_SINK"
	EnvKafkaBroker = "ORDERSTOCK_KAFKA_BROKERS"
	EnvSeedData    = "ORDERSTOCK_SEED_REFERENCE_DATA"
)

var hostDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
