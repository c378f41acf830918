package config

const (
	EnvPrefix = "WAREHOUSE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	AuditSinkLog      = "log"
	AuditSinkPubSub   = "pubsub"
	AuditSinkBigQuery = "bigquery"
)

const (
	EnvAppEnv       = "WAREHOUSE_APP_ENV"
	EnvPort         = "WAREHOUSE_APP_PORT"
	EnvDBDSN        = "WAREHOUSE_DB_DSN"
	EnvDBHost       = "WAREHOUSE_DB_HOST"
	EnvDBUser       = "WAREHOUSE_DB_USER"
	EnvDBName       = "WAREHOUSE_DB_NAME"
	EnvRedisURL     = "WAREHOUSE_REDIS_URL"
	EnvJWTSecret    = "WAREHOUSE_JWT_SECRET"
	EnvJWTIssuer    = "WAREHOUSE_JWT_ISSUER"
	EnvUseSQLite    = "WAREHOUSE_USE_SQLITE"
	EnvAuditSink    = "WAREHOUSE_AUDIT_SINK"
	EnvAuditTopic   = "WAREHOUSE_PUBSUB_AUDIT_TOPIC"
	EnvGCPProjectID = "WAREHOUSE_GCP_PROJECT_ID"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
