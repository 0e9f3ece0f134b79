package config

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "BENEFITS_APP_ENV"
	EnvPort     = "BENEFITS_APP_PORT"
	EnvLogLevel = "BENEFITS_LOG_LEVEL"

	EnvDBDSN    = "BENEFITS_DB_DSN"
	EnvDBDriver = "BENEFITS_DB_DRIVER"
	EnvDBHost   = "BENEFITS_DB_HOST"
	EnvDBUser   = "BENEFITS_DB_USER"
	EnvDBName   = "BENEFITS_DB_NAME"

	EnvRedisURL = "BENEFITS_REDIS_URL"

	EnvJWTSecret = "BENEFITS_JWT_SECRET"
	EnvJWTIssuer = "BENEFITS_JWT_ISSUER"

	EnvGCPProjectID = "BENEFITS_GCP_PROJECT_ID"
	EnvGCSBucket    = "BENEFITS_GCS_BUCKET_NAME"

	EnvPubSubLogisticsTopic = "BENEFITS_PUBSUB_LOGISTICS_TOPIC"
	EnvPubSubLogisticsSub   = "BENEFITS_PUBSUB_LOGISTICS_SUBSCRIPTION"
	EnvPubSubAnalyticsTopic = "BENEFITS_PUBSUB_ANALYTICS_TOPIC"
	EnvPubSubAnalyticsSub   = "BENEFITS_PUBSUB_ANALYTICS_SUBSCRIPTION"

	EnvOrianBaseURL   = "BENEFITS_ORIAN_BASE_URL"
	EnvOrianAPIToken  = "BENEFITS_ORIAN_API_TOKEN"
	EnvOrianConsignee = "BENEFITS_ORIAN_CONSIGNEE"
	EnvOrianTimezone  = "BENEFITS_ORIAN_MESSAGE_TIMEZONE_NAME"
	EnvOrianIDPrefix  = "BENEFITS_ORIAN_ID_PREFIX"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
