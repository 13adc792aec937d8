package config

const (
	EnvPrefix = "ELOCALPASS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "ELOCALPASS_APP_ENV"
	EnvPort     = "ELOCALPASS_APP_PORT"
	EnvLogLevel = "ELOCALPASS_LOG_LEVEL"

	EnvDBDSN  = "ELOCALPASS_DB_DSN"
	EnvDBHost = "ELOCALPASS_DB_HOST"
	EnvDBUser = "ELOCALPASS_DB_USER"
	EnvDBName = "ELOCALPASS_DB_NAME"

	EnvRedisURL = "ELOCALPASS_REDIS_URL"

	EnvCronSecret       = "CRON_SECRET"
	EnvQStashToken      = "QSTASH_TOKEN"
	EnvQStashCurrentKey = "QSTASH_CURRENT_SIGNING_KEY"
	EnvQStashNextKey    = "QSTASH_NEXT_SIGNING_KEY"
	EnvCallbackBaseURL  = "ELOCALPASS_CALLBACK_BASE_URL"

	EnvRebuyWindowStart = "ELOCALPASS_REBUY_WINDOW_START"
	EnvRebuyWindowEnd   = "ELOCALPASS_REBUY_WINDOW_END"

	EnvEmailProvider    = "ELOCALPASS_EMAIL_PROVIDER"
	EnvEmailSendTimeout = "ELOCALPASS_EMAIL_SEND_TIMEOUT"
	EnvSendgridAPIKey   = "ELOCALPASS_SENDGRID_API_KEY"

	EnvMagicLinkSecret = "ELOCALPASS_MAGIC_LINK_SECRET"
	EnvGCPProjectID    = "ELOCALPASS_GCP_PROJECT_ID"
	EnvPubSubTopic     = "ELOCALPASS_PUBSUB_EVENTS_TOPIC"

	EmailProviderSendgrid = "sendgrid"
	EmailProviderLog      = "log"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
