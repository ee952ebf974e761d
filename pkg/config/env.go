package config

const EnvPrefix = "CONTRACTOR"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

const (
	EnvAppEnv = "CONTRACTOR_APP_ENV"
	EnvPort   = "CONTRACTOR_APP_PORT"

	EnvDBDSN  = "CONTRACTOR_DB_DSN"
	EnvDBHost = "CONTRACTOR_DB_HOST"
	EnvDBUser = "CONTRACTOR_DB_USER"
	EnvDBName = "CONTRACTOR_DB_NAME"

	EnvRedisURL  = "CONTRACTOR_REDIS_URL"
	EnvRedisAddr = "CONTRACTOR_REDIS_ADDR"

	EnvJWTSecret = "CONTRACTOR_JWT_SECRET"
	EnvJWTIssuer = "CONTRACTOR_JWT_ISSUER"

	EnvTaxRatePct       = "CONTRACTOR_PRICING_TAX_RATE_PCT"
	EnvOrdersPrefix     = "CONTRACTOR_ORDERS_NUMBER_PREFIX"
	EnvOrdersTimezone   = "CONTRACTOR_ORDERS_TIMEZONE"
	EnvSessionsTTL      = "CONTRACTOR_SESSIONS_TTL"
	EnvRateLimitBackend = "CONTRACTOR_RATE_LIMIT_BACKEND"
	EnvDedupeBackend    = "CONTRACTOR_DEDUPE_BACKEND"
	EnvRenderTimeout    = "CONTRACTOR_DOCUMENTS_RENDER_TIMEOUT"

	EnvGCPProjectID    = "CONTRACTOR_GCP_PROJECT_ID"
	EnvPubSubOrders    = "CONTRACTOR_PUBSUB_ORDERS_TOPIC"
	EnvBigQueryDataset = "CONTRACTOR_BIGQUERY_DATASET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
