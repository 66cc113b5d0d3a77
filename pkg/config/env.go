package config

// EnvPrefix is handed to envconfig; every field carries an explicit name.
const EnvPrefix = "RECICLAJE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "RECICLAJE_APP_ENV"
	EnvPort                   = "RECICLAJE_APP_PORT"
	EnvDBDSN                  = "RECICLAJE_DB_DSN"
	EnvDBHost                 = "RECICLAJE_DB_HOST"
	EnvDBPort                 = "RECICLAJE_DB_PORT"
	EnvDBUser                 = "RECICLAJE_DB_USER"
	EnvDBPassword             = "RECICLAJE_DB_PASSWORD"
	EnvDBName                 = "RECICLAJE_DB_NAME"
	EnvRedisURL               = "RECICLAJE_REDIS_URL"
	EnvJWTSecret              = "RECICLAJE_JWT_SECRET"
	EnvJWTIssuer              = "RECICLAJE_JWT_ISSUER"
	EnvJWTExpMins             = "RECICLAJE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "RECICLAJE_REFRESH_TOKEN_TTL_MINUTES"
	EnvAssignAllowReopen      = "RECICLAJE_ASSIGN_ALLOW_REOPEN"
	EnvPubSubRequestsTopic    = "RECICLAJE_PUBSUB_REQUESTS_TOPIC"
	EnvUseSQLite              = "RECICLAJE_USE_SQLITE"
	EnvAutoMigrate            = "RECICLAJE_AUTO_MIGRATE"
)
