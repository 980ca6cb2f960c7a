package config

// EnvPrefix is empty because every field carries its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "CRIDE_APP_ENV"
	EnvPort     = "CRIDE_APP_PORT"
	EnvLogLevel = "CRIDE_LOG_LEVEL"

	EnvDBDSN  = "CRIDE_DB_DSN"
	EnvDBHost = "CRIDE_DB_HOST"
	EnvDBUser = "CRIDE_DB_USER"
	EnvDBName = "CRIDE_DB_NAME"

	EnvRedisURL = "CRIDE_REDIS_URL"

	EnvJWTSecret  = "CRIDE_JWT_SECRET"
	EnvJWTIssuer  = "CRIDE_JWT_ISSUER"
	EnvJWTExpMins = "CRIDE_JWT_EXPIRATION_MINUTES"

	EnvRidesMinLeadTime  = "CRIDE_RIDES_MIN_LEAD_TIME"
	EnvRidesMaxSeats     = "CRIDE_RIDES_MAX_SEATS"
	EnvRidesJoinAttempts = "CRIDE_RIDES_JOIN_ATTEMPTS"

	EnvInvitationsInitialQuota = "CRIDE_INVITATIONS_INITIAL_QUOTA"

	EnvGCPProjectID = "CRIDE_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
