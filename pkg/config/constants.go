package config

const EnvPrefix = "BOBA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"

	// ClockLayout is the HH:MM layout used by the ordering window settings.
	ClockLayout = "15:04"
)

const (
	EnvAppEnv           = "BOBA_APP_ENV"
	EnvPort             = "BOBA_APP_PORT"
	EnvDBDSN            = "BOBA_DB_DSN"
	EnvDBDriver         = "BOBA_DB_DRIVER"
	EnvDBPath           = "BOBA_DB_PATH"
	EnvDBTxWaitTimeout  = "BOBA_DB_TX_WAIT_TIMEOUT"
	EnvRedisURL         = "BOBA_REDIS_URL"
	EnvOrderingOpenAt   = "BOBA_ORDERING_OPEN_AT"
	EnvOrderingCloseAt  = "BOBA_ORDERING_CLOSE_AT"
	EnvOrderingTimeZone = "BOBA_ORDERING_TIMEZONE"
	EnvMaxVisibleCycles = "BOBA_MAX_VISIBLE_CYCLES"
)
