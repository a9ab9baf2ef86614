package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "FLASHMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "FLASHMART_DB_DSN"
	EnvDBHost = "FLASHMART_DB_HOST"
	EnvDBUser = "FLASHMART_DB_USER"
	EnvDBName = "FLASHMART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
