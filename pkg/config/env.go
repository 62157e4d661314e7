package config

const (
	EnvEnvFile        = "ENV_FILE"
	EnvStorageBackend = "STORAGE_BACKEND"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPostgresDSN         = "POSTGRES_DSN"
	EnvPostgresConnTimeout = "POSTGRES_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvJWTSecret   = "JWT_SECRET"
	EnvTokenTTL    = "TOKEN_TTL"
	EnvTokenIssuer = "TOKEN_ISSUER"

	EnvSwapMaxAttempts  = "SWAP_MAX_ATTEMPTS"
	EnvStaleOfferPolicy = "STALE_OFFER_POLICY"

	EnvEventsEnabled  = "EVENTS_ENABLED"
	EnvEventsTopic    = "EVENTS_TOPIC"
	EnvEventsDLQTopic = "EVENTS_DLQ_TOPIC"
	EnvSweeperGroupID = "SWEEPER_GROUP_ID"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
