package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"time"

	"slotswap/pkg/client"
	"slotswap/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	StorageBackend string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	PostgresDSN         string
	PostgresConnTimeout time.Duration

	Port     string
	LogLevel string

	JWTSecret   string
	TokenTTL    time.Duration
	TokenIssuer string

	SwapMaxAttempts  int
	StaleOfferPolicy string

	EventsEnabled  bool
	EventsTopic    string
	EventsDLQTopic string
	SweeperGroupID string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

// Load reads an optional .env file, then the process environment. Invalid
// configuration is fatal.
func Load(serviceName string) *Config {
	envFile := getEnvStr(EnvEnvFile, DefaultEnvFile)
	envErr := godotenv.Load(envFile)

	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		cfg.Log.Warn("Failed to load env file", "file", envFile, "error", envErr)
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from environment variables without validating it or
// creating the logger and client.
func FromEnv() *Config {
	return &Config{
		StorageBackend: getEnvStr(EnvStorageBackend, DefaultStorageBackend),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		PostgresDSN:         getEnvStr(EnvPostgresDSN, DefaultPostgresDSN),
		PostgresConnTimeout: getEnvDuration(EnvPostgresConnTimeout, DefaultPostgresConnTimeout),

		Port:     getEnvStr(EnvPort, DefaultPort),
		LogLevel: getEnvStr(EnvLogLevel, DefaultLogLevel),

		JWTSecret:   getEnvStr(EnvJWTSecret, ""),
		TokenTTL:    getEnvDuration(EnvTokenTTL, DefaultTokenTTL),
		TokenIssuer: getEnvStr(EnvTokenIssuer, DefaultTokenIssuer),

		SwapMaxAttempts:  getEnvNum(EnvSwapMaxAttempts, DefaultSwapMaxAttempts),
		StaleOfferPolicy: getEnvStr(EnvStaleOfferPolicy, DefaultStaleOfferPolicy),

		EventsEnabled:  getEnvBool(EnvEventsEnabled, DefaultEventsEnabled),
		EventsTopic:    getEnvStr(EnvEventsTopic, DefaultEventsTopic),
		EventsDLQTopic: getEnvStr(EnvEventsDLQTopic, DefaultEventsDLQTopic),
		SweeperGroupID: getEnvStr(EnvSweeperGroupID, DefaultSweeperGroupID),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, cfg.PostgresDSN, cfg.PostgresConnTimeout)
}

// SetStorage connects the client required by the configured backend.
func (cfg *Config) SetStorage() {
	switch cfg.StorageBackend {
	case BackendMongo:
		cfg.SetMongo()
	case BackendPostgres:
		cfg.SetPostgres()
	}
}

func (cfg *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageBackend {
	case BackendMemory:
	case BackendMongo:
		if cfg.MongoURI == "" {
			errs = append(errs, "MongoURI cannot be empty")
		} else if !mongoURIRegex.MatchString(cfg.MongoURI) {
			errs = append(errs, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errs = append(errs, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errs = append(errs, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case BackendPostgres:
		if !postgresDSNRegex.MatchString(cfg.PostgresDSN) {
			errs = append(errs, "PostgresDSN must start with 'postgres://' or 'postgresql://'")
		}
		if cfg.PostgresConnTimeout <= 0 {
			errs = append(errs, fmt.Sprintf("PostgresConnTimeout must be positive, got: %s", cfg.PostgresConnTimeout))
		}
	default:
		errs = append(errs, fmt.Sprintf("StorageBackend must be one of [memory, mongo, postgres], got: %s", cfg.StorageBackend))
	}

	if len(cfg.JWTSecret) < 32 {
		errs = append(errs, "JWTSecret must be at least 32 characters")
	}
	if cfg.TokenTTL <= 0 {
		errs = append(errs, fmt.Sprintf("TokenTTL must be positive, got: %s", cfg.TokenTTL))
	}

	if cfg.SwapMaxAttempts < 1 || cfg.SwapMaxAttempts > 10 {
		errs = append(errs, fmt.Sprintf("SwapMaxAttempts must be between 1 and 10, got: %d", cfg.SwapMaxAttempts))
	}
	if cfg.StaleOfferPolicy != StaleOfferLazy && cfg.StaleOfferPolicy != StaleOfferEager {
		errs = append(errs, fmt.Sprintf("StaleOfferPolicy must be 'lazy' or 'eager', got: %s", cfg.StaleOfferPolicy))
	}
	if cfg.EventsEnabled && cfg.EventsTopic == "" {
		errs = append(errs, "EventsTopic cannot be empty when events are enabled")
	}

	if cfg.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errs = append(errs, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.RateLimitRequests <= 0 {
		errs = append(errs, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errs = append(errs, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if len(errs) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errs {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_backend", cfg.StorageBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"postgres_dsn", redactPostgresDSN(cfg.PostgresDSN),
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"token_ttl", cfg.TokenTTL,
		"swap_max_attempts", cfg.SwapMaxAttempts,
		"stale_offer_policy", cfg.StaleOfferPolicy,
		"events_enabled", cfg.EventsEnabled,
		"events_topic", cfg.EventsTopic,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

var (
	mongoURIRegex    = regexp.MustCompile(`^mongodb(\+srv)?://`)
	postgresDSNRegex = regexp.MustCompile(`^postgres(ql)?://`)

	mongoCredentialRegex    = regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	postgresCredentialRegex = regexp.MustCompile(`(postgres(ql)?://)[^:]+:[^@]+@`)
)

func redactMongoURI(uri string) string {
	return mongoCredentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func redactPostgresDSN(dsn string) string {
	return postgresCredentialRegex.ReplaceAllString(dsn, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	cfg.Client.GracefulShutdown(ctx, cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		return DefaultPaginationLimit
	}
	return min(limit, MaxPaginationLimit)
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
