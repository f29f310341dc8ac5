package constants

import (
	"net/http"
	"time"
)

// Application identity
const (
	ApplicationName = "catalogdb"
)

// Database Constants
const (
	// Client/server defaults
	DefaultMySQLPort    = 3306
	DefaultPostgresPort = 5432
	DefaultMySQLCharset = "utf8mb4"
	DefaultTimezone     = "UTC"

	// Connection pool settings
	DefaultPoolSize       = 10
	DefaultSQLitePoolSize = 1 // SQLite allows only one writer

	// SQLite settings
	SQLiteBusyTimeoutMillis = 5000
	SQLiteMemoryPath        = ":memory:"
	ProjectDirPlaceholder   = "%kernel.project_dir%"

	// Bookkeeping table for applied migrations
	DefaultSchemaMigrationsTable = "schema_migrations"
)

// Time and Duration Constants
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultAcquireTimeout = 10 * time.Second
	DefaultIdleTimeout    = 30 * time.Second

	// Connection pool lifetimes
	DefaultMaxConnLifetime = 5 * time.Minute
)

// Environment variable names read by the configuration resolver
const (
	EnvDatabaseURL    = "DATABASE_URL"
	EnvEnabled        = "DB_ENABLED"
	EnvType           = "DB_TYPE"
	EnvHost           = "DB_HOST"
	EnvPort           = "DB_PORT"
	EnvUser           = "DB_USER"
	EnvPassword       = "DB_PASSWORD"
	EnvName           = "DB_NAME"
	EnvSSL            = "DB_SSL"
	EnvPoolSize       = "DB_POOL_SIZE"
	EnvConnectTimeout = "DB_CONNECT_TIMEOUT"
	EnvAcquireTimeout = "DB_ACQUIRE_TIMEOUT"
	EnvIdleTimeout    = "DB_IDLE_TIMEOUT"
	EnvCharset        = "DB_CHARSET"
	EnvTimezone       = "DB_TIMEZONE"
	EnvPath           = "DB_PATH"
)

// DatabaseEnvNames lists every variable the resolver consults.
var DatabaseEnvNames = []string{
	EnvDatabaseURL, EnvEnabled, EnvType, EnvHost, EnvPort, EnvUser, EnvPassword,
	EnvName, EnvSSL, EnvPoolSize, EnvConnectTimeout, EnvAcquireTimeout,
	EnvIdleTimeout, EnvCharset, EnvTimezone, EnvPath,
}

// Server Constants
const (
	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBulkWorkers     = 4
)

// Wait Configuration Constants
const (
	DefaultWaitTimeout  = 60 * time.Second
	DefaultWaitInterval = 2 * time.Second
	DefaultWaitMaxDelay = 10 * time.Second
	DefaultWaitStatus   = http.StatusOK // Use standard library constant
	DefaultWaitMethod   = "GET"
	DefaultHealthPath   = "/health"
)
