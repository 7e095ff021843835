package constants

import "time"

// ArangoDB connection defaults
const (
	DefaultHost            = "localhost"
	DefaultPort            = 8529
	DefaultStateCollection = "migrado"
	DefaultArangosh        = "arangosh"
	DefaultMigrationsPath  = "migrations"

	// DefaultTimeoutSeconds is the request timeout passed to both the HTTP
	// client and arangosh --server.request-timeout.
	DefaultTimeoutSeconds = 1200
)

// Migration identifiers
const (
	// IDWidth is the fixed width of migration ids; lexical order equals numeric order.
	IDWidth = 4
	// InitialState is the state id meaning "nothing applied".
	InitialState = "0000"
	// MaxID is the largest id representable in IDWidth digits.
	MaxID = 9999

	InitialMigrationName = "initial"
	MigrationExtension   = ".js"
)

// State document keys inside the state collection
const (
	StateKey  = "state"
	SchemaKey = "schema"
)

// PostgreSQL defaults
const (
	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"

	DefaultPostgresMaxConnections = 25
	DefaultPostgresMaxIdleConns   = 5
	DefaultSQLiteMaxConnections   = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns     = 1
)

// Default SQL table names for the sqlite/postgres state backends
const (
	DefaultStateTable = "migrado_state"
	DefaultRunsTable  = "migrado_runs"
	DefaultSQLiteFile = "migrado.db"
)

// Connection pool lifetimes
const (
	DefaultMaxConnLifetime = 5 * time.Minute
	DefaultMaxIdleTime     = 1 * time.Minute
	DefaultSQLiteLifetime  = 10 * time.Minute
	DefaultSQLiteIdleTime  = 5 * time.Minute
)

// JWTTTL bounds the lifetime of superuser tokens minted from a JWT secret.
const JWTTTL = time.Hour
