package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/loykin/migrado/internal/constants"
	"github.com/loykin/migrado/internal/store/connector"
	"github.com/loykin/migrado/internal/store/postgresql"
	"github.com/loykin/migrado/internal/store/sqlite"
)

const (
	DriverArango   = "arango"
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

type (
	TableNames     = connector.TableNames
	SqliteConfig   = sqlite.Config
	PostgresConfig = postgresql.Config
)

type DriverConfig interface {
	ToMap() map[string]interface{}
}

// Config selects and configures a state backend.
type Config struct {
	Driver string `mapstructure:"driver"`
	// Collection is the ArangoDB collection holding the state documents.
	Collection   string     `mapstructure:"collection"`
	TableNames   TableNames `mapstructure:"tables"`
	DriverConfig DriverConfig
}

// DefaultTableNames returns the table names used by the SQL backends.
func DefaultTableNames() TableNames {
	return TableNames{State: constants.DefaultStateTable, Runs: constants.DefaultRunsTable}
}

// Open connects to the configured backend. docs is only used by the
// arango driver.
func Open(ctx context.Context, cfg Config, docs DocumentStore) (StateStore, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	logger := storeLogger().WithStore(driver)

	switch driver {
	case "", DriverArango:
		if docs == nil {
			return nil, fmt.Errorf("store: arango driver requires a database client")
		}
		coll := cfg.Collection
		if coll == "" {
			coll = constants.DefaultStateCollection
		}
		return NewArangoStore(docs, coll), nil
	case DriverSqlite, "sqlite3":
		return openSQL(ctx, sqlite.NewStore(), cfg)
	case DriverPostgres, "postgresql", "pg":
		return openSQL(ctx, postgresql.NewStore(), cfg)
	default:
		logger.Error("unsupported store driver", "driver", cfg.Driver)
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

func openSQL(ctx context.Context, conn connector.Connector, cfg Config) (StateStore, error) {
	th := cfg.TableNames
	if th.State == "" || th.Runs == "" {
		def := DefaultTableNames()
		if th.State == "" {
			th.State = def.State
		}
		if th.Runs == "" {
			th.Runs = def.Runs
		}
	}
	if cfg.DriverConfig != nil {
		if err := conn.Load(cfg.DriverConfig.ToMap()); err != nil {
			return nil, err
		}
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	if err := conn.Ensure(ctx, th); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &SQLStore{conn: conn, tables: th}, nil
}
