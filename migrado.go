// Package migrado applies ArangoDB schema and data migrations written as
// arangosh JavaScript, keeping the applied state in the database.
package migrado

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loykin/migrado/internal/arango"
	"github.com/loykin/migrado/internal/auth"
	"github.com/loykin/migrado/internal/common"
	"github.com/loykin/migrado/internal/constants"
	"github.com/loykin/migrado/internal/migration"
	"github.com/loykin/migrado/internal/schema"
	"github.com/loykin/migrado/internal/shell"
	"github.com/loykin/migrado/internal/store"
)

// Re-exported types for library users.
type (
	Migration   = migration.Migration
	Migrator    = migration.Migrator
	Registry    = migration.Registry
	Report      = migration.Report
	Direction   = migration.Direction
	TxOptions   = migration.TxOptions
	UsageError  = migration.UsageError
	Schema      = schema.Description
	Rule        = schema.Rule
	Level       = schema.Level
	StateStore  = store.StateStore
	StoreConfig = store.Config
	AuthMethod  = auth.Method
	AuthFactory = auth.Factory
	Run         = store.Run
)

const (
	DriverArango   = store.DriverArango
	DriverSqlite   = store.DriverSqlite
	DriverPostgres = store.DriverPostgres

	AuthTypeNone  = auth.TypeNone
	AuthTypeBasic = auth.TypeBasic
	AuthTypeJWT   = auth.TypeJWT
)

// ErrNoMigrations is returned when a command needs migrations and the
// directory has none.
var ErrNoMigrations = migration.ErrNoMigrations

// ErrInitialExists is returned by Engine.Init when the first migration is
// already on disk.
var ErrInitialExists = migration.ErrInitialExists

// RegisterAuthProvider exposes custom auth provider registration for library users.
func RegisterAuthProvider(typ string, f AuthFactory) { auth.Register(typ, f) }

// IsUsage reports whether err is a usage error.
func IsUsage(err error) bool { return migration.IsUsage(err) }

// AuthConfig selects how to authenticate. Type is one of the AuthType
// constants; Config holds the provider settings (username/password or
// secret_file).
type AuthConfig struct {
	Type   string                 `mapstructure:"type"`
	Config map[string]interface{} `mapstructure:"config"`
}

// Config is everything needed to connect an Engine.
type Config struct {
	Database        arango.Config
	Auth            AuthConfig
	Store           store.Config
	StateCollection string
	MigrationsPath  string
	// Arangosh is the arangosh binary used for script fallbacks.
	Arangosh string
	Tx       TxOptions
	Logger   *common.Logger
}

func (c *Config) applyDefaults() {
	if c.StateCollection == "" {
		c.StateCollection = constants.DefaultStateCollection
	}
	if c.MigrationsPath == "" {
		c.MigrationsPath = constants.DefaultMigrationsPath
	}
	if c.Arangosh == "" {
		c.Arangosh = constants.DefaultArangosh
	}
	if c.Database.Timeout == 0 {
		c.Database.Timeout = constants.DefaultTimeoutSeconds * time.Second
	}
	if c.Store.Collection == "" {
		c.Store.Collection = c.StateCollection
	}
	if c.Logger == nil {
		c.Logger = common.GetLogger()
	}
}

// Engine bundles the database client, script runner and state store.
type Engine struct {
	Config Config
	Client *arango.Client
	Shell  *shell.Runner
	Store  store.StateStore
}

// Open connects to the database and opens the state store.
func Open(ctx context.Context, cfg Config) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.Database.Validate(); err != nil {
		return nil, &UsageError{Msg: "database", Err: err}
	}
	method, err := auth.New(cfg.Auth.Type, cfg.Auth.Config)
	if err != nil {
		return nil, &UsageError{Msg: "authentication", Err: err}
	}
	client := arango.New(cfg.Database, method)
	st, err := store.Open(ctx, cfg.Store, client)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	runner := &shell.Runner{
		Path:     cfg.Arangosh,
		Endpoint: cfg.Database.ShellEndpoint(),
		Database: cfg.Database.Database,
		Timeout:  cfg.Database.Timeout,
		Auth:     method,
		Logger:   cfg.Logger.WithComponent("arangosh"),
	}
	return &Engine{Config: cfg, Client: client, Shell: runner, Store: st}, nil
}

// Close releases the state store.
func (e *Engine) Close() error {
	if e.Store == nil {
		return nil
	}
	return e.Store.Close()
}

// Registry loads the migrations directory.
func (e *Engine) Registry() (*Registry, error) {
	return migration.Load(e.Config.MigrationsPath)
}

// Migrator returns a runner applying reg through this engine.
func (e *Engine) Migrator(reg *Registry) *Migrator {
	return &migration.Migrator{
		Registry:  reg,
		Tx:        transactions{e.Client},
		Script:    e.Shell,
		Store:     e.Store,
		TxOptions: e.Config.Tx,
		Logger:    e.Config.Logger.WithComponent("migrator"),
	}
}

// Run migrates to target (latest when empty). stateOverride replaces the
// stored state as the starting point when set.
func (e *Engine) Run(ctx context.Context, target, stateOverride string) (*Report, error) {
	reg, err := e.Registry()
	if err != nil {
		return nil, err
	}
	return e.Migrator(reg).Run(ctx, target, stateOverride)
}

// Inspection is the stored state next to what is on disk.
type Inspection struct {
	State  string
	Latest string
	Runs   []Run
}

// Inspect reads the stored state and the latest migration on disk. Run
// history is included when the store keeps it.
func (e *Engine) Inspect(ctx context.Context) (Inspection, error) {
	var in Inspection
	state, err := e.Store.ReadState(ctx)
	if err != nil {
		return in, err
	}
	in.State = state
	reg, err := e.Registry()
	if err != nil {
		return in, err
	}
	latest, err := reg.Latest()
	if err != nil && !errors.Is(err, ErrNoMigrations) {
		return in, err
	}
	in.Latest = latest
	if rec, ok := e.Store.(store.RunRecorder); ok {
		if in.Runs, err = rec.ListRuns(ctx); err != nil {
			return in, err
		}
	}
	return in, nil
}

// Schema returns the stored schema, or one inferred from the live
// database when none is stored.
func (e *Engine) Schema(ctx context.Context, level Level) (Schema, error) {
	stored, err := e.Store.ReadSchema(ctx)
	if err != nil {
		return Schema{}, err
	}
	if stored != nil {
		return *stored, nil
	}
	return migration.InferSchema(ctx, e.Client, e.Config.StateCollection, level != schema.LevelUnset)
}

// Init writes the first migration. schemaFile and infer are exclusive.
func (e *Engine) Init(ctx context.Context, schemaFile string, infer bool, level Level) (Migration, error) {
	return migration.Init(ctx, migration.InitOptions{
		Dir:             e.Config.MigrationsPath,
		SchemaFile:      schemaFile,
		Infer:           infer,
		Level:           level,
		Inspector:       e.Client,
		Store:           e.Store,
		StateCollection: e.Config.StateCollection,
	})
}

// Make writes the next migration, generated from schemaFile when set.
func (e *Engine) Make(ctx context.Context, name, schemaFile string, level Level) (Migration, error) {
	return migration.Make(ctx, migration.MakeOptions{
		Dir:             e.Config.MigrationsPath,
		Name:            name,
		SchemaFile:      schemaFile,
		Level:           level,
		Inspector:       e.Client,
		Store:           e.Store,
		StateCollection: e.Config.StateCollection,
	})
}

// transactions adapts the HTTP client to the runner's executor interface.
type transactions struct {
	client *arango.Client
}

func (t transactions) ExecuteTransaction(ctx context.Context, body string, write []string, opts TxOptions) error {
	_, err := t.client.ExecuteTransaction(ctx, body, write, arango.TransactionOptions{
		MaxTransactionSize:      opts.MaxTransactionSize,
		IntermediateCommitSize:  opts.IntermediateCommitSize,
		IntermediateCommitCount: opts.IntermediateCommitCount,
		WaitForSync:             !opts.Async,
	})
	return err
}
