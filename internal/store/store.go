// Package store persists the migration state: the id of the last applied
// migration and the last stored schema.
package store

import (
	"context"

	"github.com/loykin/migrado/internal/common"
	"github.com/loykin/migrado/internal/constants"
	"github.com/loykin/migrado/internal/schema"
	"github.com/loykin/migrado/internal/store/connector"
)

const (
	// InitialState is the state id before any migration was applied.
	InitialState = constants.InitialState

	stateKey  = constants.StateKey
	schemaKey = constants.SchemaKey
)

// StateStore reads and writes the persisted migration state. Writes are
// upserts.
type StateStore interface {
	// ReadState returns the last applied migration id, InitialState when
	// nothing was recorded.
	ReadState(ctx context.Context) (string, error)
	WriteState(ctx context.Context, id string) error
	// ReadSchema returns the stored schema, nil when none was stored.
	ReadSchema(ctx context.Context) (*schema.Description, error)
	WriteSchema(ctx context.Context, d schema.Description) error
	Close() error
}

// Run is one recorded migration attempt.
type Run = connector.Run

// RunRecorder is implemented by stores that keep a history of attempts.
type RunRecorder interface {
	RecordRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context) ([]Run, error)
}

type stateDocument struct {
	Key         string `json:"_key,omitempty"`
	MigrationID string `json:"migration_id"`
}

type schemaDocument struct {
	Key    string             `json:"_key,omitempty"`
	Schema schema.Description `json:"schema"`
}

func storeLogger() *common.Logger {
	return common.GetLogger().WithComponent("store")
}
