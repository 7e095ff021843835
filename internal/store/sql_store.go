package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loykin/migrado/internal/schema"
	"github.com/loykin/migrado/internal/store/connector"
)

// SQLStore keeps the state and schema documents as JSON rows in a
// key/value table and records every attempt in a runs table.
type SQLStore struct {
	conn   connector.Connector
	tables TableNames
}

// NewSQLStore wraps a connected and ensured connector.
func NewSQLStore(conn connector.Connector, tables TableNames) *SQLStore {
	return &SQLStore{conn: conn, tables: tables}
}

func (s *SQLStore) ReadState(ctx context.Context) (string, error) {
	raw, found, err := s.conn.Get(ctx, s.tables, stateKey)
	if err != nil {
		return "", err
	}
	if !found {
		return InitialState, nil
	}
	var doc stateDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("decode state document: %w", err)
	}
	if doc.MigrationID == "" {
		return InitialState, nil
	}
	return doc.MigrationID, nil
}

func (s *SQLStore) WriteState(ctx context.Context, id string) error {
	b, err := json.Marshal(stateDocument{MigrationID: id})
	if err != nil {
		return err
	}
	return s.conn.Put(ctx, s.tables, stateKey, string(b))
}

func (s *SQLStore) ReadSchema(ctx context.Context) (*schema.Description, error) {
	raw, found, err := s.conn.Get(ctx, s.tables, schemaKey)
	if err != nil || !found {
		return nil, err
	}
	var doc schemaDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode schema document: %w", err)
	}
	d := doc.Schema.Normalize()
	return &d, nil
}

func (s *SQLStore) WriteSchema(ctx context.Context, d schema.Description) error {
	b, err := json.Marshal(schemaDocument{Schema: d.Normalize()})
	if err != nil {
		return err
	}
	return s.conn.Put(ctx, s.tables, schemaKey, string(b))
}

func (s *SQLStore) RecordRun(ctx context.Context, run Run) error {
	return s.conn.RecordRun(ctx, s.tables, run)
}

func (s *SQLStore) ListRuns(ctx context.Context) ([]Run, error) {
	return s.conn.ListRuns(ctx, s.tables)
}

func (s *SQLStore) Close() error {
	return s.conn.Close()
}

var (
	_ StateStore  = (*SQLStore)(nil)
	_ RunRecorder = (*SQLStore)(nil)
)
