package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loykin/migrado/internal/schema"
)

// DocumentStore is the slice of the ArangoDB client the arango backend
// needs. ReadDocument reports found == false when either the collection
// or the document does not exist.
type DocumentStore interface {
	ReadDocument(ctx context.Context, collection, key string) (raw []byte, found bool, err error)
	ReplaceDocument(ctx context.Context, collection string, doc any) error
	EnsureCollection(ctx context.Context, name string) error
}

// ArangoStore keeps the state in two documents, "state" and "schema", of
// a dedicated collection in the migrated database.
type ArangoStore struct {
	docs       DocumentStore
	collection string
}

func NewArangoStore(docs DocumentStore, collection string) *ArangoStore {
	return &ArangoStore{docs: docs, collection: collection}
}

func (s *ArangoStore) ReadState(ctx context.Context) (string, error) {
	raw, found, err := s.docs.ReadDocument(ctx, s.collection, stateKey)
	if err != nil {
		return "", fmt.Errorf("read state: %w", err)
	}
	if !found {
		return InitialState, nil
	}
	var doc stateDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("decode state document: %w", err)
	}
	if doc.MigrationID == "" {
		return InitialState, nil
	}
	return doc.MigrationID, nil
}

func (s *ArangoStore) WriteState(ctx context.Context, id string) error {
	return s.write(ctx, stateDocument{Key: stateKey, MigrationID: id})
}

func (s *ArangoStore) ReadSchema(ctx context.Context) (*schema.Description, error) {
	raw, found, err := s.docs.ReadDocument(ctx, s.collection, schemaKey)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if !found {
		return nil, nil
	}
	var doc schemaDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode schema document: %w", err)
	}
	d := doc.Schema.Normalize()
	return &d, nil
}

func (s *ArangoStore) WriteSchema(ctx context.Context, d schema.Description) error {
	return s.write(ctx, schemaDocument{Key: schemaKey, Schema: d.Normalize()})
}

func (s *ArangoStore) write(ctx context.Context, doc any) error {
	if err := s.docs.EnsureCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("ensure state collection %s: %w", s.collection, err)
	}
	if err := s.docs.ReplaceDocument(ctx, s.collection, doc); err != nil {
		return fmt.Errorf("write %s: %w", s.collection, err)
	}
	return nil
}

// Collection returns the name of the state collection.
func (s *ArangoStore) Collection() string { return s.collection }

func (s *ArangoStore) Close() error { return nil }

var _ StateStore = (*ArangoStore)(nil)
