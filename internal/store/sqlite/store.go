package sqlite

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/migrado/internal/common"
	"github.com/loykin/migrado/internal/store/connector"
)

// Store is the SQLite state backend.
type Store struct {
	connector.Base
	DSN string
}

// NewStore creates a new SQLite store
func NewStore() *Store {
	return &Store{Base: connector.Base{Dialect: NewDialect()}}
}

// Load decodes driver settings. An explicit dsn wins over path.
func (s *Store) Load(config map[string]interface{}) error {
	if dsn, ok := config["dsn"].(string); ok && dsn != "" {
		s.DSN = dsn
		return nil
	}
	var c Config
	if err := mapstructure.Decode(config, &c); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	if c.Path != "" {
		s.DSN = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&%s", c.Path, busyTimeoutMS, foreignKeysParam)
	}
	return nil
}

// Validate performs basic validation (default implementation)
func (s *Store) Validate() error {
	return nil
}

// Connect opens the database. Without a DSN an in-memory database is used.
func (s *Store) Connect(_ context.Context) error {
	if s.DSN == "" {
		s.DSN = ":memory:"
	}
	db, err := s.Dialect.Connect(s.DSN)
	if err != nil {
		return err
	}
	s.DB = db

	common.GetLogger().WithStore("sqlite").Debug("SQLite database connection established")
	return nil
}

var _ connector.Connector = (*Store)(nil)
