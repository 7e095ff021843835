package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/migrado/internal/common"
	"github.com/loykin/migrado/internal/store/connector"
)

// Store is the PostgreSQL state backend.
type Store struct {
	connector.Base
	DSN string
}

// NewStore creates a new PostgreSQL store
func NewStore() *Store {
	return &Store{Base: connector.Base{Dialect: NewDialect()}}
}

// Load decodes driver settings into a DSN.
func (p *Store) Load(config map[string]interface{}) error {
	var c Config
	if err := mapstructure.WeakDecode(config, &c); err != nil {
		return fmt.Errorf("postgresql: decode config: %w", err)
	}
	if dsn, _ := c.ToMap()["dsn"].(string); dsn != "" {
		p.DSN = dsn
	}
	return nil
}

// Validate requires a DSN.
func (p *Store) Validate() error {
	if p.DSN == "" {
		return errors.New("postgresql: dsn is required")
	}
	return nil
}

// Connect opens the connection pool.
func (p *Store) Connect(_ context.Context) error {
	db, err := p.Dialect.Connect(p.DSN)
	if err != nil {
		return err
	}
	p.DB = db

	common.GetLogger().WithStore("postgresql").Debug("PostgreSQL database connection established")
	return nil
}

var _ connector.Connector = (*Store)(nil)
