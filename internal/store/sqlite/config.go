package sqlite

// SQLite configuration constants
const (
	busyTimeoutMS    = 5000 // 5 seconds in milliseconds
	foreignKeysParam = "_pragma=foreign_keys(1)"
)

// Config selects the SQLite database file. An empty Path means an
// in-memory database.
type Config struct {
	Path string `mapstructure:"path"`
}

func (c *Config) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"path": c.Path,
	}
}
