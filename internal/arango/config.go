// Package arango talks to the ArangoDB HTTP API: JavaScript transactions,
// collection listing and the documents holding the migration state.
package arango

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/loykin/migrado/internal/constants"
)

// Config locates the database.
type Config struct {
	TLS      bool          `mapstructure:"tls"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Database string        `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Insecure skips certificate verification.
	Insecure bool `mapstructure:"tls_insecure"`
}

func (c Config) hostPort() string {
	host := c.Host
	if host == "" {
		host = constants.DefaultHost
	}
	port := c.Port
	if port == 0 {
		port = constants.DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Endpoint is the HTTP base URL of the server.
func (c Config) Endpoint() string {
	scheme := "http"
	if c.TLS {
		scheme = "https"
	}
	return scheme + "://" + c.hostPort()
}

// ShellEndpoint is the endpoint in the form arangosh expects.
func (c Config) ShellEndpoint() string {
	scheme := "tcp"
	if c.TLS {
		scheme = "ssl"
	}
	return scheme + "://" + c.hostPort()
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}
