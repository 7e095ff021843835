package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// BasicConfig holds configuration for Basic authentication. The password
// may be empty.
type BasicConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Basic authenticates with username and password.
type Basic struct {
	C BasicConfig
}

func newBasic(spec map[string]interface{}) (Method, error) {
	var c BasicConfig
	if err := mapstructure.Decode(spec, &c); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Username) == "" {
		return nil, errors.New("basic: username is required")
	}
	return Basic{C: c}, nil
}

func (b Basic) Acquire(context.Context) (string, error) {
	cred := base64.StdEncoding.EncodeToString([]byte(b.C.Username + ":" + b.C.Password))
	return "Basic " + cred, nil
}

func (b Basic) ShellArgs() []string {
	return []string{
		"--server.authentication", "true",
		"--server.username", b.C.Username,
		"--server.password", b.C.Password,
	}
}
