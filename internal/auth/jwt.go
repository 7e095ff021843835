package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/loykin/migrado/internal/constants"
)

// JWTConfig mints superuser tokens from the server's JWT secret.
type JWTConfig struct {
	// SecretFile is the file holding the secret, as passed to arangod
	// --server.jwt-secret-keyfile.
	SecretFile string `mapstructure:"secret_file"`
	// Secret is used when SecretFile is empty.
	Secret     string `mapstructure:"secret"`
	TTLSeconds int64  `mapstructure:"ttl_seconds"`
}

// JWT signs an HS256 superuser token for every request.
type JWT struct {
	C      JWTConfig
	secret []byte
	now    func() time.Time
}

func newJWT(spec map[string]interface{}) (Method, error) {
	var c JWTConfig
	if err := mapstructure.WeakDecode(spec, &c); err != nil {
		return nil, err
	}
	secret := c.Secret
	if c.SecretFile != "" {
		b, err := os.ReadFile(c.SecretFile)
		if err != nil {
			return nil, fmt.Errorf("jwt: read secret file: %w", err)
		}
		secret = strings.TrimRight(string(b), "\r\n")
	}
	if secret == "" {
		return nil, errors.New("jwt: secret required")
	}
	return &JWT{C: c, secret: []byte(secret), now: time.Now}, nil
}

// Issue creates a signed superuser token.
func (j *JWT) Issue() (string, error) {
	now := j.now()
	ttl := time.Duration(j.C.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = constants.JWTTTL
	}
	claims := jwt.MapClaims{
		"iss":       "arangodb",
		"server_id": "migrado",
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(j.secret)
}

func (j *JWT) Acquire(context.Context) (string, error) {
	tok, err := j.Issue()
	if err != nil {
		return "", err
	}
	return "bearer " + tok, nil
}

// ShellArgs points arangosh at the same secret file. Without a file
// arangosh cannot authenticate with the secret.
func (j *JWT) ShellArgs() []string {
	args := []string{"--server.authentication", "true"}
	if j.C.SecretFile != "" {
		args = append(args, "--server.jwt-secret-keyfile", j.C.SecretFile)
	}
	return args
}
