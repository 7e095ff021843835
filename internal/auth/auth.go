// Package auth resolves how migrado authenticates against ArangoDB, both
// for HTTP requests and for arangosh invocations.
package auth

import (
	"context"
	"errors"
	"strings"
)

const (
	TypeNone  = "none"
	TypeBasic = "basic"
	TypeJWT   = "jwt"
)

// Method is an authentication method.
type Method interface {
	// Acquire returns the Authorization header value, empty when requests
	// go out unauthenticated.
	Acquire(ctx context.Context) (string, error)
	// ShellArgs returns the arangosh flags carrying the same credentials.
	ShellArgs() []string
}

// Factory builds a Method from a loosely-typed spec map.
type Factory func(spec map[string]interface{}) (Method, error)

var providers = map[string]Factory{}

func normalizeKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register registers a provider factory under a type key.
func Register(typ string, f Factory) {
	key := normalizeKey(typ)
	if key == "" || f == nil {
		return
	}
	providers[key] = f
}

// New builds the method registered under typ. An empty typ means none.
func New(typ string, spec map[string]interface{}) (Method, error) {
	key := normalizeKey(typ)
	if key == "" {
		key = TypeNone
	}
	f, ok := providers[key]
	if !ok {
		return nil, errors.New("auth: unsupported method: " + typ)
	}
	return f(spec)
}

type none struct{}

func (none) Acquire(context.Context) (string, error) { return "", nil }

func (none) ShellArgs() []string { return []string{"--server.authentication", "false"} }

// None returns a method sending no credentials.
func None() Method { return none{} }

func init() {
	Register(TypeNone, func(map[string]interface{}) (Method, error) { return none{}, nil })
	Register(TypeBasic, newBasic)
	Register(TypeJWT, newJWT)
}
