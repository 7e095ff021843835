// Package httpc builds the resty clients used to talk to ArangoDB.
package httpc

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Httpc holds transport settings for a client.
type Httpc struct {
	// Insecure skips certificate verification for self-signed servers.
	Insecure bool
	// MinTLS and MaxTLS bound the negotiated version ("1.2", "tls1.3", ...).
	MinTLS  string
	MaxTLS  string
	Timeout time.Duration
}

// New returns a resty.Client configured according to the receiver's settings.
// The TLS configuration is left to resty unless a setting asks otherwise.
func (h Httpc) New() *resty.Client {
	c := resty.New()
	if h.Timeout > 0 {
		c.SetTimeout(h.Timeout)
	}
	minV, maxV := parseTLSVersion(h.MinTLS), parseTLSVersion(h.MaxTLS)
	if !h.Insecure && minV == 0 && maxV == 0 {
		return c
	}
	cfg := &tls.Config{MinVersion: minV, MaxVersion: maxV}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	if h.Insecure {
		cfg.InsecureSkipVerify = true // #nosec G402 -- explicit opt-in for self-signed servers
	}
	c.SetTLSClientConfig(cfg)
	return c
}

func parseTLSVersion(s string) uint16 {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "tls")
	v = strings.TrimPrefix(v, "v")
	switch v {
	case "1.0", "10":
		return tls.VersionTLS10
	case "1.1", "11":
		return tls.VersionTLS11
	case "1.2", "12":
		return tls.VersionTLS12
	case "1.3", "13":
		return tls.VersionTLS13
	default:
		return 0
	}
}
