package httpc

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Httpc builds resty clients for talking to a running catalogdb server.
type Httpc struct {
	TLSConfig *tls.Config
	Timeout   time.Duration
}

// New returns a resty.Client configured according to the receiver's TLS settings.
// Defaults: MinVersion TLS1.2 when MinVersion is zero.
func (h *Httpc) New() *resty.Client {
	c := resty.New()
	if h.Timeout > 0 {
		c.SetTimeout(h.Timeout)
	}
	cfg := h.TLSConfig
	if cfg == nil {
		return c
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	c.SetTLSClientConfig(cfg)
	return c
}

// TLSOptions are the user facing TLS knobs of the CLI.
type TLSOptions struct {
	Insecure   bool
	MinVersion string
	MaxVersion string
}

// TLSConfig converts the options; it returns nil when nothing is set.
func (o TLSOptions) TLSConfig() *tls.Config {
	minV := ParseTLSVersion(o.MinVersion)
	maxV := ParseTLSVersion(o.MaxVersion)
	if !o.Insecure && minV == 0 && maxV == 0 {
		return nil
	}
	return &tls.Config{
		InsecureSkipVerify: o.Insecure, //nolint:gosec // opt-in via --insecure
		MinVersion:         minV,
		MaxVersion:         maxV,
	}
}

// ParseTLSVersion maps "1.2", "tls1.3", "TLS13" and similar to tls constants.
// Unknown input yields 0.
func ParseTLSVersion(s string) uint16 {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "tls")
	v = strings.TrimPrefix(v, "v")
	v = strings.ReplaceAll(v, "_", ".")
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
