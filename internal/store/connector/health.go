package connector

import (
	"time"

	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/dbconfig"
)

// Status is the outcome of a health check.
type Status string

const (
	StatusHealthy      Status = "healthy"
	StatusUnhealthy    Status = "unhealthy"
	StatusDisconnected Status = "disconnected"
)

// Details identify the backend. They never carry credentials.
type Details struct {
	Backend   string `json:"backend,omitempty"`
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`
	Database  string `json:"database,omitempty"`
	File      string `json:"file,omitempty"`
	Version   string `json:"version,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Health is what HealthCheck reports.
type Health struct {
	Status  Status  `json:"status"`
	Details Details `json:"details"`
}

// Healthy reports whether the status is StatusHealthy.
func (h Health) Healthy() bool {
	return h.Status == StatusHealthy
}

// DetailsFor fills the identifying fields for cfg.
func DetailsFor(cfg dbconfig.Config) Details {
	d := Details{Backend: string(cfg.Kind)}
	if cfg.Kind == dbconfig.KindSQLite {
		d.File = cfg.FilePath
		return d
	}
	d.Host = cfg.Host
	d.Port = cfg.Port
	d.Database = cfg.Database
	return d
}

// Unhealthy builds a failing report; err is masked against cfg's password.
func Unhealthy(cfg dbconfig.Config, status Status, err error, started time.Time) Health {
	d := DetailsFor(cfg)
	d.Error = common.MaskError(err, cfg.Password)
	if !started.IsZero() {
		d.LatencyMS = time.Since(started).Milliseconds()
	}
	return Health{Status: status, Details: d}
}
