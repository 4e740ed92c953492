// Package ginsrv wraps gin with the service's middleware stack and server
// lifecycle: recovery, request IDs, request logging, CORS, graceful shutdown.
package ginsrv

import "time"

// Default server timeouts.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Config holds HTTP server settings.
type Config struct {
	Port            int
	Debug           bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins    []string
	ServiceName    string
	ServiceVersion string
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "1.0.0"
	}
}
