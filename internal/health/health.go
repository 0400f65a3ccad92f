// Package health implements the dependency health contract: the relational
// store is mandatory, the observation store and cache are reported but never
// fail the check.
package health

import (
	"context"
	"time"
)

// Dependency statuses as reported in the health payload.
const (
	StatusConnected     = "connected"
	StatusDisconnected  = "disconnected"
	StatusNotConfigured = "not_configured"
)

// Per-dependency probe timeouts. The relational store gets longer because a
// failed check there makes the whole service unhealthy.
const (
	postgresTimeout   = 5 * time.Second
	clickhouseTimeout = 2 * time.Second
	redisTimeout      = 2 * time.Second
)

// Pinger is anything that can verify its connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Report is the health endpoint payload.
type Report struct {
	Healthy    bool   `json:"healthy"`
	Postgres   string `json:"postgres"`
	Clickhouse string `json:"clickhouse"`
	Redis      string `json:"redis"`
}

// Checker probes the three backing dependencies. Nil pingers are reported as
// not_configured.
type Checker struct {
	postgres   Pinger
	clickhouse Pinger
	redis      Pinger
}

// NewChecker creates a Checker. Any pinger may be nil.
func NewChecker(postgres, clickhouse, redis Pinger) *Checker {
	return &Checker{postgres: postgres, clickhouse: clickhouse, redis: redis}
}

// Check probes every dependency with its own timeout. Only a relational
// store failure makes the report unhealthy: metadata operations cannot work
// without it, while value queries degrade explicitly when the observation
// store is down and the cache is a pure optimization.
func (c *Checker) Check(ctx context.Context) Report {
	r := Report{
		Postgres:   probe(ctx, c.postgres, postgresTimeout),
		Clickhouse: probe(ctx, c.clickhouse, clickhouseTimeout),
		Redis:      probe(ctx, c.redis, redisTimeout),
	}
	r.Healthy = r.Postgres != StatusDisconnected
	return r
}

func probe(ctx context.Context, p Pinger, timeout time.Duration) string {
	if p == nil {
		return StatusNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return StatusDisconnected
	}
	return StatusConnected
}
