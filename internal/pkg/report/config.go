package report

import (
	"time"

	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/env"
)

const (
	DefaultRecentLimit   = 10
	DefaultRenderTimeout = 15 * time.Second
	DefaultQueryTimeout  = 10 * time.Second
)

// Config holds report rendering settings
type Config struct {
	// LookbackDays bounds the aggregation window; 0 covers the full history.
	LookbackDays  int
	RecentLimit   int
	RenderTimeout time.Duration
	QueryTimeout  time.Duration
}

// LoadConfig loads report settings from environment variables
func LoadConfig() Config {
	return Config{
		LookbackDays:  env.GetEnvInt("REPORT_LOOKBACK_DAYS", 0),
		RecentLimit:   env.GetEnvInt("REPORT_RECENT_LIMIT", DefaultRecentLimit),
		RenderTimeout: env.GetEnvDuration("REPORT_RENDER_TIMEOUT", DefaultRenderTimeout),
		QueryTimeout:  env.GetEnvDuration("REPORT_QUERY_TIMEOUT", DefaultQueryTimeout),
	}.normalized()
}

func (c Config) normalized() Config {
	if c.LookbackDays < 0 {
		c.LookbackDays = 0
	}
	if c.RecentLimit <= 0 {
		c.RecentLimit = DefaultRecentLimit
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = DefaultRenderTimeout
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	return c
}
