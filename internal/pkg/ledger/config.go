package ledger

import (
	"time"

	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/env"
)

const (
	DefaultOrgID        = "demo-org"
	DefaultWriteTimeout = 10 * time.Second
)

// Config holds webhook ingestion settings
type Config struct {
	WebhookSecret      string
	DefaultOrgID       string
	WriteTimeout       time.Duration
	DeadLetterRejected bool
}

// LoadConfig loads the ledger configuration from environment variables
func LoadConfig() Config {
	cfg := Config{
		WebhookSecret:      env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		DefaultOrgID:       env.GetEnv("LEDGER_DEFAULT_ORG_ID", DefaultOrgID),
		WriteTimeout:       env.GetEnvDuration("LEDGER_WRITE_TIMEOUT", DefaultWriteTimeout),
		DeadLetterRejected: env.GetEnvBool("WEBHOOK_DEADLETTER_REJECTED", true),
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	return cfg
}
