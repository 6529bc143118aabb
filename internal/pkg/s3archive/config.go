package s3archive

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/env"
)

// Config holds S3 archive configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnvBool("S3_ARCHIVE_ENABLED", false),
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when S3 archiving is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3 archiving is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when S3 archiving is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if S3 archiving is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey returns the archive key for a dead-lettered payload.
// Format: dead-letters/YYYY/MM/<event_id>-<unix>.json
func ObjectKey(eventID string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("dead-letters/%04d/%02d/%s-%d.json", at.Year(), int(at.Month()), sanitizeKeyPart(eventID), at.Unix())
}

// sanitizeKeyPart keeps event ids from escaping their prefix.
func sanitizeKeyPart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
