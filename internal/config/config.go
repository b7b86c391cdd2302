// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devSecret = "dev-only-insecure-secret"
)

// AuditPolicy decides what happens when the audit insert that follows an
// alert status change fails.
type AuditPolicy string

const (
	// AuditAtomic runs the status change and audit insert in one transaction.
	AuditAtomic AuditPolicy = "atomic"
	// AuditReport keeps the status change and reports the failure.
	AuditReport AuditPolicy = "report"
	// AuditTolerate keeps the status change and only logs the failure.
	AuditTolerate AuditPolicy = "tolerate"
)

type Config struct {
	Port        string
	DBPath      string
	JWTSecret   string
	Environment string
	LogLevel    string
	LogFormat   string
	AuditPolicy AuditPolicy
	// TrustProxy honors CF-Connecting-IP and X-Forwarded-For when keying
	// rate limits. Only set it behind a proxy that overwrites those headers.
	TrustProxy  bool
	Backup      Backup
}

// Backup configures encrypted snapshots to S3-compatible storage. Backups
// stay off unless a bucket, credentials, and a passphrase are all set.
type Backup struct {
	S3Endpoint    string
	S3Bucket      string
	S3Region      string
	S3AccessKey   string
	S3SecretKey   string
	S3Prefix      string
	Passphrase    string
	Interval      time.Duration
	RetentionDays int
}

// Production reports whether cookies must carry the Secure attribute.
func (c *Config) Production() bool {
	return c.Environment == EnvProduction
}

// Load builds a Config from getenv, usually os.Getenv.
func Load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:        getenv("FRAUDWATCH_PORT"),
		DBPath:      getenv("FRAUDWATCH_DB_PATH"),
		JWTSecret:   getenv("FRAUDWATCH_JWT_SECRET"),
		Environment: strings.ToLower(strings.TrimSpace(getenv("FRAUDWATCH_ENV"))),
		LogLevel:    getenv("FRAUDWATCH_LOG_LEVEL"),
		LogFormat:   getenv("FRAUDWATCH_LOG_FORMAT"),
		AuditPolicy: AuditPolicy(strings.ToLower(strings.TrimSpace(getenv("FRAUDWATCH_AUDIT_POLICY")))),
		Backup: Backup{
			S3Endpoint:  getenv("FRAUDWATCH_BACKUP_S3_ENDPOINT"),
			S3Bucket:    getenv("FRAUDWATCH_BACKUP_S3_BUCKET"),
			S3Region:    getenv("FRAUDWATCH_BACKUP_S3_REGION"),
			S3AccessKey: getenv("FRAUDWATCH_BACKUP_S3_ACCESS_KEY"),
			S3SecretKey: getenv("FRAUDWATCH_BACKUP_S3_SECRET_KEY"),
			S3Prefix:    getenv("FRAUDWATCH_BACKUP_S3_PREFIX"),
			Passphrase:  getenv("FRAUDWATCH_BACKUP_PASSPHRASE"),
		},
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "fraudwatch.db"
	}
	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
	}
	if cfg.AuditPolicy == "" {
		cfg.AuditPolicy = AuditAtomic
	}

	switch cfg.AuditPolicy {
	case AuditAtomic, AuditReport, AuditTolerate:
	default:
		return nil, fmt.Errorf("invalid FRAUDWATCH_AUDIT_POLICY %q: want atomic, report, or tolerate", cfg.AuditPolicy)
	}

	if v := getenv("FRAUDWATCH_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid FRAUDWATCH_TRUST_PROXY %q: want true or false", v)
		}
		cfg.TrustProxy = trust
	}

	if cfg.Backup.S3Region == "" {
		cfg.Backup.S3Region = "us-east-1"
	}
	cfg.Backup.Interval = 24 * time.Hour
	if v := getenv("FRAUDWATCH_BACKUP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < time.Minute {
			return nil, fmt.Errorf("invalid FRAUDWATCH_BACKUP_INTERVAL %q: want a duration of at least 1m", v)
		}
		cfg.Backup.Interval = d
	}
	cfg.Backup.RetentionDays = 30
	if v := getenv("FRAUDWATCH_BACKUP_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid FRAUDWATCH_BACKUP_RETENTION_DAYS %q: want a positive integer", v)
		}
		cfg.Backup.RetentionDays = n
	}

	if cfg.JWTSecret == "" {
		if cfg.Production() {
			return nil, errors.New("FRAUDWATCH_JWT_SECRET is required in production")
		}
		cfg.JWTSecret = devSecret
	}

	return cfg, nil
}
