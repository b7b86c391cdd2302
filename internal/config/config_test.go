package config

import (
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "fraudwatch.db" {
		t.Errorf("DBPath = %q, want fraudwatch.db", cfg.DBPath)
	}
	if cfg.Environment != EnvDevelopment {
		t.Errorf("Environment = %q, want %q", cfg.Environment, EnvDevelopment)
	}
	if cfg.AuditPolicy != AuditAtomic {
		t.Errorf("AuditPolicy = %q, want %q", cfg.AuditPolicy, AuditAtomic)
	}
	if cfg.JWTSecret == "" {
		t.Error("expected development secret")
	}
	if cfg.Production() {
		t.Error("development config should not be production")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(env(map[string]string{
		"FRAUDWATCH_PORT":         "9000",
		"FRAUDWATCH_DB_PATH":      "/var/lib/fw.db",
		"FRAUDWATCH_JWT_SECRET":   "s3cret",
		"FRAUDWATCH_ENV":          "Production",
		"FRAUDWATCH_AUDIT_POLICY": "tolerate",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" || cfg.DBPath != "/var/lib/fw.db" || cfg.JWTSecret != "s3cret" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !cfg.Production() {
		t.Error("expected production")
	}
	if cfg.AuditPolicy != AuditTolerate {
		t.Errorf("AuditPolicy = %q, want %q", cfg.AuditPolicy, AuditTolerate)
	}
}

func TestLoadProductionRequiresSecret(t *testing.T) {
	_, err := Load(env(map[string]string{"FRAUDWATCH_ENV": "production"}))
	if err == nil {
		t.Fatal("expected error for missing secret in production")
	}
}

func TestLoadInvalidAuditPolicy(t *testing.T) {
	_, err := Load(env(map[string]string{"FRAUDWATCH_AUDIT_POLICY": "sometimes"}))
	if err == nil {
		t.Fatal("expected error for invalid audit policy")
	}
}

func TestLoadTrustProxy(t *testing.T) {
	cfg, err := Load(env(nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TrustProxy {
		t.Error("TrustProxy should default to false")
	}

	cfg, err = Load(env(map[string]string{"FRAUDWATCH_TRUST_PROXY": "true"}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.TrustProxy {
		t.Error("TrustProxy = false, want true")
	}

	if _, err := Load(env(map[string]string{"FRAUDWATCH_TRUST_PROXY": "maybe"})); err == nil {
		t.Error("expected error for invalid FRAUDWATCH_TRUST_PROXY")
	}
}

func TestLoadBackup(t *testing.T) {
	cfg, err := Load(env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backup.Interval != 24*time.Hour || cfg.Backup.RetentionDays != 30 || cfg.Backup.S3Region != "us-east-1" {
		t.Errorf("backup defaults = %+v", cfg.Backup)
	}

	cfg, err = Load(env(map[string]string{
		"FRAUDWATCH_BACKUP_S3_BUCKET":      "fw-backups",
		"FRAUDWATCH_BACKUP_INTERVAL":       "6h",
		"FRAUDWATCH_BACKUP_RETENTION_DAYS": "7",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backup.S3Bucket != "fw-backups" || cfg.Backup.Interval != 6*time.Hour || cfg.Backup.RetentionDays != 7 {
		t.Errorf("backup overrides = %+v", cfg.Backup)
	}

	for _, bad := range []map[string]string{
		{"FRAUDWATCH_BACKUP_INTERVAL": "soon"},
		{"FRAUDWATCH_BACKUP_INTERVAL": "10s"},
		{"FRAUDWATCH_BACKUP_RETENTION_DAYS": "0"},
	} {
		if _, err := Load(env(bad)); err == nil {
			t.Errorf("Load(%v): expected error", bad)
		}
	}
}
