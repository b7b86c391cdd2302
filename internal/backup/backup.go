// Package backup takes encrypted snapshots of the database, audit trail
// included, and keeps them in S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dukerupert/fraudwatch/internal/model"
	"github.com/dukerupert/fraudwatch/internal/store"
)

var ErrDisabled = errors.New("backups are not configured")

// S3Client is the subset of *s3.Client the manager uses.
type S3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

type Config struct {
	S3            S3Config
	Passphrase    string
	Interval      time.Duration
	RetentionDays int
}

// Enabled reports whether the configuration is complete enough to upload.
func (c Config) Enabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != "" && c.Passphrase != ""
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the manager's state changes.
type StatusCallback func(Status)

type Manager struct {
	mu       sync.RWMutex
	running  sync.Mutex
	cfg      Config
	status   Status
	callback StatusCallback

	db      *sql.DB
	backups *store.BackupStore
	client  S3Client
	logger  *slog.Logger
	now     func() time.Time

	override S3Client

	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Manager)

// WithS3Client replaces the client built from the S3 settings. The rest of
// the configuration must still be complete for backups to run.
func WithS3Client(c S3Client) Option {
	return func(m *Manager) {
		m.override = c
	}
}

func NewManager(cfg Config, db *sql.DB, logger *slog.Logger, callback StatusCallback, opts ...Option) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	m := &Manager{
		cfg:      cfg,
		db:       db,
		backups:  store.NewBackupStore(db),
		callback: callback,
		logger:   logger,
		now:      time.Now,
		status:   Status{State: StateDisabled},
	}
	for _, opt := range opts {
		opt(m)
	}
	if cfg.Enabled() {
		m.client = m.override
		if m.client == nil {
			m.client = newS3Client(cfg.S3)
		}
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start runs a backup and a retention sweep every configured interval until
// ctx is cancelled or Stop is called. It does nothing when disabled.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled || m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	interval := m.cfg.Interval
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
				if err := m.Cleanup(ctx); err != nil {
					m.logger.Error("backup retention sweep failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the schedule and waits for an in-flight run to return.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
	}
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	return m.backups.List(ctx, limit)
}

// RunNow snapshots the database, seals it, and uploads it. Runs are
// serialized; a second caller waits for the first to finish.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	m.mu.RLock()
	client := m.client
	cfg := m.cfg
	m.mu.RUnlock()
	if client == nil {
		return nil, ErrDisabled
	}

	m.running.Lock()
	defer m.running.Unlock()

	m.setStatus(Status{State: StateRunning, InProgress: true})

	started := m.now().UTC()
	filename := fmt.Sprintf("fraudwatch-%s-%s.db.enc", started.Format("20060102T150405Z"), uuid.NewString()[:8])
	key := path.Join(cfg.S3.Prefix, filename)

	record, err := m.backups.Create(ctx, filename, key, started)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, err
	}

	fail := func(step string, err error) (*model.Backup, error) {
		err = fmt.Errorf("%s: %w", step, err)
		if serr := m.backups.SetStatus(context.WithoutCancel(ctx), record.ID, model.BackupStatusFailed, err.Error()); serr != nil {
			m.logger.Error("record backup failure", "backup_id", record.ID, "error", serr)
		}
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, err
	}

	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return fail("snapshot database", err)
	}
	sealed, err := Seal(snapshot, cfg.Passphrase)
	if err != nil {
		return fail("encrypt snapshot", err)
	}

	if err := m.backups.SetStatus(ctx, record.ID, model.BackupStatusUploading, ""); err != nil {
		return fail("mark uploading", err)
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return fail("upload to s3", err)
	}

	finished := m.now().UTC()
	if err := m.backups.MarkCompleted(ctx, record.ID, int64(len(sealed)), finished); err != nil {
		return fail("mark completed", err)
	}
	m.setStatus(Status{State: StateIdle, LastBackup: &finished})
	m.logger.Info("backup uploaded", "backup_id", record.ID, "key", key, "size_bytes", len(sealed))

	return m.backups.GetByID(ctx, record.ID)
}

// snapshot writes a consistent copy of the database with VACUUM INTO and
// returns its bytes.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "fraudwatch-backup-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, target); err != nil {
		return nil, err
	}
	return os.ReadFile(target)
}

// Cleanup deletes backups older than the retention period, records first.
// Object deletion failures are logged and do not stop the sweep.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	cfg := m.cfg
	m.mu.RUnlock()
	if client == nil {
		return nil
	}

	cutoff := m.now().UTC().AddDate(0, 0, -cfg.RetentionDays)
	keys, err := m.backups.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(cfg.S3.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete expired backup object", "key", key, "error", err)
		}
	}
	if len(keys) > 0 {
		m.logger.Info("expired backups removed", "count", len(keys))
	}
	return nil
}
