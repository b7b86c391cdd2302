// Package audit appends immutable records of administrative mutations.
package audit

import (
	"context"
	"errors"

	"github.com/dukerupert/fraudwatch/internal/model"
)

const (
	// EntityTypeUser is recorded for every entry written by the admin alert path.
	EntityTypeUser = "user"

	ActionUpdate = "update"

	DefaultLimit = 100
	MaxLimit     = 500
)

// Entry is what a caller knows about an action; the recorder fills in the
// entity type and the database assigns the timestamp.
type Entry struct {
	ActorID   int64
	Action    string
	EntityID  int64
	Details   string
	IPAddress string
}

type Store interface {
	Insert(ctx context.Context, e model.AuditLogEntry) (*model.AuditLogEntry, error)
	ListRecent(ctx context.Context, limit int) ([]model.AuditLogEntry, error)
}

type Recorder struct {
	store Store
}

func NewRecorder(s Store) *Recorder {
	return &Recorder{store: s}
}

// Record appends one entry synchronously. An empty IPAddress is stored as null.
func (r *Recorder) Record(ctx context.Context, e Entry) (*model.AuditLogEntry, error) {
	if e.ActorID == 0 {
		return nil, errors.New("audit entry without actor")
	}
	row := model.AuditLogEntry{
		UserID:     e.ActorID,
		Action:     e.Action,
		EntityType: EntityTypeUser,
		EntityID:   e.EntityID,
		Details:    e.Details,
	}
	if e.IPAddress != "" {
		ip := e.IPAddress
		row.IPAddress = &ip
	}
	return r.store.Insert(ctx, row)
}

// Recent returns the newest entries. limit is clamped to [1, MaxLimit];
// zero or negative means DefaultLimit.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]model.AuditLogEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return r.store.ListRecent(ctx, limit)
}
