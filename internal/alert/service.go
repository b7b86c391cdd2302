// Package alert lists fraud alerts for review and applies admin status
// changes with an audit trail.
package alert

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/fraudwatch/internal/apperr"
	"github.com/dukerupert/fraudwatch/internal/audit"
	"github.com/dukerupert/fraudwatch/internal/config"
	"github.com/dukerupert/fraudwatch/internal/database"
	"github.com/dukerupert/fraudwatch/internal/model"
	"github.com/dukerupert/fraudwatch/internal/store"
	"github.com/dukerupert/fraudwatch/internal/websocket"
)

const (
	MsgMissingFields = "Missing required fields"
	MsgInvalidStatus = "Invalid status"
	MsgNotFound      = "Fraud alert not found"
)

type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

// UpdateRequest is an admin's request to move alert ID to Status.
type UpdateRequest struct {
	ID        int64
	Status    string
	ActorID   int64
	IPAddress string
}

type Service struct {
	db     *sql.DB
	policy config.AuditPolicy
	hub    Broadcaster
	logger *slog.Logger
}

// NewService returns a Service. hub may be nil.
func NewService(db *sql.DB, policy config.AuditPolicy, hub Broadcaster, logger *slog.Logger) *Service {
	return &Service{db: db, policy: policy, hub: hub, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]model.FraudAlertView, error) {
	alerts, err := store.NewFraudAlertStore(s.db).ListWithContext(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return alerts, nil
}

// UpdateStatus overwrites an alert's status and records who did it. What
// happens when the audit insert fails depends on the configured policy.
func (s *Service) UpdateStatus(ctx context.Context, req UpdateRequest) (*model.FraudAlert, error) {
	if req.ID == 0 || req.Status == "" {
		return nil, apperr.New(apperr.KindValidation, MsgMissingFields)
	}
	if !model.ValidAlertStatuses[req.Status] {
		return nil, apperr.New(apperr.KindValidation, MsgInvalidStatus)
	}

	var updated *model.FraudAlert
	var err error
	if s.policy == config.AuditAtomic {
		err = database.WithTx(ctx, s.db, func(tx database.DBTX) error {
			updated, err = s.apply(ctx, tx, req)
			return err
		})
	} else {
		updated, err = s.apply(ctx, s.db, req)
	}
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.Broadcast(websocket.AlertUpdated(updated, req.ActorID))
	}
	return updated, nil
}

func (s *Service) apply(ctx context.Context, db database.DBTX, req UpdateRequest) (*model.FraudAlert, error) {
	updated, err := store.NewFraudAlertStore(db).SetStatus(ctx, store.SetAlertStatus{ID: req.ID, Status: req.Status})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if updated == nil {
		return nil, apperr.New(apperr.KindNotFound, MsgNotFound)
	}

	_, err = audit.NewRecorder(store.NewAuditLogStore(db)).Record(ctx, audit.Entry{
		ActorID:   req.ActorID,
		Action:    audit.ActionUpdate,
		EntityID:  updated.ID,
		Details:   fmt.Sprintf("Updated fraud alert status to %q", req.Status),
		IPAddress: req.IPAddress,
	})
	if err != nil {
		if s.policy == config.AuditTolerate {
			s.logger.Error("audit log write failed; status change kept",
				"alert_id", updated.ID, "actor_id", req.ActorID, "error", err)
			return updated, nil
		}
		return nil, apperr.Wrap(apperr.KindInternal, "record audit entry", err)
	}
	return updated, nil
}
