package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/fraudwatch/internal/database"
	"github.com/dukerupert/fraudwatch/internal/model"
)

// AuditLogStore is append-only: it has no update or delete.
type AuditLogStore struct {
	db database.DBTX
}

func NewAuditLogStore(db database.DBTX) *AuditLogStore {
	return &AuditLogStore{db: db}
}

func scanAuditLog(scanner interface{ Scan(...any) error }) (*model.AuditLogEntry, error) {
	var e model.AuditLogEntry
	var ip sql.NullString
	err := scanner.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &e.Details, &ip, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if ip.Valid {
		e.IPAddress = &ip.String
	}
	return &e, nil
}

const auditLogCols = `id, user_id, action, entity_type, entity_id, details, ip_address, created_at`

// Insert appends e. ID and CreatedAt are assigned by the database.
func (s *AuditLogStore) Insert(ctx context.Context, e model.AuditLogEntry) (*model.AuditLogEntry, error) {
	var ip sql.NullString
	if e.IPAddress != nil {
		ip = sql.NullString{String: *e.IPAddress, Valid: true}
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (user_id, action, entity_type, entity_id, details, ip_address) VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Action, e.EntityType, e.EntityID, e.Details, ip,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+auditLogCols+` FROM audit_logs WHERE id = ?`, id)
	entry, err := scanAuditLog(row)
	if err != nil {
		return nil, fmt.Errorf("get audit log: %w", err)
	}
	return entry, nil
}

// ListRecent returns up to limit entries, newest first.
func (s *AuditLogStore) ListRecent(ctx context.Context, limit int) ([]model.AuditLogEntry, error) {
	return s.list(ctx, `SELECT `+auditLogCols+` FROM audit_logs ORDER BY id DESC LIMIT ?`, limit)
}

// ListByEntity returns the entries for one entity in insertion order.
func (s *AuditLogStore) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]model.AuditLogEntry, error) {
	return s.list(ctx,
		`SELECT `+auditLogCols+` FROM audit_logs WHERE entity_type = ? AND entity_id = ? ORDER BY id`,
		entityType, entityID,
	)
}

func (s *AuditLogStore) list(ctx context.Context, query string, args ...any) ([]model.AuditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditLogEntry{}
	for rows.Next() {
		e, err := scanAuditLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
