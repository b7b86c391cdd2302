package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/fraudwatch/internal/database"
	"github.com/dukerupert/fraudwatch/internal/model"
)

type FraudAlertStore struct {
	db database.DBTX
}

func NewFraudAlertStore(db database.DBTX) *FraudAlertStore {
	return &FraudAlertStore{db: db}
}

func scanFraudAlert(scanner interface{ Scan(...any) error }) (*model.FraudAlert, error) {
	var a model.FraudAlert
	var txID sql.NullInt64
	err := scanner.Scan(&a.ID, &a.UserID, &txID, &a.Status, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if txID.Valid {
		a.TransactionID = &txID.Int64
	}
	return &a, nil
}

const fraudAlertCols = `id, user_id, transaction_id, status, created_at`

// Create inserts an alert. A zero CreatedAt means now; an empty Status means pending.
func (s *FraudAlertStore) Create(ctx context.Context, a model.FraudAlert) (*model.FraudAlert, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.Status == "" {
		a.Status = model.AlertStatusPending
	}
	var txID sql.NullInt64
	if a.TransactionID != nil {
		txID = sql.NullInt64{Int64: *a.TransactionID, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO fraud_alerts (user_id, transaction_id, status, created_at) VALUES (?, ?, ?, ?)`,
		a.UserID, txID, a.Status, a.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert fraud alert: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FraudAlertStore) GetByID(ctx context.Context, id int64) (*model.FraudAlert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fraudAlertCols+` FROM fraud_alerts WHERE id = ?`, id)
	a, err := scanFraudAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fraud alert: %w", err)
	}
	return a, nil
}

// ListWithContext returns every alert joined with its owner's name and, when
// present, the related transaction, most recent first.
func (s *FraudAlertStore) ListWithContext(ctx context.Context) ([]model.FraudAlertView, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fa.id, fa.user_id, fa.transaction_id, fa.status, fa.created_at,
		        u.first_name, u.last_name, t.reference, t.amount
		 FROM fraud_alerts fa
		 LEFT JOIN users u ON fa.user_id = u.id
		 LEFT JOIN transactions t ON fa.transaction_id = t.id
		 ORDER BY fa.created_at DESC, fa.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list fraud alerts: %w", err)
	}
	defer rows.Close()

	alerts := []model.FraudAlertView{}
	for rows.Next() {
		var v model.FraudAlertView
		var txID sql.NullInt64
		var firstName, lastName, reference sql.NullString
		var amount sql.NullFloat64
		err := rows.Scan(
			&v.ID, &v.UserID, &txID, &v.Status, &v.CreatedAt,
			&firstName, &lastName, &reference, &amount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fraud alert: %w", err)
		}
		if txID.Valid {
			v.TransactionID = &txID.Int64
		}
		v.UserName = model.User{FirstName: firstName.String, LastName: lastName.String}.DisplayName()
		if reference.Valid {
			v.TransactionReference = &reference.String
		}
		if amount.Valid {
			v.TransactionAmount = &amount.Float64
		}
		alerts = append(alerts, v)
	}
	return alerts, rows.Err()
}

// SetAlertStatus overwrites one alert's status.
type SetAlertStatus struct {
	ID     int64
	Status string
}

// SetStatus applies cmd and returns the updated alert, or nil if no alert has cmd.ID.
func (s *FraudAlertStore) SetStatus(ctx context.Context, cmd SetAlertStatus) (*model.FraudAlert, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE fraud_alerts SET status = ? WHERE id = ?`,
		cmd.Status, cmd.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update fraud alert status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, cmd.ID)
}
