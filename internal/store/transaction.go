package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/fraudwatch/internal/database"
	"github.com/dukerupert/fraudwatch/internal/model"
)

// TransactionStore is read-only context for alerts; rows are written by the
// payment pipeline.
type TransactionStore struct {
	db database.DBTX
}

func NewTransactionStore(db database.DBTX) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Create(ctx context.Context, userID int64, reference string, amount float64) (*model.Transaction, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, reference, amount) VALUES (?, ?, ?)`,
		userID, reference, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var t model.Transaction
	err = s.db.QueryRowContext(ctx,
		`SELECT id, user_id, reference, amount, created_at FROM transactions WHERE id = ?`, id,
	).Scan(&t.ID, &t.UserID, &t.Reference, &t.Amount, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}
