package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/fraudwatch/internal/database"
	"github.com/dukerupert/fraudwatch/internal/model"
)

type UserStore struct {
	db database.DBTX
}

func NewUserStore(db database.DBTX) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var code sql.NullString
	var expiresAt sql.NullTime
	err := scanner.Scan(
		&u.ID, &u.Email, &u.Role, &u.FirstName, &u.LastName,
		&code, &expiresAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if code.Valid {
		u.VerificationCode = &code.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		u.VerificationCodeExpiresAt = &t
	}
	return &u, nil
}

const userCols = `id, email, role, first_name, last_name, verification_code, verification_code_expires_at, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, email, role, firstName, lastName string) (*model.User, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, role, first_name, last_name) VALUES (?, ?, ?, ?)`,
		email, role, firstName, lastName,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail returns the user with the given email, or nil if none exists.
// The match is exact.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// SetVerificationCode stores a pending one-time code and its deadline.
func (s *UserStore) SetVerificationCode(ctx context.Context, id int64, code string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET verification_code = ?, verification_code_expires_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		code, expiresAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set verification code: %w", err)
	}
	return nil
}

// ClearVerificationCode consumes a user's pending one-time code.
// Code must be the value that was validated; the row only matches while it
// still holds that code, so a code is consumed at most once.
type ClearVerificationCode struct {
	UserID int64
	Code   string
}

// ClearVerificationCode applies cmd and reports whether a pending code was cleared.
func (s *UserStore) ClearVerificationCode(ctx context.Context, cmd ClearVerificationCode) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users
		 SET verification_code = NULL, verification_code_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND verification_code = ?`,
		cmd.UserID, cmd.Code,
	)
	if err != nil {
		return false, fmt.Errorf("clear verification code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
