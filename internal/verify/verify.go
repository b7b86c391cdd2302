// Package verify checks one-time codes submitted during admin sign-in and
// exchanges a valid code for a session token.
package verify

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"github.com/dukerupert/fraudwatch/internal/apperr"
	"github.com/dukerupert/fraudwatch/internal/model"
	"github.com/dukerupert/fraudwatch/internal/store"
)

// State is the position of a verification attempt in the sign-in flow.
type State int

const (
	// StateNoCode: the user has no pending code, either never requested or already consumed.
	StateNoCode State = iota
	StateAwaitingCode
	StateValidated
	StateExpired
	StateMismatched
	StateConsumed
)

func (s State) String() string {
	switch s {
	case StateAwaitingCode:
		return "awaiting_code"
	case StateValidated:
		return "validated"
	case StateExpired:
		return "expired"
	case StateMismatched:
		return "mismatched"
	case StateConsumed:
		return "consumed"
	default:
		return "no_code"
	}
}

const (
	MsgMissingFields = "Email and verification code are required"
	MsgUserNotFound  = "User not found"
	MsgNoCode        = "No verification code found"
	MsgExpired       = "Verification code has expired"
	MsgMismatch      = "Invalid verification code"
)

// Pending reports the state of u before any attempt.
func Pending(u *model.User) State {
	if u.VerificationCode == nil || u.VerificationCodeExpiresAt == nil {
		return StateNoCode
	}
	return StateAwaitingCode
}

// Check classifies an attempt to verify code for u at now. Expiry is checked
// before the code, so an expired code fails as expired even when it matches.
// A code is still valid at the exact expiry instant.
func Check(u *model.User, code string, now time.Time) State {
	if Pending(u) == StateNoCode {
		return StateNoCode
	}
	if now.After(*u.VerificationCodeExpiresAt) {
		return StateExpired
	}
	if subtle.ConstantTimeCompare([]byte(*u.VerificationCode), []byte(code)) != 1 {
		return StateMismatched
	}
	return StateValidated
}

// Validate is Check with failures mapped to tagged errors. A nil user is NotFound.
func Validate(u *model.User, code string, now time.Time) error {
	if u == nil {
		return apperr.New(apperr.KindNotFound, MsgUserNotFound)
	}
	switch Check(u, code, now) {
	case StateValidated:
		return nil
	case StateExpired:
		return apperr.New(apperr.KindExpired, MsgExpired)
	case StateMismatched:
		return apperr.New(apperr.KindMismatch, MsgMismatch)
	default:
		return apperr.New(apperr.KindInvalidState, MsgNoCode)
	}
}

// Credentials is the slice of the user store the flow needs.
type Credentials interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ClearVerificationCode(ctx context.Context, cmd store.ClearVerificationCode) (bool, error)
}

type TokenIssuer interface {
	Issue(u *model.User) (string, time.Time, error)
}

type Result struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

type Service struct {
	users  Credentials
	issuer TokenIssuer
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(users Credentials, issuer TokenIssuer, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{users: users, issuer: issuer, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify exchanges email and code for a session token. The token is signed
// before the code is cleared and discarded if the clear does not happen, so
// a failure at either step leaves no usable token and a successful call
// consumes the code exactly once.
func (s *Service) Verify(ctx context.Context, email, code string) (*Result, error) {
	if email == "" || code == "" {
		return nil, apperr.New(apperr.KindValidation, MsgMissingFields)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := Validate(u, code, s.now()); err != nil {
		if u != nil {
			s.logger.Info("verification rejected", "user_id", u.ID, "reason", apperr.KindOf(err).String())
		}
		return nil, err
	}

	token, expiresAt, err := s.issuer.Issue(u)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	cleared, err := s.users.ClearVerificationCode(ctx, store.ClearVerificationCode{UserID: u.ID, Code: code})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !cleared {
		// Another request consumed the code between the read and the clear.
		s.logger.Warn("verification code already consumed", "user_id", u.ID)
		return nil, apperr.New(apperr.KindInvalidState, MsgNoCode)
	}

	u.VerificationCode = nil
	u.VerificationCodeExpiresAt = nil
	s.logger.Info("verification succeeded", "user_id", u.ID, "state", StateConsumed.String())

	return &Result{Token: token, ExpiresAt: expiresAt, User: u}, nil
}
