// Package session mints and parses the stateless session token handed to an
// administrator after two-factor verification.
package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/dukerupert/fraudwatch/internal/model"
)

const (
	// TTL is the fixed lifetime of a session token and its cookie.
	TTL        = 4 * time.Hour
	CookieName = "token"

	keyInfo = "fraudwatch session signing key v1"
)

var ErrInvalidToken = errors.New("invalid session token")

// Claims is the JWT payload. The JSON names are read by the dashboard.
type Claims struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	Role              string `json:"role"`
	TwoFactorVerified bool   `json:"twoFactorVerified"`
	jwt.RegisteredClaims
}

type Issuer struct {
	key    []byte
	secure bool
	now    func() time.Time
}

type Option func(*Issuer)

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer derives an HMAC key from secret. secureCookies sets the Secure
// attribute on session cookies and should be true in production.
func NewIssuer(secret string, secureCookies bool, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}

	i := &Issuer{key: key, secure: secureCookies, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a two-factor-verified token for u that expires TTL from now.
func (i *Issuer) Issue(u *model.User) (string, time.Time, error) {
	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(TTL)

	claims := Claims{
		ID:                u.ID,
		Email:             u.Email,
		Role:              u.Role,
		TwoFactorVerified: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies the signature and expiry of token and returns its claims.
func (i *Issuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Cookie wraps token in the session cookie sent alongside the response body.
func (i *Issuer) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(TTL / time.Second),
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteStrictMode,
	}
}
