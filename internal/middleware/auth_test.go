package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/fraudwatch/internal/auth"
	"github.com/dukerupert/fraudwatch/internal/logging"
	"github.com/dukerupert/fraudwatch/internal/model"
	"github.com/dukerupert/fraudwatch/internal/session"
)

func newTestIssuer(t *testing.T) *session.Issuer {
	t.Helper()
	iss, err := session.NewIssuer("test-secret", false)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return iss
}

func issueToken(t *testing.T, iss *session.Issuer, role string) string {
	t.Helper()
	token, _, err := iss.Issue(&model.User{ID: 7, Email: "a@x.com", Role: role})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

type stubParser struct {
	claims *session.Claims
	err    error
}

func (p stubParser) Parse(string) (*session.Claims, error) { return p.claims, p.err }

func unreachable(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})
}

func TestRequireAuthNoToken(t *testing.T) {
	handler := RequireAuth(newTestIssuer(t))(unreachable(t))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), `"error":"Unauthorized"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	handler := RequireAuth(newTestIssuer(t))(unreachable(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthRejectsUnverifiedClaims(t *testing.T) {
	parser := stubParser{claims: &session.Claims{ID: 7, Role: auth.RoleAdmin}}
	handler := RequireAuth(parser)(unreachable(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthParserError(t *testing.T) {
	handler := RequireAuth(stubParser{err: errors.New("boom")})(unreachable(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	iss := newTestIssuer(t)

	tests := []struct {
		name  string
		setup func(*http.Request, string)
	}{
		{"cookie", func(r *http.Request, tok string) {
			r.AddCookie(&http.Cookie{Name: session.CookieName, Value: tok})
		}},
		{"bearer", func(r *http.Request, tok string) {
			r.Header.Set("Authorization", "Bearer "+tok)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAC auth.AuthContext
			handler := RequireAuth(iss)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ac, ok := auth.FromContext(r.Context())
				if !ok {
					t.Fatal("expected AuthContext in request context")
				}
				gotAC = ac
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/", nil)
			tt.setup(req, issueToken(t, iss, auth.RoleAdmin))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if gotAC.UserID != 7 || gotAC.Email != "a@x.com" || gotAC.Role != auth.RoleAdmin || !gotAC.TwoFactorVerified {
				t.Errorf("AuthContext = %+v", gotAC)
			}
		})
	}
}

func TestRequireAdminAllowed(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, Role: auth.RoleAdmin}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAdminForbidden(t *testing.T) {
	iss := newTestIssuer(t)
	handler := RequireAuth(iss)(RequireAdmin(unreachable(t)))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: issueToken(t, iss, "analyst")})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if !strings.Contains(rec.Body.String(), `"error":"Forbidden"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRequestLoggerTagsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var scoped *slog.Logger
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = logging.FromContext(r.Context(), nil)
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	id := rec.Header().Get(RequestIDHeader)
	if id == "" {
		t.Fatal("expected a request ID header")
	}
	if scoped == nil || scoped == logger {
		t.Error("handler should see a request-scoped logger")
	}
	out := buf.String()
	if !strings.Contains(out, "request_id="+id) || !strings.Contains(out, "status=418") {
		t.Errorf("log line = %q", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("4xx should log at warn: %q", out)
	}
}
