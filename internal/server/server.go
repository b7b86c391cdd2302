package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/fraudwatch/internal/alert"
	"github.com/dukerupert/fraudwatch/internal/audit"
	"github.com/dukerupert/fraudwatch/internal/backup"
	"github.com/dukerupert/fraudwatch/internal/config"
	"github.com/dukerupert/fraudwatch/internal/handler"
	"github.com/dukerupert/fraudwatch/internal/middleware"
	"github.com/dukerupert/fraudwatch/internal/session"
	"github.com/dukerupert/fraudwatch/internal/store"
	"github.com/dukerupert/fraudwatch/internal/verify"
	ws "github.com/dukerupert/fraudwatch/internal/websocket"
)

const (
	verifyRateLimit  = 10
	verifyRateWindow = time.Minute

	maxVerifyBody = 1 << 20
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	issuer      *session.Issuer
	verifyH     *handler.VerifyHandler
	alertH      *handler.AlertHandler
	backupH     *handler.BackupHandler
	backups     *backup.Manager
	rateLimiter *middleware.RateLimiter
	clientIP    func(*http.Request) string
	logger      *slog.Logger
}

type options struct {
	backup []backup.Option
}

type Option func(*options)

// WithBackupOptions passes opts through to the backup manager.
func WithBackupOptions(opts ...backup.Option) Option {
	return func(o *options) {
		o.backup = append(o.backup, opts...)
	}
}

func New(db *sql.DB, cfg *config.Config, issuer *session.Issuer, logger *slog.Logger, opts ...Option) *Server {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	recorder := audit.NewRecorder(store.NewAuditLogStore(db))

	verifier := verify.NewService(userStore, issuer, logger.With("component", "verify"))
	alerts := alert.NewService(db, cfg.AuditPolicy, hub, logger.With("component", "alert"))

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.S3Endpoint,
			Bucket:    cfg.Backup.S3Bucket,
			Region:    cfg.Backup.S3Region,
			AccessKey: cfg.Backup.S3AccessKey,
			SecretKey: cfg.Backup.S3SecretKey,
			Prefix:    cfg.Backup.S3Prefix,
		},
		Passphrase:    cfg.Backup.Passphrase,
		Interval:      cfg.Backup.Interval,
		RetentionDays: cfg.Backup.RetentionDays,
	}, db, logger.With("component", "backup"), func(st backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(st.State),
			Extra: map[string]any{
				"in_progress": st.InProgress,
				"error":       st.Error,
			},
		})
	}, o.backup...)

	return &Server{
		db:          db,
		hub:         hub,
		issuer:      issuer,
		verifyH:     handler.NewVerifyHandler(verifier, issuer, logger.With("component", "verify_handler")),
		alertH:      handler.NewAlertHandler(alerts, recorder, logger.With("component", "alert_handler")),
		backupH:     handler.NewBackupHandler(backupMgr, logger.With("component", "backup_handler")),
		backups:     backupMgr,
		rateLimiter: middleware.NewRateLimiter(),
		clientIP:    middleware.ClientIP(cfg.TrustProxy),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup scheduler so main can start and stop it.
func (s *Server) BackupManager() *backup.Manager {
	return s.backups
}

// Hub returns the live alert feed.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/admin/verify", s.verifyLimited(s.verifyH.Verify))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Admin routes: a verified session and the admin role
	adminMux := http.NewServeMux()
	s.registerAdminRoutes(adminMux)

	requireAuth := middleware.RequireAuth(s.issuer)
	outerMux.Handle("/api/admin/", requireAuth(middleware.RequireAdmin(adminMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// verifyLimited caps code attempts per client address and, separately, per
// submitted email, so rotating addresses does not reset the count for an
// account.
func (s *Server) verifyLimited(h http.HandlerFunc) http.HandlerFunc {
	byIP := middleware.RateLimit(s.rateLimiter, func(r *http.Request) string {
		return "verify-ip:" + s.clientIP(r)
	}, verifyRateLimit, verifyRateWindow)
	byEmail := middleware.RateLimit(s.rateLimiter, verifyEmailKey, verifyRateLimit, verifyRateWindow)
	return byIP(byEmail(h)).ServeHTTP
}

// verifyEmailKey reads the email from a verify request body and restores the
// body for the handler. Bodies without an email are not keyed.
func verifyEmailKey(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxVerifyBody))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var req struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &req) != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return ""
	}
	return "verify-email:" + email
}

func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/alerts", s.alertH.List)
	mux.HandleFunc("PUT /api/admin/alerts", s.alertH.Update)
	mux.HandleFunc("GET /api/admin/alerts/live", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
	mux.HandleFunc("GET /api/admin/audit-logs", s.alertH.AuditLogs)
	mux.HandleFunc("GET /api/admin/backups", s.backupH.List)
	mux.HandleFunc("POST /api/admin/backups", s.backupH.Run)
}
