package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/fraudwatch/internal/session"
	"github.com/dukerupert/fraudwatch/internal/verify"
)

const (
	msgVerifyFailed = "An error occurred during verification"
	msgInvalidBody  = "Invalid request body"
)

type VerifyHandler struct {
	verifier *verify.Service
	issuer   *session.Issuer
	logger   *slog.Logger
}

func NewVerifyHandler(v *verify.Service, iss *session.Issuer, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{verifier: v, issuer: iss, logger: logger}
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type verifiedUser struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type verifyResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    verifiedUser `json:"user"`
}

// Verify exchanges an admin's email and one-time code for a session token,
// returned in the body and as the session cookie.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// An empty body carries no fields; anything else that fails to
		// decode, a numeric code included, is malformed.
		msg := msgInvalidBody
		if errors.Is(err, io.EOF) {
			msg = verify.MsgMissingFields
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": msg})
		return
	}

	res, err := h.verifier.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		writeFailure(w, r, h.logger, "message", msgVerifyFailed, err)
		return
	}

	http.SetCookie(w, h.issuer.Cookie(res.Token))
	writeJSON(w, http.StatusOK, verifyResponse{
		Message: "Verification successful",
		Token:   res.Token,
		User: verifiedUser{
			ID:        res.User.ID,
			Email:     res.User.Email,
			FirstName: res.User.FirstName,
			LastName:  res.User.LastName,
			Role:      res.User.Role,
		},
	})
}
