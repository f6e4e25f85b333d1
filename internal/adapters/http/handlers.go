package web

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/domain/account"
	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/booking"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err)
	}
}

// errorBody is the JSON shape of every booking refusal.
type errorBody struct {
	Reason  booking.Reason `json:"reason"`
	Message string         `json:"message"`
}

// bookingStatus maps a booking reason to its HTTP status.
func bookingStatus(r booking.Reason) int {
	switch r {
	case booking.ReasonNoMembership, booking.ReasonOpenGymOnlyRestriction, booking.ReasonLimitReached, booking.ReasonNoCredits:
		return http.StatusForbidden
	case booking.ReasonDeadlinePassed, booking.ReasonAlreadyRegistered, booking.ReasonCourseCancelled:
		return http.StatusConflict
	case booking.ReasonNotFound:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

// writeBookingError answers with the reason code and the member-facing message.
// The raw error only reaches the log.
func writeBookingError(w http.ResponseWriter, r *http.Request, err error) {
	reason := booking.ReasonOf(err)
	status := bookingStatus(reason)
	if status == http.StatusServiceUnavailable {
		slog.Error("booking_failed", "path", r.URL.Path, "error", err.Error())
	}
	writeJSON(w, status, errorBody{Reason: reason, Message: booking.UserMessage(err)})
}

// writeAdminError maps admin write failures: validation to 400, unknown
// references to 404, retired plans to 409, everything else to 500.
func writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrators.ErrInvalidInput):
		http.Error(w, strings.TrimPrefix(err.Error(), orchestrators.ErrInvalidInput.Error()+": "), http.StatusBadRequest)
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, orchestrators.ErrUnknownUser), errors.Is(err, orchestrators.ErrUnknownPlan):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, orchestrators.ErrPlanInactive):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		internalError(w, err)
	}
}

// requireSession returns the caller's session or answers 401.
func requireSession(w http.ResponseWriter, r *http.Request) (middleware.Session, bool) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return middleware.Session{}, false
	}
	return sess, true
}

// requireAdmin returns the session if the caller is an admin; otherwise answers 401/403.
func requireAdmin(w http.ResponseWriter, r *http.Request) (middleware.Session, bool) {
	sess, ok := requireSession(w, r)
	if !ok {
		return sess, false
	}
	if sess.Role != account.RoleAdmin {
		http.Error(w, "admin required", http.StatusForbidden)
		return sess, false
	}
	return sess, true
}

// requireStaff returns the session if the caller is an admin or trainer.
func requireStaff(w http.ResponseWriter, r *http.Request) (middleware.Session, bool) {
	sess, ok := requireSession(w, r)
	if !ok {
		return sess, false
	}
	if !sess.IsStaff() {
		http.Error(w, "staff required", http.StatusForbidden)
		return sess, false
	}
	return sess, true
}

// requireMethod answers 405 unless r uses one of the methods.
func requireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccountID   string `json:"accountId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// handleLogin handles POST /api/login
func handleLogin(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req loginRequest
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	acct, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, orchestrators.AccountDeps{AccountStore: stores.AccountStore, Now: timeNow})
	switch {
	case errors.Is(err, orchestrators.ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	case errors.Is(err, orchestrators.ErrAccountLocked):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	case err != nil:
		internalError(w, err)
		return
	}

	sess := middleware.Session{AccountID: acct.ID, Email: acct.Email, DisplayName: acct.DisplayName, Role: acct.Role}
	token, err := sessions.Create(sess)
	if err != nil {
		internalError(w, err)
		return
	}
	middleware.SetSessionCookie(w, token)
	recordAudit(r.Context(), auditEvent(r, sess, audit.CategorySecurity, audit.ActionLogin))
	writeJSON(w, http.StatusOK, sessionResponse{
		AccountID:   acct.ID,
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
		Role:        acct.Role,
	})
}

// handleLogout handles POST /api/logout
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if token := middleware.SessionToken(r); token != "" {
		sessions.Delete(token)
	}
	middleware.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe handles GET /api/me
func handleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		AccountID:   sess.AccountID,
		Email:       sess.Email,
		DisplayName: sess.DisplayName,
		Role:        sess.Role,
	})
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// handleChangePassword handles POST /api/me/password
func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok || !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req passwordRequest
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	err := orchestrators.ExecuteChangePassword(r.Context(), orchestrators.ChangePasswordInput{
		AccountID:       sess.AccountID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	}, orchestrators.AccountDeps{AccountStore: stores.AccountStore})
	switch {
	case errors.Is(err, orchestrators.ErrCurrentPasswordWrong):
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	case err != nil:
		writeAdminError(w, err)
		return
	}
	// Other devices must log in again with the new password.
	if n := sessions.RevokeAccount(sess.AccountID, middleware.SessionToken(r)); n > 0 {
		slog.Info("sessions_revoked", "account_id", sess.AccountID, "count", n)
	}
	recordAudit(r.Context(), auditEvent(r, sess, audit.CategorySecurity, audit.ActionUpdate).
		WithResource("account", sess.AccountID).WithDescription("password changed"))
	w.WriteHeader(http.StatusNoContent)
}
