package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	domainAccount "gymdesk/internal/domain/account"
)

type sessionKey struct{}

const sessionCookieName = "gymdesk_session"

// SessionTTL is how long a login stays valid. Expiry is absolute; activity does not extend it.
const SessionTTL = 24 * time.Hour

// SecureCookies marks session cookies Secure. Set in production.
var SecureCookies bool

// Session is the caller identity attached to a request.
type Session struct {
	AccountID   string
	Email       string
	DisplayName string
	Role        string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// IsStaff reports whether the session may act for other members.
func (s Session) IsStaff() bool {
	return s.Role == domainAccount.RoleAdmin || s.Role == domainAccount.RoleTrainer
}

func (s Session) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionStore keeps logins in memory, indexed by token and by account.
// Restarting the server logs everybody out.
type SessionStore struct {
	mu        sync.Mutex
	byToken   map[string]Session
	byAccount map[string]map[string]struct{}
	now       func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		byToken:   make(map[string]Session),
		byAccount: make(map[string]map[string]struct{}),
		now:       time.Now,
	}
}

// Create issues a token for s, stamping its creation and expiry.
// PRE: s.AccountID and s.Role are non-empty
// POST: expired sessions of the same account are dropped
func (ss *SessionStore) Create(s Session) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := ss.now()
	s.CreatedAt = now
	s.ExpiresAt = now.Add(SessionTTL)
	for t := range ss.byAccount[s.AccountID] {
		if ss.byToken[t].expired(now) {
			ss.dropLocked(t)
		}
	}
	ss.byToken[token] = s
	if ss.byAccount[s.AccountID] == nil {
		ss.byAccount[s.AccountID] = make(map[string]struct{})
	}
	ss.byAccount[s.AccountID][token] = struct{}{}
	return token, nil
}

// Get resolves a token. An expired session is removed and reported missing.
func (ss *SessionStore) Get(token string) (Session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.byToken[token]
	if !ok {
		return Session{}, false
	}
	if s.expired(ss.now()) {
		ss.dropLocked(token)
		return Session{}, false
	}
	return s, true
}

// Delete logs a single token out.
func (ss *SessionStore) Delete(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.dropLocked(token)
}

// RevokeAccount drops every session of accountID except keep and returns
// how many were dropped. keep may be empty.
func (ss *SessionStore) RevokeAccount(accountID, keep string) int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	n := 0
	for t := range ss.byAccount[accountID] {
		if t == keep {
			continue
		}
		ss.dropLocked(t)
		n++
	}
	return n
}

// PRE: ss.mu is held
func (ss *SessionStore) dropLocked(token string) {
	s, ok := ss.byToken[token]
	if !ok {
		return
	}
	delete(ss.byToken, token)
	tokens := ss.byAccount[s.AccountID]
	delete(tokens, token)
	if len(tokens) == 0 {
		delete(ss.byAccount, s.AccountID)
	}
}

// SessionToken returns the token from the session cookie, or "".
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// Auth resolves the session cookie into the request context.
// Anonymous requests pass through; handlers decide what needs a login.
func Auth(sessions *SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := SessionToken(r); token != "" {
				if s, ok := sessions.Get(token); ok {
					r = r.WithContext(ContextWithSession(r.Context(), s))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithSession attaches s to ctx.
func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// GetSessionFromContext returns the session attached by Auth.
func GetSessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// SetSessionCookie hands token to the browser for the session lifetime.
func SetSessionCookie(w http.ResponseWriter, token string) {
	writeSessionCookie(w, token, int(SessionTTL.Seconds()))
}

// ClearSessionCookie tells the browser to forget its token.
func ClearSessionCookie(w http.ResponseWriter) {
	writeSessionCookie(w, "", -1)
}

func writeSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
