package auth

import (
	"log/slog"
	"net/http"
	"time"
)

// DefaultSessionCookie is the name of the cookie carrying the session token.
const DefaultSessionCookie = "session"

// SessionConfig controls the session cookie.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	// Secure restricts the cookie to HTTPS. Leave false for local HTTP.
	Secure bool
}

// SessionManager keeps the authenticated username for one browser.
//
// The server holds no session table. The identity lives in a signed token
// inside an HttpOnly cookie, so the only state is on the client; the token's
// signature is what stops a client from claiming someone else's username.
//
//	Set   -> Set-Cookie: session=<jwt>; HttpOnly; SameSite=Lax; Max-Age=<ttl>
//	Get   <- Cookie: session=<jwt>   (missing, forged or expired = anonymous)
//	Clear -> Set-Cookie: session=; Max-Age=-1
type SessionManager struct {
	tokens *TokenService
	cfg    SessionConfig
	logger *slog.Logger
}

// NewSessionManager creates a SessionManager. Zero-valued config fields fall
// back to DefaultSessionCookie and a 7 day TTL.
func NewSessionManager(tokens *TokenService, cfg SessionConfig, logger *slog.Logger) *SessionManager {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookie
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SessionManager{tokens: tokens, cfg: cfg, logger: logger}
}

// CookieName returns the name of the session cookie.
func (m *SessionManager) CookieName() string {
	return m.cfg.CookieName
}

// Set associates the client's session with username. It replaces any
// identity the client already had.
func (m *SessionManager) Set(w http.ResponseWriter, username string) error {
	token, err := m.tokens.Issue(username, m.cfg.TTL)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the identity. Clearing an anonymous session is a no-op for
// the client and is not an error.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Get returns the username stored in the request's session, or ("", false)
// for an anonymous client.
func (m *SessionManager) Get(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	username, err := m.tokens.Parse(cookie.Value)
	if err != nil {
		m.logger.Debug("ignoring session cookie", slog.String("reason", err.Error()))
		return "", false
	}
	return username, true
}
