package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/userbase/internal/apperror"
	"github.com/sakif/userbase/internal/auth"
	"github.com/sakif/userbase/internal/middleware"
	"github.com/sakif/userbase/internal/service"
)

// Flash texts for outcomes decided here rather than in the service.
const (
	MsgRegistered    = "Registration successful. Please log in."
	MsgLoggedIn      = "Logged in successfully."
	MsgLoggedOut     = "You have been logged out."
	MsgLoginRequired = "You must be logged in to view your profile."
)

// Route paths, shared with the router.
const (
	PathHome     = "/"
	PathRegister = "/register"
	PathLogin    = "/login"
	PathLogout   = "/logout"
	PathProfile  = "/profile"
)

// AccountHandler serves the register, login, logout and profile pages.
type AccountHandler struct {
	accounts *service.AccountService
	sessions *auth.SessionManager
	pages    *Renderer
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *service.AccountService, sessions *auth.SessionManager, pages *Renderer, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		sessions: sessions,
		pages:    pages,
		logger:   logger,
	}
}

// HandleHome renders the landing page for both anonymous and logged-in
// visitors.
func (h *AccountHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, PageIndex, PageData{Title: "Home"})
}

// HandleRegisterForm renders the empty registration form.
func (h *AccountHandler) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, PageRegister, PageData{Title: "Register"})
}

// HandleRegister creates an account from the submitted form.
//
//	missing field / too long -> flash error, 302 /register
//	username taken           -> flash error, 302 /register
//	success                  -> flash success, 302 /login
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, middleware.FlashError, service.MsgCredentialsRequired, PathRegister)
		return
	}

	_, err := h.accounts.Register(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	switch {
	case err == nil:
		redirectWithFlash(w, r, middleware.FlashSuccess, MsgRegistered, PathLogin)
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrConflict):
		redirectWithFlash(w, r, middleware.FlashError, apperror.UserMessage(err, service.MsgCredentialsRequired), PathRegister)
	default:
		h.pages.ServerError(w, r, err)
	}
}

// HandleLoginForm renders the empty login form.
func (h *AccountHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, PageLogin, PageData{Title: "Log in"})
}

// HandleLogin checks the submitted credentials and, on success, binds the
// username to the session. A failed attempt leaves the session as it was.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, middleware.FlashError, service.MsgInvalidCredentials, PathLogin)
		return
	}

	account, err := h.accounts.Authenticate(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthenticated) {
			redirectWithFlash(w, r, middleware.FlashError, service.MsgInvalidCredentials, PathLogin)
			return
		}
		h.pages.ServerError(w, r, err)
		return
	}

	if err := h.sessions.Set(w, account.Username); err != nil {
		h.pages.ServerError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "user logged in", slog.String("username", account.Username))
	redirectWithFlash(w, r, middleware.FlashSuccess, MsgLoggedIn, PathHome)
}

// HandleLogout clears the session. Logging out while anonymous is allowed
// and produces the same response.
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if username, ok := auth.IdentityFromContext(r.Context()); ok {
		h.logger.InfoContext(r.Context(), "user logged out", slog.String("username", username))
	}
	h.sessions.Clear(w)
	redirectWithFlash(w, r, middleware.FlashInfo, MsgLoggedOut, PathHome)
}

// HandleProfile renders the logged-in user's account and profile. It must
// be mounted behind auth.RequireIdentity.
//
// If the account disappeared after the session was issued the session is
// left alone and the user is sent home with "User not found.".
func (h *AccountHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		DenyAnonymous(w, r)
		http.Redirect(w, r, PathLogin, http.StatusFound)
		return
	}

	view, err := h.accounts.Profile(r.Context(), username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			redirectWithFlash(w, r, middleware.FlashError, apperror.UserMessage(err, service.MsgUserNotFound), PathHome)
			return
		}
		h.pages.ServerError(w, r, err)
		return
	}

	h.pages.Render(w, r, http.StatusOK, PageProfile, PageData{Title: "Profile", View: view})
}

// DenyAnonymous is the auth.RequireIdentity hook for the profile page.
func DenyAnonymous(w http.ResponseWriter, _ *http.Request) {
	middleware.SetFlash(w, middleware.FlashError, MsgLoginRequired)
}
