// Package handler contains the HTTP handlers for the account pages.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming request (form fields, session identity)
// 2. Call the AccountService
// 3. Answer with a rendered page, or a redirect plus a flash message
//
// Handlers hold no business rules. Every outcome the user can recover from
// (bad input, taken username, wrong password) becomes a 302 redirect with a
// flash; anything else is a 500 page.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/userbase/internal/auth"
	"github.com/sakif/userbase/internal/middleware"
	"github.com/sakif/userbase/internal/service"
)

// Page names; each is a templates/<name>.html file rendered inside base.html.
const (
	PageIndex    = "index"
	PageRegister = "register"
	PageLogin    = "login"
	PageProfile  = "profile"
	PageError    = "error"
)

// MsgServerError is the only thing a user sees when storage fails.
const MsgServerError = "Something went wrong."

// PageData is passed to every template. Username and Flash are filled in
// from the request context by Render.
type PageData struct {
	Title    string
	Username string
	Flash    *middleware.FlashMessage
	View     *service.ProfileView
}

// Renderer executes the page templates.
//
// TEMPLATE COMPOSITION:
// Every page file defines a "content" block and base.html calls
// {{template "content" .}}. Because all pages use the same block name, each
// page gets its own template set (base + page), parsed once at startup.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses base.html together with each page found in templates.
func NewRenderer(templates fs.FS, logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{
		pages:  make(map[string]*template.Template),
		logger: logger,
	}

	for _, page := range []string{PageIndex, PageRegister, PageLogin, PageProfile, PageError} {
		tmpl, err := template.ParseFS(templates, "base.html", page+".html")
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s page: %w", page, err)
		}
		r.pages[page] = tmpl
	}

	return r, nil
}

// Render writes page with the given status.
//
// The page is executed into a buffer first: if the template fails halfway
// nothing has been sent yet, and the client gets a clean 500 instead of a
// truncated 200.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, data PageData) {
	tmpl, ok := rd.pages[page]
	if !ok {
		rd.logger.ErrorContext(r.Context(), "unknown page", slog.String("page", page))
		http.Error(w, MsgServerError, http.StatusInternalServerError)
		return
	}

	if username, ok := auth.IdentityFromContext(r.Context()); ok {
		data.Username = username
	}
	data.Flash = middleware.GetFlash(r.Context())

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		rd.logger.ErrorContext(r.Context(), "failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, MsgServerError, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// ServerError logs err and renders the generic 500 page. Details stay in
// the log.
func (rd *Renderer) ServerError(w http.ResponseWriter, r *http.Request, err error) {
	rd.logger.ErrorContext(r.Context(), "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	rd.Render(w, r, http.StatusInternalServerError, PageError, PageData{Title: "Error"})
}

// redirectWithFlash sets a one-shot message and sends 302 Found to location.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message, location string) {
	middleware.SetFlash(w, kind, message)
	http.Redirect(w, r, location, http.StatusFound)
}
