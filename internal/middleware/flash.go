package middleware

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// Flash message kinds understood by the templates.
const (
	FlashInfo    = "info"
	FlashSuccess = "success"
	FlashError   = "error"
)

const flashCookieName = "flash"

type contextKey string

const flashContextKey contextKey = "flash"

// FlashMessage is a one-shot notice shown on the page after a redirect.
type FlashMessage struct {
	Type    string
	Message string
}

// SetFlash stores a message to be displayed on the next request. Call it
// before http.Redirect: the cookie has to go out with the redirect response.
//
// The value is base64url encoded so punctuation and non-ASCII text survive
// the cookie value grammar.
func SetFlash(w http.ResponseWriter, kind, message string) {
	value := base64.RawURLEncoding.EncodeToString([]byte(kind + ":" + message))
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetFlash returns the flash message consumed for this request, or nil.
func GetFlash(ctx context.Context) *FlashMessage {
	flash, _ := ctx.Value(flashContextKey).(*FlashMessage)
	return flash
}

// Flash returns middleware that reads the flash cookie, clears it, and puts
// the message in the request context for the handler to render.
func Flash() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var flash *FlashMessage

			cookie, err := r.Cookie(flashCookieName)
			if err == nil && cookie.Value != "" {
				flash = parseFlash(cookie.Value)

				http.SetCookie(w, &http.Cookie{
					Name:     flashCookieName,
					Value:    "",
					Path:     "/",
					MaxAge:   -1,
					Expires:  time.Unix(0, 0),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), flashContextKey, flash)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseFlash decodes a cookie value written by SetFlash. Undecodable values
// are dropped; a value without a kind is treated as FlashInfo.
func parseFlash(value string) *FlashMessage {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}

	kind, message, ok := strings.Cut(string(raw), ":")
	if !ok {
		return &FlashMessage{Type: FlashInfo, Message: kind}
	}
	if message == "" {
		return nil
	}
	return &FlashMessage{Type: kind, Message: message}
}
