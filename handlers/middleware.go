// ringside/handlers/middleware.go
package handlers

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ringside/models"
	"ringside/utils"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	SessionKey   ContextKey = "session"
	CSRFTokenKey ContextKey = "csrfToken"
	AppKey       ContextKey = "app"
)

const SessionCookieName = "ringside_session"

// AppContextMiddleware injects the App dependency into the request context.
func AppContextMiddleware(app App, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), AppKey, app)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionMiddleware resolves the session cookie into a live session, if any,
// and stores it in the request context. Missing or expired sessions simply
// yield a nil session; handlers decide what that means.
func SessionMiddleware(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess *models.Session
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				sess, _ = app.Sessions().Get(cookie.Value)
			}
			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CSRFMiddleware protects against Cross-Site Request Forgery attacks using a
// double-submit cookie.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		csrfCookie, err := r.Cookie("csrf_token")
		var csrfToken string

		if err != nil || csrfCookie.Value == "" {
			csrfToken = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     "csrf_token",
				Value:    csrfToken,
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		} else {
			csrfToken = csrfCookie.Value
		}

		if r.Method == "POST" {
			// This check handles both multipart/form-data and application/x-www-form-urlencoded
			tokenFromForm := r.FormValue("csrf_token")
			if tokenFromForm == "" {
				// For AJAX requests that might not use form values directly
				tokenFromForm = r.Header.Get("X-CSRF-Token")
			}

			if subtle.ConstantTimeCompare([]byte(tokenFromForm), []byte(csrfToken)) != 1 {
				http.Error(w, "Invalid CSRF token", http.StatusForbidden)
				return
			}
		}

		ctx := context.WithValue(r.Context(), CSRFTokenKey, csrfToken)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NewSecurityHeadersMiddleware sets the usual browser hardening headers. The
// media origin is added to the image sources when uploads are served from S3.
func NewSecurityHeadersMiddleware(mediaOrigin string) func(http.Handler) http.Handler {
	imgSrc := "'self' data:"
	if mediaOrigin != "" {
		imgSrc += " " + mediaOrigin
	}
	csp := fmt.Sprintf("default-src 'self'; img-src %s; frame-src https://www.youtube.com https://player.vimeo.com https://tv.naver.com", imgSrc)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", csp)
			next.ServeHTTP(w, r)
		})
	}
}

// NewStructuredLogger logs each request through slog with chi's request ID.
func NewStructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"ip", utils.GetIPAddress(r),
			)
		})
	}
}

// GetSession returns the request's session, which may be nil.
func GetSession(r *http.Request) *models.Session {
	sess, _ := r.Context().Value(SessionKey).(*models.Session)
	return sess
}

// RequireLogin rejects requests without an authenticated session.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetSession(r).LoggedIn() {
			http.Error(w, "Login required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests from non-admin sessions.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r)
		if !sess.LoggedIn() || !sess.IsAdmin {
			http.Error(w, "Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
