package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

type ctxKey int

const ctxKeyAdmin ctxKey = iota

// adminAuthMiddleware admits requests carrying a live admin_session cookie.
// An expired or unknown session clears the cookie so the dashboard drops
// back to its login form.
func adminAuthMiddleware(admin AdminStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(adminCookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			sess, err := admin.AdminFromSession(r.Context(), cookie.Value)
			if errors.Is(err, errNoAdminSession) {
				clearAdminCookie(w)
				writeError(w, http.StatusUnauthorized, "session expired")
				return
			}
			if err != nil {
				logger.Error("admin session lookup failed", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyAdmin, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func adminFrom(r *http.Request) adminSession {
	return r.Context().Value(ctxKeyAdmin).(adminSession)
}
