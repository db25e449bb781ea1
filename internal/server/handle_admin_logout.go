package server

import (
	"log/slog"
	"net/http"
)

func handleAdminLogout(admin AdminStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(adminCookieName)
		if err == nil && cookie.Value != "" {
			if err := admin.DeleteAdminSession(r.Context(), cookie.Value); err != nil {
				logger.Warn("deleting admin session failed", "error", err)
			}
		}
		clearAdminCookie(w)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
