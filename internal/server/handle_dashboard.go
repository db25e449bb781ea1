package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayangquest/questapi/internal/analytics"
)

// Summarizer produces dashboard summaries.
type Summarizer interface {
	Summary(ctx context.Context, rng analytics.Range, now time.Time) (analytics.Summary, error)
}

func handleDashboard(dash Summarizer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dash == nil {
			writeError(w, http.StatusServiceUnavailable, "analytics is not configured")
			return
		}
		rng, err := analytics.ParseRange(r.URL.Query().Get("range"))
		if errors.Is(err, analytics.ErrUnknownRange) {
			writeError(w, http.StatusBadRequest, "range must be one of 7D, 30D, 1Y")
			return
		}

		sum, err := dash.Summary(r.Context(), rng, time.Now())
		if err != nil {
			logger.Error("dashboard summary failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not load dashboard")
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}
