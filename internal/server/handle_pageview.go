package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/ayangquest/questapi/internal/analytics"
)

type PageViewRequest struct {
	URL string `json:"url"`
}

// handlePageView records a visitor log. Recording never blocks the response
// and failures are not reported to the client.
func handlePageView(sink analytics.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PageViewRequest
		if err := readJSON(w, r, &req); err != nil || strings.TrimSpace(req.URL) == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		sink.Record(analytics.PageView(req.URL, r.UserAgent(), clientIP(r)))
		w.WriteHeader(http.StatusAccepted)
	}
}

// clientIP strips the port from RemoteAddr, which middleware.RealIP has
// already replaced with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
