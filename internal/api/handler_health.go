package api

import (
	"net/http"

	"github.com/eddygk/dns-bench-sub000/internal/buildinfo"
)

// HandleHealth returns a handler for GET /health.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": buildinfo.Version,
		})
	}
}
