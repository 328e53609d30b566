package api

import (
	"log"
	"net/http"
)

// HandleAdminShutdown returns a handler for POST /admin/shutdown. It
// acknowledges the request, then signals the process to stop; main exits
// with code 2 for an administrative shutdown.
func HandleAdminShutdown(requestShutdown func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[api] administrative shutdown requested by %s", r.RemoteAddr)
		WriteJSON(w, http.StatusOK, map[string]string{"status": "shutting_down"})
		requestShutdown()
	}
}
