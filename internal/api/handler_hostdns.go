package api

import (
	"net/http"

	"github.com/eddygk/dns-bench-sub000/internal/hostdns"
)

// HandleCurrentDNS returns a handler for GET /dns/current: a best-effort hint
// of the host's default resolvers. Failures yield an empty list, not an error.
func HandleCurrentDNS(configPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		servers, err := hostdns.CurrentServers(configPath)
		if err != nil || servers == nil {
			servers = []string{}
		}
		WriteJSON(w, http.StatusOK, map[string][]string{"servers": servers})
	}
}
