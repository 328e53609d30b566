// Package hostdns reads the host's default resolvers as a best-effort hint
// for the settings UI. The engine never uses these servers implicitly.
package hostdns

import (
	"fmt"

	"github.com/miekg/dns"
)

// DefaultConfigPath is the conventional resolver configuration file.
const DefaultConfigPath = "/etc/resolv.conf"

// CurrentServers returns the nameserver addresses from the host resolver
// configuration at path. A missing or malformed file is not an error for the
// caller's purposes; it simply yields an empty hint.
func CurrentServers(path string) ([]string, error) {
	cfg, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resolver config %s: %w", path, err)
	}
	return cfg.Servers, nil
}
