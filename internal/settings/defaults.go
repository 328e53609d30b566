package settings

import "github.com/eddygk/dns-bench-sub000/internal/model"

// Built-in public resolver IDs. Fixed so toggles and renames survive
// document rewrites; custom entries get a uuid instead.
const (
	BuiltinCloudflarePrimary   = "builtin-cloudflare-1"
	BuiltinCloudflareSecondary = "builtin-cloudflare-2"
	BuiltinGooglePrimary       = "builtin-google-1"
	BuiltinGoogleSecondary     = "builtin-google-2"
	BuiltinQuad9Primary        = "builtin-quad9-1"
	BuiltinQuad9Secondary      = "builtin-quad9-2"
	BuiltinOpenDNSPrimary      = "builtin-opendns-1"
	BuiltinOpenDNSSecondary    = "builtin-opendns-2"
	BuiltinLevel3Primary       = "builtin-level3-1"
	BuiltinLevel3Secondary     = "builtin-level3-2"
)

func builtin(id, address, name, provider string, enabled, primary bool) model.Resolver {
	return model.Resolver{
		ID:            id,
		Address:       address,
		DisplayName:   name,
		ProviderLabel: provider,
		Origin:        model.OriginBuiltInPublic,
		Enabled:       enabled,
		IsPrimary:     primary,
	}
}

// builtinResolvers returns the fixed built-in list in its canonical order.
// Cloudflare, Google, and Quad9 are enabled by default; OpenDNS and Level3
// are present but disabled.
func builtinResolvers() []model.Resolver {
	return []model.Resolver{
		builtin(BuiltinCloudflarePrimary, "1.1.1.1", "Cloudflare", "Cloudflare", true, true),
		builtin(BuiltinCloudflareSecondary, "1.0.0.1", "Cloudflare Secondary", "Cloudflare", true, false),
		builtin(BuiltinGooglePrimary, "8.8.8.8", "Google", "Google", true, true),
		builtin(BuiltinGoogleSecondary, "8.8.4.4", "Google Secondary", "Google", true, false),
		builtin(BuiltinQuad9Primary, "9.9.9.9", "Quad9", "Quad9", true, true),
		builtin(BuiltinQuad9Secondary, "149.112.112.112", "Quad9 Secondary", "Quad9", true, false),
		builtin(BuiltinOpenDNSPrimary, "208.67.222.222", "OpenDNS", "OpenDNS", false, true),
		builtin(BuiltinOpenDNSSecondary, "208.67.220.220", "OpenDNS Secondary", "OpenDNS", false, false),
		builtin(BuiltinLevel3Primary, "4.2.2.1", "Level3", "Level3", false, true),
		builtin(BuiltinLevel3Secondary, "4.2.2.2", "Level3 Secondary", "Level3", false, false),
	}
}

// DefaultPublicResolvers is the public resolver document seeded on first run.
func DefaultPublicResolvers() PublicResolvers {
	return PublicResolvers{Servers: builtinResolvers()}
}

// ensureBuiltins restores any built-in entry missing from the submitted list.
// Operator edits to display name and enablement of present built-ins are
// preserved; deletions are not.
func ensureBuiltins(servers []model.Resolver) []model.Resolver {
	present := make(map[string]bool, len(servers))
	for _, srv := range servers {
		if srv.Origin == model.OriginBuiltInPublic {
			present[srv.ID] = true
		}
	}
	for _, b := range builtinResolvers() {
		if !present[b.ID] {
			servers = append(servers, b)
		}
	}
	return servers
}

// DefaultTestProfile is the test profile seeded on first run.
func DefaultTestProfile() model.TestProfile {
	return model.TestProfile{
		DomainCounts: model.DomainCounts{Quick: 10, Full: 50, Custom: 100},
		QueryTypes:   model.QueryTypes{Cached: true, Uncached: true, Dotcom: true},
		Performance: model.Performance{
			MaxConcurrentServers: 3,
			QueryTimeoutMs:       5000,
			MaxRetries:           1,
			InterQueryDelayMs:    50,
		},
		Analysis: model.Analysis{
			DetectNXDomainRedirection: true,
			DetectMalwareBlocking:     false,
			TestDNSSEC:                false,
			MinReliabilityPct:         90,
		},
	}
}

// DefaultNetworkPolicy is the network policy seeded on first run. HostIP (if
// provided via environment) is added by the caller as a custom origin seed.
func DefaultNetworkPolicy() NetworkPolicy {
	return NetworkPolicy{
		AllowIPAccess:       false,
		AllowHostnameAccess: true,
		CustomOrigins:       []string{},
	}
}
