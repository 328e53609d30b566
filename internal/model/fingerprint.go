package model

import (
	"encoding/json"
	"fmt"

	"github.com/zeebo/xxh3"
)

// SnapshotFingerprint computes a stable hash over a run's resolver addresses,
// domain list, and profile. Runs sharing a fingerprint probed the same matrix
// under the same parameters and are directly comparable in history views.
func SnapshotFingerprint(resolvers []Resolver, domains []string, profile TestProfile) string {
	type canon struct {
		Addresses []string    `json:"addresses"`
		Domains   []string    `json:"domains"`
		Profile   TestProfile `json:"profile"`
	}
	addrs := make([]string, 0, len(resolvers))
	for _, r := range resolvers {
		addrs = append(addrs, r.Address)
	}
	raw, err := json.Marshal(canon{Addresses: addrs, Domains: domains, Profile: profile})
	if err != nil {
		// Marshal of plain structs cannot fail; keep a stable sentinel anyway.
		return "0000000000000000"
	}
	return fmt.Sprintf("%016x", xxh3.Hash(raw))
}
