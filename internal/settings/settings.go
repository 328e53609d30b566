// Package settings persists the operator's configuration as four JSON
// documents: local resolvers, public resolvers, the test profile, and the
// network-access policy. Each document is rewritten atomically (write to a
// temp file, then rename) and mutations are serialized per document.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sync"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

const (
	localResolversFile  = "local_resolvers.json"
	publicResolversFile = "public_resolvers.json"
	testProfileFile     = "test_profile.json"
	networkPolicyFile   = "network_policy.json"

	maxLocalResolvers  = 10
	maxPublicResolvers = 20
)

// LocalResolvers is the operator's LAN resolver list.
type LocalResolvers struct {
	Servers []LocalServer `json:"servers"`
}

// LocalServer is one LAN resolver entry.
type LocalServer struct {
	Address string `json:"address"`
	Enabled bool   `json:"enabled"`
}

// PublicResolvers is the public resolver list: the fixed built-ins plus any
// operator-added custom entries.
type PublicResolvers struct {
	Servers []model.Resolver `json:"servers"`
}

// NetworkPolicy decides which request origins the surface accepts.
type NetworkPolicy struct {
	AllowIPAccess       bool     `json:"allow_ip_access"`
	AllowHostnameAccess bool     `json:"allow_hostname_access"`
	CustomOrigins       []string `json:"custom_origins"`
}

// Store loads and persists the configuration documents under one directory.
type Store struct {
	dir string

	localMu   sync.Mutex
	publicMu  sync.Mutex
	profileMu sync.Mutex
	policyMu  sync.Mutex
}

// NewStore opens (creating if needed) the settings directory and seeds any
// missing document with its defaults.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir %s: %w", dir, err)
	}
	s := &Store{dir: dir}

	if _, err := s.LocalResolvers(); err != nil {
		return nil, err
	}
	if _, err := s.PublicResolvers(); err != nil {
		return nil, err
	}
	if _, err := s.TestProfile(); err != nil {
		return nil, err
	}
	if _, err := s.NetworkPolicy(); err != nil {
		return nil, err
	}
	return s, nil
}

// --- document plumbing ---

// readDoc loads a document, rejecting unknown fields. Missing files load the
// provided default and persist it so the on-disk state is complete.
func readDoc[T any](s *Store, name string, def T, out *T) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		*out = def
		return writeDoc(s, name, def)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// writeDoc atomically replaces a document: temp file in the same directory,
// fsync, rename. Readers never observe a partial document.
func writeDoc[T any](s *Store, name string, doc T) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, name+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op if already renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// --- local resolvers ---

// LocalResolvers returns the persisted LAN resolver document.
func (s *Store) LocalResolvers() (LocalResolvers, error) {
	s.localMu.Lock()
	defer s.localMu.Unlock()
	var doc LocalResolvers
	err := readDoc(s, localResolversFile, LocalResolvers{Servers: []LocalServer{}}, &doc)
	return doc, err
}

// SetLocalResolvers validates and replaces the LAN resolver document.
func (s *Store) SetLocalResolvers(doc LocalResolvers) error {
	if err := ValidateLocalResolvers(doc); err != nil {
		return err
	}
	s.localMu.Lock()
	defer s.localMu.Unlock()
	return writeDoc(s, localResolversFile, doc)
}

// ValidateLocalResolvers enforces the document invariants: at most ten
// entries, and every enabled entry carries a valid IP literal.
func ValidateLocalResolvers(doc LocalResolvers) error {
	if len(doc.Servers) > maxLocalResolvers {
		return fmt.Errorf("local resolvers: at most %d entries, got %d", maxLocalResolvers, len(doc.Servers))
	}
	for i, srv := range doc.Servers {
		if !srv.Enabled {
			continue
		}
		if _, err := netip.ParseAddr(srv.Address); err != nil {
			return fmt.Errorf("local resolvers: entry %d: invalid address %q", i, srv.Address)
		}
	}
	return nil
}

// --- public resolvers ---

// PublicResolvers returns the persisted public resolver document with the
// built-in entries guaranteed present.
func (s *Store) PublicResolvers() (PublicResolvers, error) {
	s.publicMu.Lock()
	defer s.publicMu.Unlock()
	var doc PublicResolvers
	if err := readDoc(s, publicResolversFile, DefaultPublicResolvers(), &doc); err != nil {
		return doc, err
	}
	doc.Servers = ensureBuiltins(doc.Servers)
	return doc, nil
}

// SetPublicResolvers validates and replaces the public resolver document.
// Built-in entries may be toggled or renamed but never removed; missing
// built-ins are restored with their defaults.
func (s *Store) SetPublicResolvers(doc PublicResolvers) error {
	doc.Servers = ensureBuiltins(doc.Servers)
	if err := ValidatePublicResolvers(doc); err != nil {
		return err
	}
	s.publicMu.Lock()
	defer s.publicMu.Unlock()
	return writeDoc(s, publicResolversFile, doc)
}

// ValidatePublicResolvers enforces the document invariants.
func ValidatePublicResolvers(doc PublicResolvers) error {
	if len(doc.Servers) > maxPublicResolvers {
		return fmt.Errorf("public resolvers: at most %d entries, got %d", maxPublicResolvers, len(doc.Servers))
	}
	for i, srv := range doc.Servers {
		if !srv.ValidAddress() {
			return fmt.Errorf("public resolvers: entry %d: invalid address %q", i, srv.Address)
		}
		switch srv.Origin {
		case model.OriginBuiltInPublic, model.OriginCustomPublic:
		default:
			return fmt.Errorf("public resolvers: entry %d: invalid origin %q", i, srv.Origin)
		}
	}
	return nil
}

// --- test profile ---

// TestProfile returns the persisted test profile.
func (s *Store) TestProfile() (model.TestProfile, error) {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	var doc model.TestProfile
	err := readDoc(s, testProfileFile, DefaultTestProfile(), &doc)
	return doc, err
}

// SetTestProfile validates and replaces the test profile.
func (s *Store) SetTestProfile(doc model.TestProfile) error {
	if err := ValidateTestProfile(doc); err != nil {
		return err
	}
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	return writeDoc(s, testProfileFile, doc)
}

// ValidateTestProfile enforces the profile's range invariants.
func ValidateTestProfile(p model.TestProfile) error {
	checks := []struct {
		name     string
		value    int
		min, max int
	}{
		{"domain_counts.quick", p.DomainCounts.Quick, 5, 50},
		{"domain_counts.full", p.DomainCounts.Full, 10, 200},
		{"domain_counts.custom", p.DomainCounts.Custom, 1, 500},
		{"performance.max_concurrent_servers", p.Performance.MaxConcurrentServers, 1, 10},
		{"performance.query_timeout_ms", p.Performance.QueryTimeoutMs, 1000, 10000},
		{"performance.max_retries", p.Performance.MaxRetries, 0, 5},
		{"performance.inter_query_delay_ms", p.Performance.InterQueryDelayMs, 0, 1000},
		{"analysis.min_reliability_pct", p.Analysis.MinReliabilityPct, 50, 100},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return fmt.Errorf("test profile: %s must be %d-%d, got %d", c.name, c.min, c.max, c.value)
		}
	}
	return nil
}

// --- network policy ---

// NetworkPolicy returns the persisted network-access policy.
func (s *Store) NetworkPolicy() (NetworkPolicy, error) {
	s.policyMu.Lock()
	defer s.policyMu.Unlock()
	var doc NetworkPolicy
	err := readDoc(s, networkPolicyFile, DefaultNetworkPolicy(), &doc)
	return doc, err
}

// SetNetworkPolicy replaces the network-access policy.
func (s *Store) SetNetworkPolicy(doc NetworkPolicy) error {
	if doc.CustomOrigins == nil {
		doc.CustomOrigins = []string{}
	}
	s.policyMu.Lock()
	defer s.policyMu.Unlock()
	return writeDoc(s, networkPolicyFile, doc)
}
