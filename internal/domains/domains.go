// Package domains ships the built-in probe-target lists for quick and full
// runs. The lists are embedded YAML; custom runs supply domains per request.
package domains

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

//go:embed profiles.yaml
var profilesYAML []byte

type profileDoc struct {
	Quick []string `yaml:"quick"`
	Full  []string `yaml:"full"`
}

var profiles = mustLoadProfiles()

func mustLoadProfiles() profileDoc {
	var doc profileDoc
	if err := yaml.Unmarshal(profilesYAML, &doc); err != nil {
		panic("domains: parse embedded profiles: " + err.Error())
	}
	if len(doc.Quick) == 0 || len(doc.Full) == 0 {
		panic("domains: embedded profiles incomplete")
	}
	return doc
}

// ForKind returns the built-in domain list for a quick or full run, clamped
// to count entries (list order preserved). Custom runs have no built-in list.
func ForKind(kind model.RunKind, count int) ([]string, error) {
	var list []string
	switch kind {
	case model.RunQuick:
		list = profiles.Quick
	case model.RunFull:
		list = profiles.Full
	default:
		return nil, fmt.Errorf("no built-in domain list for %s runs", kind)
	}
	if count <= 0 || count > len(list) {
		count = len(list)
	}
	out := make([]string, count)
	copy(out, list[:count])
	return out, nil
}

// Normalize case-folds a domain for equality checks. The engine otherwise
// treats domains as opaque strings.
func Normalize(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// ValidateList checks a custom domain list against the cardinality bound and
// rejects empty entries.
func ValidateList(list []string, maxCount int) error {
	if len(list) == 0 {
		return fmt.Errorf("domain list must not be empty")
	}
	if len(list) > maxCount {
		return fmt.Errorf("domain list: at most %d entries, got %d", maxCount, len(list))
	}
	for i, d := range list {
		if Normalize(d) == "" {
			return fmt.Errorf("domain list: entry %d is empty", i)
		}
	}
	return nil
}
