package settings

import (
	"fmt"

	"github.com/eddygk/dns-bench-sub000/internal/model"
)

// SelectResolvers resolves the default resolver set for a run kind from the
// persisted documents: quick uses all enabled local resolvers plus the first
// three enabled public resolvers in persisted order; full uses all enabled
// local and public resolvers. Loopback addresses never enter a benchmark run.
// Custom runs supply their list explicitly and never reach this path.
func (s *Store) SelectResolvers(kind model.RunKind) ([]model.Resolver, error) {
	if kind == model.RunCustom {
		return nil, fmt.Errorf("custom runs require an explicit resolver list")
	}

	local, err := s.LocalResolvers()
	if err != nil {
		return nil, err
	}
	public, err := s.PublicResolvers()
	if err != nil {
		return nil, err
	}

	var selected []model.Resolver
	for i, srv := range local.Servers {
		if !srv.Enabled {
			continue
		}
		r := model.Resolver{
			ID:          fmt.Sprintf("local-%d", i+1),
			Address:     srv.Address,
			DisplayName: srv.Address,
			Origin:      model.OriginLocal,
			Enabled:     true,
		}
		if r.ValidAddress() && !r.IsLoopback() {
			selected = append(selected, r)
		}
	}

	publicLimit := len(public.Servers)
	if kind == model.RunQuick {
		publicLimit = 3
	}
	taken := 0
	for _, srv := range public.Servers {
		if taken >= publicLimit {
			break
		}
		if !srv.Enabled || !srv.ValidAddress() || srv.IsLoopback() {
			continue
		}
		selected = append(selected, srv)
		taken++
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("no enabled resolvers available for %s run", kind)
	}
	return selected, nil
}
