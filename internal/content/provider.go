// Package content supplies vendor profiles and their flavor lines.
package content

import (
	"sync"

	"github.com/talgya/stadium-wave/internal/agents"
	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/entropy"
)

// Moments a vendor can say something about.
const (
	MomentAssigned = "assigned"
	MomentServe    = "serve"
	MomentSplat    = "splat"
	MomentDropoff  = "dropoff"
)

// Provider is the source of vendor rosters and dialogue.
type Provider interface {
	Profiles() []agents.Profile
	Line(vendorType, moment string) string
}

// Static serves the roster from configuration. It never touches the network.
type Static struct {
	mu       sync.Mutex
	profiles []agents.Profile
	lines    map[string]map[string][]string // type -> moment -> variants
	rng      entropy.Source
}

// NewStatic builds a provider from roster entries. Lines from vendors of the
// same type are pooled.
func NewStatic(specs []config.VendorSpec, rng entropy.Source) *Static {
	if rng == nil {
		rng = entropy.Crypto{}
	}
	s := &Static{
		lines: make(map[string]map[string][]string),
		rng:   rng,
	}
	for _, spec := range specs {
		s.profiles = append(s.profiles, agents.ProfileFrom(spec))
		if len(spec.Lines) == 0 {
			continue
		}
		byMoment, ok := s.lines[spec.Type]
		if !ok {
			byMoment = make(map[string][]string)
			s.lines[spec.Type] = byMoment
		}
		for moment, variants := range spec.Lines {
			byMoment[moment] = append(byMoment[moment], variants...)
		}
	}
	return s
}

// Profiles returns a copy of the roster.
func (s *Static) Profiles() []agents.Profile {
	return append([]agents.Profile(nil), s.profiles...)
}

// Line picks a variant for the moment, or "" when the type has none.
func (s *Static) Line(vendorType, moment string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	variants := s.lines[vendorType][moment]
	switch len(variants) {
	case 0:
		return ""
	case 1:
		return variants[0]
	}
	return variants[s.rng.Intn(len(variants))]
}

var _ Provider = (*Static)(nil)
