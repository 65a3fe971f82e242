// Vendor spawning: builds the roster from profiles, names anonymous
// vendors and spreads them across the drop zones.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/stadium-wave/internal/grid"
)

// Spawner creates vendors for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID VendorID
	taken  map[string]bool
}

// NewSpawner creates a vendor spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
		taken:  make(map[string]bool),
	}
}

// Spawn creates one vendor at a cell and announces it.
func (s *Spawner) Spawn(p Profile, at grid.Coord, deps Deps) *Vendor {
	id := s.nextID
	s.nextID++

	if p.Name == "" {
		p.Name = s.generateName(p.Type)
	}
	s.taken[p.Name] = true
	if p.ID == "" {
		p.ID = fmt.Sprintf("vendor-%d", id)
	}
	if p.Type == "" {
		p.Type = vendorTypes[s.rng.Intn(len(vendorTypes))]
	}

	v := NewVendor(id, p, at, deps)
	v.logger.Info("vendor spawned",
		"vendor", p.Name,
		"id", id,
		"type", p.Type,
		"quality", p.Quality,
		"cell", at,
	)
	v.emit(EventSpawned, -1, 0)
	return v
}

// SpawnRoster spawns every profile, placing them round-robin on the given
// cells. With no cells every vendor starts at the grid origin cell.
func (s *Spawner) SpawnRoster(profiles []Profile, at []grid.Coord, deps Deps) []*Vendor {
	vendors := make([]*Vendor, 0, len(profiles))
	for i, p := range profiles {
		var c grid.Coord
		if len(at) > 0 {
			c = at[i%len(at)]
		}
		vendors = append(vendors, s.Spawn(p, c, deps))
	}
	return vendors
}

// generateName picks an unused "First Surname" pairing, falling back to a
// numbered name once the lists run dry.
func (s *Spawner) generateName(vendorType string) string {
	for i := 0; i < 16; i++ {
		name := firstNames[s.rng.Intn(len(firstNames))] + " " + nicknames[s.rng.Intn(len(nicknames))]
		if !s.taken[name] {
			return name
		}
	}
	if vendorType == "" {
		vendorType = "vendor"
	}
	return fmt.Sprintf("%s #%d", vendorType, s.nextID-1)
}

var vendorTypes = []string{"hotdog", "drinks", "snacks", "popcorn"}

var firstNames = []string{
	"Sal", "Dot", "Gus", "Marge", "Lenny", "Bev", "Moe", "Trudy",
	"Hank", "Rosa", "Chet", "Nell", "Ike", "Fran", "Ozzie", "Lou",
}

var nicknames = []string{
	"the Hustler", "Quickstep", "Two-Trays", "Loudmouth", "Bigcooler",
	"Sprinkles", "Sidearm", "the Flash", "Nachos", "Buttons",
}
