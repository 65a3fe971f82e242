package grid

// ChangeKind says which property of a cell was edited.
type ChangeKind uint8

const (
	ChangePassable ChangeKind = iota
	ChangeTerrain
	ChangeHeight
	ChangeWall
	ChangeZone
)

func (k ChangeKind) String() string {
	switch k {
	case ChangePassable:
		return "passable"
	case ChangeTerrain:
		return "terrain"
	case ChangeHeight:
		return "height"
	case ChangeWall:
		return "wall"
	case ChangeZone:
		return "zone"
	}
	return "unknown"
}

// Change is delivered to listeners after a cell edit.
type Change struct {
	Coord Coord
	Kind  ChangeKind
}

// Listener receives change notifications.
type Listener func(Change)

// Subscribe registers a listener and returns a func that removes it.
func (g *Grid) Subscribe(l Listener) (unsubscribe func()) {
	id := g.nextSub
	g.nextSub++
	g.listeners[id] = l
	return func() { delete(g.listeners, id) }
}

func (g *Grid) notify(c Change) {
	for _, l := range g.listeners {
		l(c)
	}
}

// SetPassable toggles passability. Returns false for out-of-bounds cells.
func (g *Grid) SetPassable(row, col int, passable bool) bool {
	c := g.cell(row, col)
	if c == nil {
		return false
	}
	if c.Passable != passable {
		c.Passable = passable
		g.notify(Change{Coord: Coord{Row: row, Col: col}, Kind: ChangePassable})
	}
	return true
}

// SetTerrainPenalty sets the extra step cost onto a cell. Negative values
// are stored as 0.
func (g *Grid) SetTerrainPenalty(row, col int, penalty float64) bool {
	c := g.cell(row, col)
	if c == nil {
		return false
	}
	if penalty < 0 {
		penalty = 0
	}
	if c.TerrainPenalty != penalty {
		c.TerrainPenalty = penalty
		g.notify(Change{Coord: Coord{Row: row, Col: col}, Kind: ChangeTerrain})
	}
	return true
}

// SetHeight sets the tier height of a cell.
func (g *Grid) SetHeight(row, col, level int) bool {
	c := g.cell(row, col)
	if c == nil {
		return false
	}
	if c.HeightLevel != level {
		c.HeightLevel = level
		g.notify(Change{Coord: Coord{Row: row, Col: col}, Kind: ChangeHeight})
	}
	return true
}

// SetZone retags a cell.
func (g *Grid) SetZone(row, col int, zone ZoneType) bool {
	c := g.cell(row, col)
	if c == nil {
		return false
	}
	if c.Zone != zone {
		c.Zone = zone
		g.notify(Change{Coord: Coord{Row: row, Col: col}, Kind: ChangeZone})
	}
	return true
}

// SetWall sets or clears the wall on edge dir of (row, col) and the
// opposite edge of the neighbor across it, keeping both sides in agreement.
// Walls on the outer boundary only touch the one cell.
func (g *Grid) SetWall(row, col int, dir Direction, present bool) bool {
	a := g.cell(row, col)
	if a == nil {
		return false
	}
	changed := a.Walls[dir] != present
	a.Walls[dir] = present

	dr, dc := dir.Delta()
	if b := g.cell(row+dr, col+dc); b != nil {
		if b.Walls[dir.Opposite()] != present {
			changed = true
		}
		b.Walls[dir.Opposite()] = present
		if changed {
			g.notify(Change{Coord: Coord{Row: b.Row, Col: b.Col}, Kind: ChangeWall})
		}
	}
	if changed {
		g.notify(Change{Coord: Coord{Row: row, Col: col}, Kind: ChangeWall})
	}
	return true
}

// HasWall reports the wall flag stored on one edge of a cell.
func (g *Grid) HasWall(row, col int, dir Direction) bool {
	c := g.cell(row, col)
	return c != nil && c.Walls[dir]
}

// AddOccupant records ref in a cell.
func (g *Grid) AddOccupant(row, col int, ref OccupantRef) bool {
	c := g.cell(row, col)
	if c == nil {
		return false
	}
	c.occupants.Put(ref)
	return true
}

// RemoveOccupant drops ref from a cell. Removing an absent ref is a no-op.
func (g *Grid) RemoveOccupant(row, col int, ref OccupantRef) {
	if c := g.cell(row, col); c != nil {
		c.occupants.Remove(ref)
	}
}

// MoveOccupant moves ref between cells. The destination must be in bounds.
func (g *Grid) MoveOccupant(from, to Coord, ref OccupantRef) bool {
	dst := g.cell(to.Row, to.Col)
	if dst == nil {
		return false
	}
	g.RemoveOccupant(from.Row, from.Col, ref)
	dst.occupants.Put(ref)
	return true
}

// Occupants lists what is in a cell.
func (g *Grid) Occupants(row, col int) []OccupantRef {
	c := g.cell(row, col)
	if c == nil || c.occupants.Size() == 0 {
		return nil
	}
	out := make([]OccupantRef, 0, c.occupants.Size())
	c.occupants.Each(func(ref OccupantRef) {
		out = append(out, ref)
	})
	return out
}

// HasOccupant reports whether ref is in a cell.
func (g *Grid) HasOccupant(row, col int, ref OccupantRef) bool {
	c := g.cell(row, col)
	return c != nil && c.occupants.Has(ref)
}
