// Package systems provides the simulation's ECS systems: the animal store,
// regions and the region manager, and the species behaviour.
package systems

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/ecosys/components"
)

// ErrRegionInUse is returned when a region placed on the grid already
// belongs to another cell or has members of its own.
var ErrRegionInUse = errors.New("region already in use")

// Cell addresses one region of the grid.
type Cell struct {
	Row, Col int
}

// RegionManager owns the region grid and the authoritative mapping from
// animal to the cell it occupies.
type RegionManager struct {
	store *Store

	cols, rows    int
	width, height float64
	cellW, cellH  float64

	grid    [][]Region // [row][col]
	cellOf  map[ecs.Entity]Cell
	tracked []ecs.Entity // registration order
}

// NewRegionManager creates a manager covering width x height with a
// rows x cols grid, every cell filled by fill.
// Cell sizes are truncated; the last row and column absorb any remainder.
func NewRegionManager(cols, rows, width, height int, store *Store, fill func() Region) (*RegionManager, error) {
	if cols <= 0 || rows <= 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid map dimensions: %d cols x %d rows, %dx%d", cols, rows, width, height)
	}
	m := &RegionManager{
		store:  store,
		cols:   cols,
		rows:   rows,
		width:  float64(width),
		height: float64(height),
		cellW:  float64(max(1, width/cols)),
		cellH:  float64(max(1, height/rows)),
		grid:   make([][]Region, rows),
		cellOf: make(map[ecs.Entity]Cell),
	}
	for row := range m.grid {
		m.grid[row] = make([]Region, cols)
		for col := range m.grid[row] {
			m.grid[row][col] = fill()
		}
	}
	return m, nil
}

func (m *RegionManager) Cols() int                  { return m.cols }
func (m *RegionManager) Rows() int                  { return m.rows }
func (m *RegionManager) Width() float64             { return m.width }
func (m *RegionManager) Height() float64            { return m.height }
func (m *RegionManager) CellWidth() float64         { return m.cellW }
func (m *RegionManager) CellHeight() float64        { return m.cellH }
func (m *RegionManager) Region(row, col int) Region { return m.grid[row][col] }

// Tracked returns every registered animal in registration order.
// The slice must not be modified.
func (m *RegionManager) Tracked() []ecs.Entity {
	return m.tracked
}

// IsTracked reports whether e is registered.
func (m *RegionManager) IsTracked(e ecs.Entity) bool {
	_, ok := m.cellOf[e]
	return ok
}

// CellOf returns the cell e is mapped to.
func (m *RegionManager) CellOf(e ecs.Entity) (Cell, bool) {
	c, ok := m.cellOf[e]
	return c, ok
}

// RegionAt returns the cell containing pos, clamped to the grid.
func (m *RegionManager) RegionAt(pos r2.Vec) Cell {
	col := int(pos.X / m.cellW)
	row := int(pos.Y / m.cellH)

	if col < 0 {
		col = 0
	} else if col >= m.cols {
		col = m.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= m.rows {
		row = m.rows - 1
	}
	return Cell{Row: row, Col: col}
}

// InBounds reports whether pos lies inside the map.
func (m *RegionManager) InBounds(pos r2.Vec) bool {
	return pos.X >= 0 && pos.X < m.width && pos.Y >= 0 && pos.Y < m.height
}

// Wrap maps pos into the map by whole multiples of its size.
func (m *RegionManager) Wrap(pos r2.Vec) r2.Vec {
	return r2.Vec{X: wrap(pos.X, m.width), Y: wrap(pos.Y, m.height)}
}

// RandomPos returns a uniform random point inside the map.
func (m *RegionManager) RandomPos(rng *rand.Rand) r2.Vec {
	return r2.Vec{X: rng.Float64() * m.width, Y: rng.Float64() * m.height}
}

// Register places e on the map and starts tracking it. An unplaced animal
// gets a random position; every animal gets a random destination.
func (m *RegionManager) Register(e ecs.Entity, rng *rand.Rand) {
	if m.IsTracked(e) {
		return
	}
	body := m.store.Body(e)
	if !body.Placed {
		body.Pos = m.RandomPos(rng)
		body.Placed = true
	}
	body.Pos = m.Wrap(body.Pos)
	body.Dest = m.RandomPos(rng)

	c := m.RegionAt(body.Pos)
	m.grid[c.Row][c.Col].members().add(e, m.store.Identity(e).Diet)
	m.cellOf[e] = c
	m.tracked = append(m.tracked, e)
}

// Unregister stops tracking e.
func (m *RegionManager) Unregister(e ecs.Entity) {
	c, ok := m.cellOf[e]
	if !ok {
		return
	}
	m.grid[c.Row][c.Col].members().remove(e, m.store.Identity(e).Diet)
	delete(m.cellOf, e)
	if i := slices.Index(m.tracked, e); i >= 0 {
		m.tracked = slices.Delete(m.tracked, i, i+1)
	}
}

// Reconcile moves e to the region its current position maps to.
func (m *RegionManager) Reconcile(e ecs.Entity) {
	last, ok := m.cellOf[e]
	if !ok {
		return
	}
	cur := m.RegionAt(m.store.Body(e).Pos)
	if cur == last {
		return
	}
	diet := m.store.Identity(e).Diet
	m.grid[last.Row][last.Col].members().remove(e, diet)
	m.grid[cur.Row][cur.Col].members().add(e, diet)
	m.cellOf[e] = cur
}

// SetRegion replaces the region at (row, col), migrating its members.
// Setting a cell to the region it already holds is a no-op; a region
// that is placed elsewhere or has members is rejected.
func (m *RegionManager) SetRegion(row, col int, r Region) error {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return fmt.Errorf("region (%d, %d) outside %dx%d grid", row, col, m.rows, m.cols)
	}
	old := m.grid[row][col]
	if r == old {
		return nil
	}
	if len(r.Animals()) > 0 || m.placed(r) {
		return fmt.Errorf("region (%d, %d): %w", row, col, ErrRegionInUse)
	}
	for _, e := range old.Animals() {
		r.members().add(e, m.store.Identity(e).Diet)
	}
	m.grid[row][col] = r
	return nil
}

// placed reports whether r is on the grid.
func (m *RegionManager) placed(r Region) bool {
	for _, row := range m.grid {
		if slices.Contains(row, r) {
			return true
		}
	}
	return false
}

// FoodFor returns the food e's region grants it over dt.
// Panics if e is not registered.
func (m *RegionManager) FoodFor(e ecs.Entity, dt float64) float64 {
	c, ok := m.cellOf[e]
	if !ok {
		panic(fmt.Sprintf("systems: food requested for unregistered animal %v", e))
	}
	return m.grid[c.Row][c.Col].FoodFor(m.store.Identity(e).Diet, dt)
}

// AnimalsInRange returns the tracked animals strictly within e's sight
// that satisfy keep, excluding e itself, in registration order.
func (m *RegionManager) AnimalsInRange(e ecs.Entity, keep func(ecs.Entity) bool) []ecs.Entity {
	body := m.store.Body(e)
	var found []ecs.Entity
	for _, other := range m.tracked {
		if other == e || !keep(other) {
			continue
		}
		if Distance(m.store.Body(other).Pos, body.Pos) < body.Sight {
			found = append(found, other)
		}
	}
	return found
}

// UpdateRegions advances the food state of every region.
func (m *RegionManager) UpdateRegions(dt float64, rng *rand.Rand) {
	for _, row := range m.grid {
		for _, r := range row {
			r.Update(dt, rng)
		}
	}
}

// AnimalDump is one animal's entry in a persisted-state document.
type AnimalDump struct {
	Pos   [2]float64       `json:"pos"`
	GCode string           `json:"gcode"`
	Diet  components.Diet  `json:"diet"`
	State components.State `json:"state"`
}

// RegionDump is one cell's entry in a persisted-state document.
type RegionDump struct {
	Row  int `json:"row"`
	Col  int `json:"col"`
	Data struct {
		Animals []AnimalDump `json:"animals"`
	} `json:"data"`
}

// Dump returns every cell, row-major, with its members.
func (m *RegionManager) Dump() []RegionDump {
	out := make([]RegionDump, 0, m.rows*m.cols)
	for row := range m.grid {
		for col, r := range m.grid[row] {
			d := RegionDump{Row: row, Col: col}
			d.Data.Animals = make([]AnimalDump, 0, len(r.Animals()))
			for _, e := range r.Animals() {
				d.Data.Animals = append(d.Data.Animals, m.dumpAnimal(e))
			}
			out = append(out, d)
		}
	}
	return out
}

func (m *RegionManager) dumpAnimal(e ecs.Entity) AnimalDump {
	body := m.store.Body(e)
	id := m.store.Identity(e)
	return AnimalDump{
		Pos:   [2]float64{body.Pos.X, body.Pos.Y},
		GCode: id.Code,
		Diet:  id.Diet,
		State: m.store.Vitals(e).State,
	}
}
