package sim

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/systems"
)

// AnimalInfo is a read-only copy of one animal's observable state.
type AnimalInfo struct {
	Entity ecs.Entity            `json:"-"`
	ID     uint32                `json:"id"`
	Kind   components.Kind       `json:"kind"`
	Code   string                `json:"gcode"`
	Diet   components.Diet       `json:"diet"`
	State  components.State      `json:"state"`
	Cause  components.DeathCause `json:"cause,omitempty"`
	Pos    r2.Vec                `json:"pos"`
	Dest   r2.Vec                `json:"dest"`
	Energy float64               `json:"energy"`
	Desire float64               `json:"desire"`
	Age    float64               `json:"age"`
	Sight  float64               `json:"sight"`
	Speed  float64               `json:"speed"`
}

// Dead reports whether the animal is dead.
func (a AnimalInfo) Dead() bool {
	return a.State == components.StateDead
}

// RegionEntry is one cell of the map with its region's observable state.
type RegionEntry struct {
	Row int `json:"row"`
	Col int `json:"col"`
	systems.RegionInfo
}

// MapInfo describes the map geometry and every region on it.
type MapInfo struct {
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	Rows       int           `json:"rows"`
	Cols       int           `json:"cols"`
	CellWidth  float64       `json:"cell_width"`
	CellHeight float64       `json:"cell_height"`
	Regions    []RegionEntry `json:"regions"` // row-major
}

// State is the snapshot handed to observers.
type State struct {
	Time       float64      `json:"time"`
	Map        MapInfo      `json:"map"`
	Population []AnimalInfo `json:"population"`
}

// Count returns how many live animals of the given kind the state holds.
func (s State) Count(kind components.Kind) int {
	n := 0
	for _, a := range s.Population {
		if a.Kind == kind && !a.Dead() {
			n++
		}
	}
	return n
}

// StateDoc is the persisted-state document.
type StateDoc struct {
	Time  float64 `json:"time"`
	State struct {
		Regions []systems.RegionDump `json:"regions"`
	} `json:"state"`
}

// BatchDoc pairs the state before and after a batch run.
type BatchDoc struct {
	In  StateDoc `json:"in"`
	Out StateDoc `json:"out"`
}

func animalInfo(store *systems.Store, e ecs.Entity) AnimalInfo {
	a := store.Snapshot(e)
	return AnimalInfo{
		Entity: e,
		ID:     a.Identity.ID,
		Kind:   a.Identity.Kind,
		Code:   a.Identity.Code,
		Diet:   a.Identity.Diet,
		State:  a.Vitals.State,
		Cause:  a.Vitals.Cause,
		Pos:    a.Body.Pos,
		Dest:   a.Body.Dest,
		Energy: a.Vitals.Energy,
		Desire: a.Vitals.Desire,
		Age:    a.Vitals.Age,
		Sight:  a.Body.Sight,
		Speed:  a.Body.Speed,
	}
}

func mapInfo(m *systems.RegionManager) MapInfo {
	info := MapInfo{
		Width:      m.Width(),
		Height:     m.Height(),
		Rows:       m.Rows(),
		Cols:       m.Cols(),
		CellWidth:  m.CellWidth(),
		CellHeight: m.CellHeight(),
		Regions:    make([]RegionEntry, 0, m.Rows()*m.Cols()),
	}
	for row := 0; row < m.Rows(); row++ {
		for col := 0; col < m.Cols(); col++ {
			info.Regions = append(info.Regions, RegionEntry{Row: row, Col: col, RegionInfo: m.Region(row, col).Info()})
		}
	}
	return info
}
