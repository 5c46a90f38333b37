// Package scenario loads initial-configuration documents into a simulator
// and runs batch simulations.
package scenario

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/factory"
	"github.com/pthm-cable/ecosys/selection"
	"github.com/pthm-cable/ecosys/sim"
	"github.com/pthm-cable/ecosys/systems"
)

// ErrInvalidScenario is returned when a document is malformed or
// inconsistent with the map it describes.
var ErrInvalidScenario = errors.New("invalid scenario")

//go:embed scenario.schema.json
var schemaJSON string

var documentSchema = jsonschema.MustCompileString("scenario.schema.json", schemaJSON)

// Range is an inclusive [from, to] index range.
type Range [2]int

// RegionGroup assigns one region spec to every cell in a block.
type RegionGroup struct {
	Row  Range           `json:"row"`
	Col  Range           `json:"col"`
	Spec json.RawMessage `json:"spec"`
}

// AnimalGroup adds Amount animals built from the same spec.
type AnimalGroup struct {
	Amount int             `json:"amount"`
	Spec   json.RawMessage `json:"spec"`
}

// Fertility seeds every cell not named by a region group with a dynamic
// supply region whose stock and regrowth follow a noise field.
// Unset noise parameters fall back to the configuration.
type Fertility struct {
	Seed        int64    `json:"seed"`
	Frequency   *float64 `json:"frequency,omitempty"`
	Octaves     *int     `json:"octaves,omitempty"`
	Persistence *float64 `json:"persistence,omitempty"`
}

// Document is an initial configuration. Zero map dimensions keep the
// simulator's current ones.
type Document struct {
	Width     int           `json:"width,omitempty"`
	Height    int           `json:"height,omitempty"`
	Rows      int           `json:"rows,omitempty"`
	Cols      int           `json:"cols,omitempty"`
	Regions   []RegionGroup `json:"regions,omitempty"`
	Animals   []AnimalGroup `json:"animals"`
	Fertility *Fertility    `json:"fertility,omitempty"`
}

// Parse decodes a JSON or YAML document and validates it against the
// document schema.
func Parse(data []byte) (*Document, error) {
	raw, err := normalize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := documentSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return &doc, nil
}

// normalize returns the document as JSON. Anything that does not start
// with '{' is read as YAML.
func normalize(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return trimmed, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return json.Marshal(v)
}

// ReadFile reads and parses a document from disk.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Factories are the creation contracts a document is built with.
type Factories struct {
	Strategies *factory.Factory[selection.Strategy]
	Regions    *factory.Factory[systems.Region]
	Animals    *factory.Factory[*components.Animal]
}

// NewFactories creates the standard factories. Animal placement and
// jitter draw from rng.
func NewFactories(cfg *config.Config, rng *rand.Rand) Factories {
	strategies := factory.Strategies()
	return Factories{
		Strategies: strategies,
		Regions:    factory.Regions(&cfg.Regions),
		Animals:    factory.Animals(cfg, strategies, rng),
	}
}

// plan is a fully built document, ready to apply.
type plan struct {
	cols, rows, width, height int
	regions                   [][]systems.Region // nil cells stay default
	animals                   []*components.Animal
}

// Load resets s to the document's map and populates it: every cell
// becomes a default region, then fertility and region groups are
// applied, then the animal groups are added in order. Everything is
// built before s is touched, so on error s is unchanged.
func Load(s *sim.Simulator, doc *Document, f Factories) error {
	p, err := build(s, doc, f)
	if err != nil {
		return err
	}

	if err := s.Reset(p.cols, p.rows, p.width, p.height); err != nil {
		return fmt.Errorf("resetting simulator: %w", err)
	}
	s.DefaultMatrix()
	for row := range p.regions {
		for col, r := range p.regions[row] {
			if r == nil {
				continue
			}
			if err := s.SetRegion(row, col, r); err != nil {
				return fmt.Errorf("setting region (%d, %d): %w", row, col, err)
			}
		}
	}
	for _, a := range p.animals {
		s.AddAnimal(a)
	}
	return nil
}

func build(s *sim.Simulator, doc *Document, f Factories) (*plan, error) {
	if len(doc.Animals) == 0 {
		return nil, fmt.Errorf("%w: no animals", ErrInvalidScenario)
	}

	m := s.Map()
	p := &plan{
		cols:   orDefault(doc.Cols, m.Cols),
		rows:   orDefault(doc.Rows, m.Rows),
		width:  orDefault(doc.Width, int(m.Width)),
		height: orDefault(doc.Height, int(m.Height)),
	}
	p.regions = make([][]systems.Region, p.rows)
	for row := range p.regions {
		p.regions[row] = make([]systems.Region, p.cols)
	}

	if doc.Fertility != nil {
		seedFertility(p.regions, doc.Fertility, s.Config())
	}

	for i, g := range doc.Regions {
		if err := checkRange(g.Row, p.rows); err != nil {
			return nil, fmt.Errorf("%w: regions[%d].row: %v", ErrInvalidScenario, i, err)
		}
		if err := checkRange(g.Col, p.cols); err != nil {
			return nil, fmt.Errorf("%w: regions[%d].col: %v", ErrInvalidScenario, i, err)
		}
		for row := g.Row[0]; row <= g.Row[1]; row++ {
			for col := g.Col[0]; col <= g.Col[1]; col++ {
				// Each cell needs its own region: regions own their members.
				r, err := f.Regions.Create(g.Spec)
				if err != nil {
					return nil, fmt.Errorf("regions[%d]: %w", i, err)
				}
				p.regions[row][col] = r
			}
		}
	}

	for i, g := range doc.Animals {
		for j := 0; j < g.Amount; j++ {
			a, err := f.Animals.Create(g.Spec)
			if err != nil {
				return nil, fmt.Errorf("animals[%d]: %w", i, err)
			}
			p.animals = append(p.animals, a)
		}
	}
	return p, nil
}

func checkRange(r Range, n int) error {
	if r[0] > r[1] {
		return fmt.Errorf("from %d is after to %d", r[0], r[1])
	}
	if r[0] < 0 || r[1] >= n {
		return fmt.Errorf("[%d, %d] outside 0..%d", r[0], r[1], n-1)
	}
	return nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
