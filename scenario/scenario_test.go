package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/factory"
	"github.com/pthm-cable/ecosys/sim"
	"github.com/pthm-cable/ecosys/systems"
)

func init() {
	config.MustInit("")
}

const sampleJSON = `{
	"width": 400, "height": 300, "rows": 10, "cols": 8,
	"regions": [
		{"row": [0, 1], "col": [0, 2], "spec": {"type": "dynamic", "data": {"food": 50, "factor": 1.5}}}
	],
	"animals": [
		{"amount": 5, "spec": {"type": "sheep", "data": {"mate_strategy": {"type": "closest"}, "pos": {"x_range": [10, 50], "y_range": [10, 50]}}}},
		{"amount": 2, "spec": {"type": "wolf", "data": {"hunt_strategy": {"type": "youngest"}}}}
	]
}`

const sampleYAML = `
width: 400
height: 300
rows: 10
cols: 8
regions:
  - row: [0, 1]
    col: [0, 2]
    spec:
      type: dynamic
      data: {food: 50, factor: 1.5}
animals:
  - amount: 5
    spec:
      type: sheep
      data:
        mate_strategy: {type: closest}
        pos: {x_range: [10, 50], y_range: [10, 50]}
  - amount: 2
    spec:
      type: wolf
      data:
        hunt_strategy: {type: youngest}
`

func newSim(t *testing.T) (*sim.Simulator, Factories) {
	t.Helper()
	cfg := config.Cfg()
	rng := rand.New(rand.NewSource(11))
	s, err := sim.New(cfg, rng)
	if err != nil {
		t.Fatal(err)
	}
	return s, NewFactories(cfg, rng)
}

func TestLoad(t *testing.T) {
	for name, src := range map[string]string{"json": sampleJSON, "yaml": sampleYAML} {
		t.Run(name, func(t *testing.T) {
			doc, err := Parse([]byte(src))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			s, f := newSim(t)
			if err := Load(s, doc, f); err != nil {
				t.Fatalf("Load: %v", err)
			}

			m := s.Map()
			if m.Width != 400 || m.Height != 300 || m.Rows != 10 || m.Cols != 8 {
				t.Errorf("map = %vx%v, %dx%d", m.Width, m.Height, m.Rows, m.Cols)
			}
			if s.Len() != 7 || s.Time() != 0 {
				t.Errorf("len %d, time %g", s.Len(), s.Time())
			}
			for _, r := range m.Regions {
				dynamic := r.Row <= 1 && r.Col <= 2
				if dynamic && (r.Kind != systems.RegionDynamic || r.Food != 50 || r.Factor != 1.5) {
					t.Errorf("region (%d, %d) = %+v, want dynamic", r.Row, r.Col, r.RegionInfo)
				}
				if !dynamic && r.Kind != systems.RegionDefault {
					t.Errorf("region (%d, %d) = %s, want default", r.Row, r.Col, r.Kind)
				}
			}
			for i, a := range s.Population()[:5] {
				if a.Code != "Sheep" || a.Pos.X < 10 || a.Pos.X > 50 || a.Pos.Y < 10 || a.Pos.Y > 50 {
					t.Errorf("sheep %d = %+v", i, a)
				}
			}
		})
	}
}

func TestLoadKeepsDimensionsWhenOmitted(t *testing.T) {
	doc, err := Parse([]byte(`{"animals": [{"amount": 1, "spec": {"type": "sheep"}}]}`))
	if err != nil {
		t.Fatal(err)
	}
	s, f := newSim(t)
	if err := Load(s, doc, f); err != nil {
		t.Fatal(err)
	}
	m := s.Map()
	if m.Width != 800 || m.Height != 600 || m.Rows != 20 || m.Cols != 15 {
		t.Errorf("map = %vx%v, %dx%d", m.Width, m.Height, m.Rows, m.Cols)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ``},
		{"no animals", `{"width": 10}`},
		{"empty animals", `{"animals": []}`},
		{"negative amount", `{"animals": [{"amount": -1, "spec": {"type": "sheep"}}]}`},
		{"fractional amount", `{"animals": [{"amount": 1.5, "spec": {"type": "sheep"}}]}`},
		{"range of three", `{"regions": [{"row": [0, 1, 2], "col": [0, 0], "spec": {"type": "default"}}], "animals": [{"amount": 1, "spec": {"type": "sheep"}}]}`},
		{"zero width", `{"width": 0, "animals": [{"amount": 1, "spec": {"type": "sheep"}}]}`},
		{"bad yaml", "animals: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.src)); !errors.Is(err, ErrInvalidScenario) {
				t.Errorf("err = %v, want ErrInvalidScenario", err)
			}
		})
	}
}

func TestLoadFailureLeavesSimulatorUntouched(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"row out of range", `{"regions": [{"row": [0, 20], "col": [0, 0], "spec": {"type": "default"}}], "animals": [{"amount": 1, "spec": {"type": "sheep"}}]}`, ErrInvalidScenario},
		{"reversed range", `{"regions": [{"row": [3, 1], "col": [0, 0], "spec": {"type": "default"}}], "animals": [{"amount": 1, "spec": {"type": "sheep"}}]}`, ErrInvalidScenario},
		{"unknown region", `{"regions": [{"row": [0, 0], "col": [0, 0], "spec": {"type": "lava"}}], "animals": [{"amount": 1, "spec": {"type": "sheep"}}]}`, factory.ErrUnknownType},
		{"bad animal data", `{"animals": [{"amount": 1, "spec": {"type": "sheep"}}, {"amount": 1, "spec": {"type": "wolf", "data": {"speed": 3}}}]}`, factory.ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, f := newSim(t)
			before, err := Parse([]byte(sampleJSON))
			if err != nil {
				t.Fatal(err)
			}
			if err := Load(s, before, f); err != nil {
				t.Fatal(err)
			}
			s.Advance(0.03)
			want, _ := json.Marshal(s.Dump())

			doc, err := Parse([]byte(tt.src))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if err := Load(s, doc, f); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			got, _ := json.Marshal(s.Dump())
			if !bytes.Equal(got, want) {
				t.Error("simulator changed after a failed load")
			}
		})
	}
}

func TestFertility(t *testing.T) {
	doc, err := Parse([]byte(`{
		"rows": 6, "cols": 6,
		"fertility": {"seed": 3},
		"regions": [{"row": [0, 0], "col": [0, 0], "spec": {"type": "default"}}],
		"animals": [{"amount": 1, "spec": {"type": "sheep"}}]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	s, f := newSim(t)
	if err := Load(s, doc, f); err != nil {
		t.Fatal(err)
	}

	fc := config.Cfg().Fertility
	foods := map[float64]bool{}
	for _, r := range s.Map().Regions {
		if r.Row == 0 && r.Col == 0 {
			if r.Kind != systems.RegionDefault {
				t.Errorf("explicit region overridden by fertility: %s", r.Kind)
			}
			continue
		}
		if r.Kind != systems.RegionDynamic {
			t.Fatalf("region (%d, %d) = %s, want dynamic", r.Row, r.Col, r.Kind)
		}
		if r.Food < fc.MinFood || r.Food > fc.MaxFood || r.Factor < fc.MinFactor || r.Factor > fc.MaxFactor {
			t.Errorf("region (%d, %d) = %+v outside fertility bounds", r.Row, r.Col, r.RegionInfo)
		}
		foods[r.Food] = true
	}
	if len(foods) < 2 {
		t.Error("fertility field is flat")
	}
}

func TestRun(t *testing.T) {
	doc, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatal(err)
	}
	s, f := newSim(t)
	if err := Load(s, doc, f); err != nil {
		t.Fatal(err)
	}

	out, err := Run(s, 0.3, 0.03)
	if err != nil {
		t.Fatal(err)
	}
	if out.In.Time != 0 {
		t.Errorf("in time = %g", out.In.Time)
	}
	if out.Out.Time <= 0.3 || out.Out.Time > 0.33+1e-9 {
		t.Errorf("out time = %g, want just past 0.3", out.Out.Time)
	}
	if len(out.In.State.Regions) != 80 || len(out.Out.State.Regions) != 80 {
		t.Errorf("regions in/out = %d/%d", len(out.In.State.Regions), len(out.Out.State.Regions))
	}

	path := filepath.Join(t.TempDir(), "out.json")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteBatch(file, out); err != nil {
		t.Fatal(err)
	}
	file.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["in"]; !ok {
		t.Error("missing in")
	}
	if _, ok := decoded["out"]; !ok {
		t.Error("missing out")
	}

	if _, err := Run(s, 1, 0); !errors.Is(err, ErrInvalidScenario) {
		t.Errorf("zero dt err = %v", err)
	}
}

func TestRunContext(t *testing.T) {
	doc, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatal(err)
	}
	s, f := newSim(t)
	if err := Load(s, doc, f); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := RunContext(ctx, s, 1, 0.03, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if out.Out.Time != 0 || s.Time() != 0 {
		t.Errorf("cancelled run advanced to %g", s.Time())
	}

	// 0.15 simulated seconds at 10x is about 15ms of wall time.
	out, err = RunContext(context.Background(), s, 0.12, 0.03, 10)
	if err != nil {
		t.Fatal(err)
	}
	if out.Out.Time <= 0.12 {
		t.Errorf("paced run stopped at %g", out.Out.Time)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Animals) != 2 || doc.Animals[0].Amount != 5 || doc.Rows != 10 {
		t.Errorf("doc = %+v", doc)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
