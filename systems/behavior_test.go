package systems

import (
	"errors"
	"math"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/selection"
)

func TestNewAnimalValidation(t *testing.T) {
	w := newTestWorld(t, 1)
	base := *w.species.Get(components.KindSheep).Params

	tests := []struct {
		name   string
		edit   func(sp *SpeciesInfo)
		mate   selection.Strategy
		target selection.Strategy
	}{
		{"empty code", func(sp *SpeciesInfo) { sp.Params.Code = "" }, selection.First{}, selection.First{}},
		{"zero sight", func(sp *SpeciesInfo) { sp.Params.Sight = 0 }, selection.First{}, selection.First{}},
		{"negative speed", func(sp *SpeciesInfo) { sp.Params.Speed = -1 }, selection.First{}, selection.First{}},
		{"no mate strategy", func(*SpeciesInfo) {}, nil, selection.First{}},
		{"no target strategy", func(*SpeciesInfo) {}, selection.First{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := base
			info := w.species.Get(components.KindSheep)
			info.Params = &params
			tt.edit(&info)
			_, err := NewAnimal(info, &w.cfg.Animals, tt.mate, tt.target, nil, w.rng)
			if !errors.Is(err, ErrInvalidAnimal) {
				t.Errorf("err = %v, want ErrInvalidAnimal", err)
			}
		})
	}
}

func TestNewAnimalDefaults(t *testing.T) {
	w := newTestWorld(t, 1)
	pos := r2.Vec{X: 5, Y: 6}
	a, err := NewAnimal(w.species.Get(components.KindWolf), &w.cfg.Animals, selection.Youngest{}, selection.Closest{}, &pos, w.rng)
	if err != nil {
		t.Fatal(err)
	}
	if a.Identity.Code != "Wolf" || a.Identity.Diet != components.Carnivore {
		t.Errorf("identity = %+v", a.Identity)
	}
	if a.Vitals.Energy != 100 || a.Vitals.Desire != 0 || a.Vitals.Age != 0 || a.Vitals.State != components.StateNormal {
		t.Errorf("vitals = %+v", a.Vitals)
	}
	if a.Body.Speed < 54 || a.Body.Speed > 66 {
		t.Errorf("speed %g outside 10%% of 60", a.Body.Speed)
	}
	if !a.Body.Placed || a.Body.Pos != pos {
		t.Errorf("body = %+v", a.Body)
	}
}

func TestUpdateUnregisteredPanics(t *testing.T) {
	w := newTestWorld(t, 1)
	e := w.store.Spawn(&components.Animal{Identity: components.Identity{Kind: components.KindSheep}})
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	w.behavior.Update(e, 0.03)
}

func TestLoneSheepDiesOfOldAge(t *testing.T) {
	w := newTestWorld(t, 42)
	e := w.spawn(t, components.KindSheep, r2.Vec{X: 400, Y: 300}, nil)

	died := -1
	for i := 1; i <= 400; i++ {
		w.step(0.03)
		v := w.store.Vitals(e)
		if v.Energy < 0 || v.Energy > 100 || v.Desire < 0 || v.Desire > 100 {
			t.Fatalf("step %d: vitals out of range: %+v", i, *v)
		}
		if v.Dead() {
			died = i
			break
		}
	}
	if died < 266 || died > 268 {
		t.Fatalf("died at step %d, want ~267", died)
	}
	v := w.store.Vitals(e)
	if v.Cause != components.CauseOldAge {
		t.Errorf("cause = %v, want old age", v.Cause)
	}
	if v.Age <= 8 {
		t.Errorf("age = %g, want > 8", v.Age)
	}
}

func TestDeadIsAbsorbing(t *testing.T) {
	w := newTestWorld(t, 1)
	e := w.spawn(t, components.KindSheep, r2.Vec{X: 400, Y: 300}, func(a *components.Animal) {
		a.Vitals.State = components.StateDead
		a.Vitals.Cause = components.CausePredation
		a.Vitals.Energy = 40
	})
	before := w.store.Snapshot(e)
	for i := 0; i < 10; i++ {
		w.step(0.03)
	}
	after := w.store.Snapshot(e)
	if after.Vitals != before.Vitals || after.Body.Pos != before.Body.Pos {
		t.Errorf("dead animal changed: %+v -> %+v", before, after)
	}
}

func TestStarvation(t *testing.T) {
	w := newTestWorld(t, 1)
	e := w.spawn(t, components.KindSheep, r2.Vec{X: 26, Y: 15}, func(a *components.Animal) {
		a.Vitals.Energy = 0.1
	})
	if err := w.regions.SetRegion(0, 0, NewDynamicSupplyRegion(0, 2, &w.cfg.Regions)); err != nil {
		t.Fatal(err)
	}
	w.behavior.Update(e, 0.03)

	v := w.store.Vitals(e)
	if !v.Dead() || v.Cause != components.CauseStarvation {
		t.Errorf("vitals = %+v, want starved", *v)
	}
}

func TestStrayIsWrappedAndCalmed(t *testing.T) {
	w := newTestWorld(t, 1)
	e := w.spawn(t, components.KindSheep, r2.Vec{X: 2, Y: 300}, func(a *components.Animal) {
		a.Vitals.State = components.StateMate
		a.Vitals.Desire = 80
	})
	body := w.store.Body(e)
	body.Pos = r2.Vec{X: -5, Y: 300}
	body.Dest = r2.Vec{X: -100, Y: 300}

	w.behavior.Update(e, 0.03)

	if !w.regions.InBounds(body.Pos) || body.Pos.X < 790 {
		t.Errorf("pos = %v, want wrapped to the right edge", body.Pos)
	}
	if got := w.store.Vitals(e).State; got != components.StateNormal {
		t.Errorf("state = %v, want NORMAL", got)
	}
}

func TestWolfKillsAdjacentSheep(t *testing.T) {
	w := newTestWorld(t, 1)
	rec := &recorder{}
	w.behavior.SetRecorder(rec)

	sheep := w.spawn(t, components.KindSheep, r2.Vec{X: 103, Y: 100}, nil)
	wolf := w.spawn(t, components.KindWolf, r2.Vec{X: 100, Y: 100}, func(a *components.Animal) {
		a.Vitals.State = components.StateHunger
		a.Vitals.Energy = 30
	})

	w.behavior.Update(wolf, 0.03)

	sv := w.store.Vitals(sheep)
	if !sv.Dead() || sv.Cause != components.CausePredation {
		t.Fatalf("sheep = %+v, want killed", *sv)
	}
	// Pursuit drain 18 * 1.2 over 0.03s, then the kill reward.
	want := 30 - 18*1.2*0.03 + 50
	if got := w.store.Vitals(wolf).Energy; math.Abs(got-want) > 1e-9 {
		t.Errorf("wolf energy = %g, want %g", got, want)
	}
	if got := w.store.Vitals(wolf).State; got != components.StateNormal {
		t.Errorf("wolf state = %v, want NORMAL once fed", got)
	}
	if !isNil(w.store.Bonds(wolf).Target) {
		t.Error("wolf still targets its prey")
	}
	if rec.kills != 1 {
		t.Errorf("kills = %d, want 1", rec.kills)
	}
}

func TestWolfIgnoresDeadPrey(t *testing.T) {
	w := newTestWorld(t, 1)
	w.spawn(t, components.KindSheep, r2.Vec{X: 103, Y: 100}, func(a *components.Animal) {
		a.Vitals.State = components.StateDead
	})
	wolf := w.spawn(t, components.KindWolf, r2.Vec{X: 100, Y: 100}, func(a *components.Animal) {
		a.Vitals.State = components.StateHunger
		a.Vitals.Energy = 30
	})

	w.behavior.Update(wolf, 0.03)

	if !isNil(w.store.Bonds(wolf).Target) {
		t.Error("wolf targeted a carcass")
	}
	if got := w.store.Vitals(wolf).State; got != components.StateHunger {
		t.Errorf("state = %v, want HUNGER", got)
	}
}

func TestWolfDropsStaleTarget(t *testing.T) {
	w := newTestWorld(t, 1)
	sheep := w.spawn(t, components.KindSheep, r2.Vec{X: 130, Y: 100}, nil)
	wolf := w.spawn(t, components.KindWolf, r2.Vec{X: 100, Y: 100}, func(a *components.Animal) {
		a.Vitals.State = components.StateHunger
		a.Vitals.Energy = 30
	})
	w.store.Bonds(wolf).Target = sheep

	w.regions.Unregister(sheep)
	w.store.Despawn(sheep)

	w.behavior.Update(wolf, 0.03)
	if !isNil(w.store.Bonds(wolf).Target) {
		t.Error("wolf kept a despawned target")
	}
}

func TestSheepFleesFromWolf(t *testing.T) {
	w := newTestWorld(t, 1)
	sheep := w.spawn(t, components.KindSheep, r2.Vec{X: 400, Y: 300}, nil)
	wolf := w.spawn(t, components.KindWolf, r2.Vec{X: 420, Y: 300}, nil)

	w.behavior.Update(sheep, 0.03)
	if got := w.store.Bonds(sheep).Target; got != wolf {
		t.Fatalf("target = %v, want the wolf", got)
	}
	if got := w.store.Vitals(sheep).State; got != components.StateNormal {
		t.Fatalf("state = %v, want NORMAL until the next update", got)
	}

	w.behavior.Update(sheep, 0.03)
	if got := w.store.Vitals(sheep).State; got != components.StateDanger {
		t.Fatalf("state = %v, want DANGER", got)
	}

	dist := func() float64 { return Distance(w.store.Body(sheep).Pos, w.store.Body(wolf).Pos) }
	before := dist()
	w.behavior.Update(sheep, 0.03)
	if after := dist(); after <= before {
		t.Errorf("distance %g -> %g, want the sheep to flee", before, after)
	}
}

func TestSheepCalmsDownOnceSafe(t *testing.T) {
	w := newTestWorld(t, 1)
	sheep := w.spawn(t, components.KindSheep, r2.Vec{X: 400, Y: 300}, func(a *components.Animal) {
		a.Vitals.State = components.StateDanger
	})
	wolf := w.spawn(t, components.KindWolf, r2.Vec{X: 700, Y: 300}, nil)
	w.store.Bonds(sheep).Target = wolf

	w.behavior.Update(sheep, 0.03)

	if got := w.store.Vitals(sheep).State; got != components.StateNormal {
		t.Errorf("state = %v, want NORMAL", got)
	}
	if !isNil(w.store.Bonds(sheep).Target) {
		t.Error("target not cleared")
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		name   string
		kind   components.Kind
		state  components.State
		energy float64
		desire float64
		threat bool // a wolf 20 units away
		want   components.State
	}{
		{"sheep normal to mate", components.KindSheep, components.StateNormal, 100, 70, false, components.StateMate},
		{"sheep mate to normal", components.KindSheep, components.StateMate, 100, 50, false, components.StateNormal},
		{"sheep mate to danger", components.KindSheep, components.StateMate, 100, 90, true, components.StateDanger},
		{"sheep danger to mate", components.KindSheep, components.StateDanger, 100, 90, false, components.StateMate},
		{"wolf normal to hunger", components.KindWolf, components.StateNormal, 50.1, 0, false, components.StateHunger},
		{"wolf normal to mate", components.KindWolf, components.StateNormal, 90, 80, false, components.StateMate},
		{"wolf mate to hunger", components.KindWolf, components.StateMate, 50.1, 90, false, components.StateHunger},
		{"wolf mate to normal", components.KindWolf, components.StateMate, 90, 20, false, components.StateNormal},
		{"wolf hunger to mate", components.KindWolf, components.StateHunger, 90, 80, false, components.StateMate},
		{"wolf hunger to normal", components.KindWolf, components.StateHunger, 90, 10, false, components.StateNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorld(t, 3)
			e := w.spawn(t, tt.kind, r2.Vec{X: 400, Y: 300}, func(a *components.Animal) {
				a.Vitals.State = tt.state
				a.Vitals.Energy = tt.energy
				a.Vitals.Desire = tt.desire
			})
			var wolf ecs.Entity
			if tt.threat {
				wolf = w.spawn(t, components.KindWolf, r2.Vec{X: 420, Y: 300}, nil)
			}

			w.step(0.03)

			if got := w.store.Vitals(e).State; got != tt.want {
				t.Fatalf("state = %v, want %v", got, tt.want)
			}
			bonds := w.store.Bonds(e)
			switch tt.want {
			case components.StateDanger:
				if bonds.Target != wolf {
					t.Errorf("target = %v, want the wolf", bonds.Target)
				}
				fallthrough
			case components.StateHunger:
				if !isNil(bonds.Mate) {
					t.Error("mate kept on entering an alert state")
				}
			case components.StateMate:
				if !isNil(bonds.Target) {
					t.Error("target kept on entering mate")
				}
			}
		})
	}
}

func TestMatingLeavesFullCarrierAlone(t *testing.T) {
	w := newTestWorld(t, 1)
	rec := &recorder{}
	w.behavior.SetRecorder(rec)
	inHeat := func(a *components.Animal) {
		a.Vitals.State = components.StateMate
		a.Vitals.Desire = 80
		a.Vitals.Energy = 90
	}
	a := w.spawn(t, components.KindWolf, r2.Vec{X: 100, Y: 100}, inHeat)
	b := w.spawn(t, components.KindWolf, r2.Vec{X: 102, Y: 100}, inHeat)
	litter := &components.Animal{Identity: components.Identity{Kind: components.KindWolf}}
	w.store.Bonds(b).Offspring = litter
	w.store.Bonds(a).Mate = b

	w.behavior.Update(a, 0.03)

	if rec.matings != 1 {
		t.Errorf("matings = %d, want 1", rec.matings)
	}
	if w.store.Vitals(b).Desire != 0 {
		t.Errorf("mate desire = %g, want 0", w.store.Vitals(b).Desire)
	}
	if w.store.Bonds(b).Offspring != litter {
		t.Error("carried litter replaced")
	}
	if w.store.Bonds(a).Offspring != nil || len(rec.carriers) != 0 {
		t.Errorf("conceived into %+v despite a full carrier", rec.carriers)
	}
}

func matingSheep(a *components.Animal) {
	a.Vitals.State = components.StateMate
	a.Vitals.Desire = 80
}

func TestSheepMatingResetsDesire(t *testing.T) {
	w := newTestWorld(t, 1)
	rec := &recorder{}
	w.behavior.SetRecorder(rec)
	a := w.spawn(t, components.KindSheep, r2.Vec{X: 400, Y: 300}, matingSheep)
	b := w.spawn(t, components.KindSheep, r2.Vec{X: 402, Y: 300}, matingSheep)

	w.behavior.Update(a, 0.03)

	if da, db := w.store.Vitals(a).Desire, w.store.Vitals(b).Desire; da != 0 || db != 0 {
		t.Errorf("desire = %g, %g, want 0, 0", da, db)
	}
	if got := w.store.Vitals(a).State; got != components.StateNormal {
		t.Errorf("state = %v, want NORMAL", got)
	}
	if !isNil(w.store.Bonds(a).Mate) {
		t.Error("mate not cleared after mating")
	}
	if rec.matings != 1 {
		t.Errorf("matings = %d, want 1", rec.matings)
	}
	if got := w.store.Bonds(a).Offspring != nil; got != (len(rec.carriers) == 1) {
		t.Errorf("offspring %v but %d conceptions", got, len(rec.carriers))
	}
}

func TestSheepBirthRate(t *testing.T) {
	const trials = 2000
	births := 0
	w := newTestWorld(t, 2147483647)
	for i := 0; i < trials; i++ {
		// Each pair gets a fresh store so earlier offspring don't interfere.
		w.store = NewStore()
		regions, err := NewRegionManager(w.cfg.World.Cols, w.cfg.World.Rows, w.cfg.World.Width, w.cfg.World.Height, w.store, func() Region {
			return NewDefaultRegion(&w.cfg.Regions)
		})
		if err != nil {
			t.Fatal(err)
		}
		w.regions = regions
		w.behavior = NewBehavior(w.store, w.regions, w.cfg, w.rng)

		a := w.spawn(t, components.KindSheep, r2.Vec{X: 400, Y: 300}, matingSheep)
		w.spawn(t, components.KindSheep, r2.Vec{X: 402, Y: 300}, matingSheep)
		w.behavior.Update(a, 0.03)
		if w.store.Bonds(a).Offspring != nil {
			births++
		}
	}
	rate := float64(births) / trials
	if math.Abs(rate-0.9) > 0.03 {
		t.Errorf("birth rate = %.3f, want ~0.9", rate)
	}
}

func TestWolfMateCarriesLitter(t *testing.T) {
	w := newTestWorld(t, 5)
	rec := &recorder{}
	w.behavior.SetRecorder(rec)
	wolfInHeat := func(id uint32) func(*components.Animal) {
		return func(a *components.Animal) {
			a.Identity.ID = id
			a.Vitals.State = components.StateMate
			a.Vitals.Desire = 80
			a.Vitals.Energy = 90
		}
	}

	carried := false
	for i := 0; i < 50 && !carried; i++ {
		a := w.spawn(t, components.KindWolf, r2.Vec{X: 100 + float64(i*10), Y: 100}, wolfInHeat(uint32(2*i+1)))
		b := w.spawn(t, components.KindWolf, r2.Vec{X: 102 + float64(i*10), Y: 100}, wolfInHeat(uint32(2*i+2)))
		w.store.Bonds(a).Mate = b

		w.behavior.Update(a, 0.03)

		if w.store.Bonds(a).Offspring != nil {
			t.Fatal("initiator carries the litter")
		}
		want := 90 - 18*1.2*0.03 - 10
		if got := w.store.Vitals(a).Energy; math.Abs(got-want) > 1e-9 {
			t.Fatalf("initiator energy = %g, want %g", got, want)
		}
		carried = w.store.Bonds(b).Offspring != nil
		if carried && (len(rec.carriers) != 1 || rec.carriers[0] != *w.store.Identity(b)) {
			t.Fatalf("conceptions credited to %+v, want the mate", rec.carriers)
		}

		// Retire the pair so later trials don't see them.
		w.store.Vitals(a).State = components.StateDead
		w.store.Vitals(b).State = components.StateDead
	}
	if !carried {
		t.Error("mate never conceived")
	}
}

func TestConceiveInheritsFromBothParents(t *testing.T) {
	w := newTestWorld(t, 9)
	a := w.spawn(t, components.KindSheep, r2.Vec{X: 200, Y: 200}, func(an *components.Animal) {
		an.Vitals.Energy = 80
		an.Policy.Target = selection.First{}
	})
	b := w.spawn(t, components.KindSheep, r2.Vec{X: 203, Y: 200}, func(an *components.Animal) {
		an.Vitals.Energy = 40
		an.Policy.Mate = selection.Youngest{}
	})

	baby := w.behavior.conceive(w.behavior.actor(a), b)

	parent := *w.store.Identity(a)
	if baby.Identity.Kind != parent.Kind || baby.Identity.Code != parent.Code || baby.Identity.Diet != parent.Diet {
		t.Errorf("identity = %+v", baby.Identity)
	}
	if baby.Vitals.Energy != 60 || baby.Vitals.State != components.StateNormal || baby.Vitals.Age != 0 {
		t.Errorf("vitals = %+v", baby.Vitals)
	}
	if baby.Policy.Mate != (selection.Youngest{}) {
		t.Errorf("mate strategy = %v, want the partner's", baby.Policy.Mate)
	}
	if baby.Policy.Target != (selection.First{}) {
		t.Errorf("target strategy = %v, want the initiator's", baby.Policy.Target)
	}
	if !baby.Body.Placed {
		t.Error("offspring not placed")
	}
	meanSight := (w.store.Body(a).Sight + w.store.Body(b).Sight) / 2
	if math.Abs(baby.Body.Sight-meanSight) > meanSight*0.2+1e-9 {
		t.Errorf("sight = %g, want within 20%% of %g", baby.Body.Sight, meanSight)
	}
}

func TestPopulationInvariants(t *testing.T) {
	w := newTestWorld(t, 2147483647)
	for i := 0; i < 40; i++ {
		w.spawn(t, components.KindSheep, w.regions.RandomPos(w.rng), nil)
	}
	for i := 0; i < 8; i++ {
		w.spawn(t, components.KindWolf, w.regions.RandomPos(w.rng), nil)
	}

	deadAt := map[ecs.Entity]r2.Vec{}
	for step := 0; step < 500; step++ {
		w.step(0.03)
		for _, e := range w.regions.Tracked() {
			v := w.store.Vitals(e)
			if v.Energy < 0 || v.Energy > 100 || v.Desire < 0 || v.Desire > 100 {
				t.Fatalf("step %d: %v vitals out of range: %+v", step, e, *v)
			}
			pos := w.store.Body(e).Pos
			if !w.regions.InBounds(pos) {
				t.Fatalf("step %d: %v at %v outside the map", step, e, pos)
			}
			if !v.Dead() {
				continue
			}
			if p, ok := deadAt[e]; ok && p != pos {
				t.Fatalf("step %d: dead %v moved", step, e)
			}
			deadAt[e] = pos
		}
		checkIndex(t, w)
	}
}
