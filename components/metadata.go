package components

import "fmt"

// Kind is the closed set of species the simulation knows how to update.
type Kind uint8

const (
	KindSheep Kind = iota
	KindWolf
)

// Diet classifies which regions feed an animal and who hunts it.
type Diet uint8

const (
	Herbivore Diet = iota
	Carnivore
)

// State is an animal's behavioural state.
// Danger is herbivore-only, Hunger is carnivore-only.
type State uint8

const (
	StateNormal State = iota
	StateDanger
	StateHunger
	StateMate
	StateDead
)

// DeathCause records why an animal reached StateDead.
type DeathCause uint8

const (
	CauseNone DeathCause = iota
	CausePredation
	CauseStarvation
	CauseOldAge
)

// String returns the species name for a Kind.
func (k Kind) String() string {
	return nameOf(int(k), KindNames())
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	return parseName((*uint8)(k), "kind", text, KindNames())
}

// KindNames returns the species names in Kind order.
func KindNames() []string {
	return []string{"sheep", "wolf"}
}

// String returns the diet name as it appears in state documents.
func (d Diet) String() string {
	return nameOf(int(d), dietNames())
}

// MarshalText encodes the diet by name.
func (d Diet) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a diet name.
func (d *Diet) UnmarshalText(text []byte) error {
	return parseName((*uint8)(d), "diet", text, dietNames())
}

// String returns the state name as it appears in state documents.
func (s State) String() string {
	return nameOf(int(s), StateNames())
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	return parseName((*uint8)(s), "state", text, StateNames())
}

// StateNames returns the state names in State order.
func StateNames() []string {
	return []string{"NORMAL", "DANGER", "HUNGER", "MATE", "DEAD"}
}

// String returns the death cause name.
func (c DeathCause) String() string {
	return nameOf(int(c), causeNames())
}

// MarshalText encodes the death cause by name.
func (c DeathCause) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a death cause name.
func (c *DeathCause) UnmarshalText(text []byte) error {
	return parseName((*uint8)(c), "death cause", text, causeNames())
}

func dietNames() []string  { return []string{"HERBIVORE", "CARNIVORE"} }
func causeNames() []string { return []string{"none", "predation", "starvation", "old_age"} }

func parseName(dst *uint8, what string, text []byte, names []string) error {
	for i, n := range names {
		if n == string(text) {
			*dst = uint8(i)
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q", what, text)
}

func nameOf(i int, names []string) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return "Unknown"
}
