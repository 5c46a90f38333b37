package components

// Animal is a fully constructed animal that is not yet part of a world.
// Factories and breeding produce Animals; the simulator spawns them.
type Animal struct {
	Identity Identity
	Body     Body
	Vitals   Vitals
	Policy   Policy
}
