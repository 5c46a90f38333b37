package components

import "gonum.org/v1/gonum/spatial/r2"

// Body holds the spatial and locomotion properties of an animal.
type Body struct {
	Pos    r2.Vec
	Dest   r2.Vec
	Placed bool // Pos was assigned explicitly; otherwise registration picks one

	Speed float64 // fixed per individual
	Sight float64 // fixed per individual
}
