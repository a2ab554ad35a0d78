package consts

const (
	CHARGE    = 1.6021918e-19 // Elementary charge (C)
	BOLTZMANN = 1.3806226e-23 // Boltzmann constant (J/K)
)

// GROUND is the reference node id. Its voltage is exactly 0 and it never
// owns a row or column of the circuit matrix.
const GROUND = 0
