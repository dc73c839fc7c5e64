package spinevo

import (
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/floats"
)

// packState returns the real ODE state [Re ψ, Im ψ].
func packState(ψ []complex128) []float64 {
	s := make([]float64, 2*len(ψ))
	for i, v := range ψ {
		s[i] = real(v)
		s[len(ψ)+i] = imag(v)
	}
	return s
}

// unpackState stores the real ODE state s into ψ, which must be of length len(s)/2.
func unpackState(ψ []complex128, s []float64) {
	d := len(ψ)
	for i := range ψ {
		ψ[i] = complex(s[i], s[d+i])
	}
}

// Norm returns the L2 norm of the provided state.
func Norm(ψ []complex128) float64 {
	return cmplxs.Norm(ψ, 2)
}

// Fidelity returns |<ψ|φ>|^2.
func Fidelity(ψ, φ []complex128) float64 {
	o := cmplxs.Dot(ψ, φ)
	return real(o)*real(o) + imag(o)*imag(o)
}

// TimeGrid returns the numTimesteps+1 evenly spaced times from 0 to total inclusive.
// The last point is exactly total.
func TimeGrid(total float64, numTimesteps int) []float64 {
	grid := floats.Span(make([]float64, numTimesteps+1), 0, total)
	grid[numTimesteps] = total
	return grid
}
