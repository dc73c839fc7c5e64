package spinevo

import (
	"fmt"
	"math"
	"math/cmplx"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/floats/scalar"
)

const (
	normε = 1e-9
)

// InitialState defines how the state at t=0 is resolved into amplitudes.
// Implementations must return a freshly allocated slice on every call.
type InitialState interface {
	Amplitudes(numParticles int) ([]complex128, error)
}

// StateVector is a state given directly by its 2^n amplitudes (cf. pauli.go for the bit ordering).
type StateVector []complex128

// GroundState returns |0...0>, i.e. all spins up.
func GroundState(n int) StateVector {
	ψ := make(StateVector, 1<<uint(n))
	ψ[0] = 1
	return ψ
}

// Amplitudes implements the InitialState interface.
func (s StateVector) Amplitudes(numParticles int) ([]complex128, error) {
	if numParticles <= 0 || numParticles > MaxQubits {
		return nil, configErr("particles", "%d not in [1, %d]", numParticles, MaxQubits)
	}
	if dim := 1 << uint(numParticles); len(s) != dim {
		return nil, configErr("initial state", "state vector has %d amplitudes, expected %d for %d particles", len(s), dim, numParticles)
	}
	if n := cmplxs.Norm(s, 2); !scalar.EqualWithinAbs(n, 1, normε) {
		return nil, configErr("initial state", "state vector is not normalized (norm=%f)", n)
	}
	ψ := make([]complex128, len(s))
	copy(ψ, s)
	return ψ, nil
}

// GateKind defines an enum of the supported gates.
type GateKind uint8

const (
	GateX GateKind = iota + 1
	GateY
	GateZ
	GateH
	GateRX
	GateRY
	GateRZ
	GateCX
)

func (g GateKind) String() string {
	switch g {
	case GateX:
		return "x"
	case GateY:
		return "y"
	case GateZ:
		return "z"
	case GateH:
		return "h"
	case GateRX:
		return "rx"
	case GateRY:
		return "ry"
	case GateRZ:
		return "rz"
	case GateCX:
		return "cx"
	}
	panic("cannot stringify unknown gate")
}

// Gate is a single gate of a Circuit. Control is only used by GateCX and θ only by rotations.
type Gate struct {
	Kind    GateKind
	Target  int
	Control int
	θ       float64
}

func (g Gate) String() string {
	switch g.Kind {
	case GateRX, GateRY, GateRZ:
		return fmt.Sprintf("%s:%d:%g", g.Kind, g.Target, g.θ)
	case GateCX:
		return fmt.Sprintf("%s:%d:%d", g.Kind, g.Control, g.Target)
	default:
		return fmt.Sprintf("%s:%d", g.Kind, g.Target)
	}
}

// ParseGate parses gates written as `h:0`, `rx:1:1.5707` or `cx:0:1` (control then target).
func ParseGate(s string) (Gate, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), ":")
	if len(parts) < 2 {
		return Gate{}, configErr("gate", "%q is not of the form name:qubit[:arg]", s)
	}
	var g Gate
	switch parts[0] {
	case "x":
		g.Kind = GateX
	case "y":
		g.Kind = GateY
	case "z":
		g.Kind = GateZ
	case "h":
		g.Kind = GateH
	case "rx":
		g.Kind = GateRX
	case "ry":
		g.Kind = GateRY
	case "rz":
		g.Kind = GateRZ
	case "cx":
		g.Kind = GateCX
	default:
		return Gate{}, configErr("gate", "unknown gate `%s`", parts[0])
	}
	q, err := strconv.Atoi(parts[1])
	if err != nil {
		return Gate{}, configErr("gate", "%q: %s", s, err)
	}
	g.Target = q
	switch g.Kind {
	case GateRX, GateRY, GateRZ, GateCX:
		if len(parts) != 3 {
			return Gate{}, configErr("gate", "%q requires a third field", s)
		}
		if g.Kind == GateCX {
			tgt, err := strconv.Atoi(parts[2])
			if err != nil {
				return Gate{}, configErr("gate", "%q: %s", s, err)
			}
			g.Control = q
			g.Target = tgt
		} else if g.θ, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return Gate{}, configErr("gate", "%q: %s", s, err)
		}
	default:
		if len(parts) != 2 {
			return Gate{}, configErr("gate", "%q takes no argument", s)
		}
	}
	return g, nil
}

// Circuit is a gate-level description of the initial state, applied to |0...0> only when the
// evolution starts.
type Circuit struct {
	numQubits int
	gates     []Gate
}

// NewCircuit returns an empty circuit on n qubits.
func NewCircuit(n int) *Circuit {
	return &Circuit{numQubits: n}
}

// NumQubits returns the number of qubits of this circuit.
func (c *Circuit) NumQubits() int {
	return c.numQubits
}

// Gates returns a copy of the gates of this circuit.
func (c *Circuit) Gates() []Gate {
	gates := make([]Gate, len(c.gates))
	copy(gates, c.gates)
	return gates
}

// Append adds the provided gates as is.
func (c *Circuit) Append(gates ...Gate) *Circuit {
	c.gates = append(c.gates, gates...)
	return c
}

// X appends a Pauli X (spin flip).
func (c *Circuit) X(q int) *Circuit { return c.Append(Gate{Kind: GateX, Target: q}) }

// Y appends a Pauli Y.
func (c *Circuit) Y(q int) *Circuit { return c.Append(Gate{Kind: GateY, Target: q}) }

// Z appends a Pauli Z.
func (c *Circuit) Z(q int) *Circuit { return c.Append(Gate{Kind: GateZ, Target: q}) }

// H appends a Hadamard.
func (c *Circuit) H(q int) *Circuit { return c.Append(Gate{Kind: GateH, Target: q}) }

// RX appends exp(-iθX/2).
func (c *Circuit) RX(q int, θ float64) *Circuit {
	return c.Append(Gate{Kind: GateRX, Target: q, θ: θ})
}

// RY appends exp(-iθY/2).
func (c *Circuit) RY(q int, θ float64) *Circuit {
	return c.Append(Gate{Kind: GateRY, Target: q, θ: θ})
}

// RZ appends exp(-iθZ/2).
func (c *Circuit) RZ(q int, θ float64) *Circuit {
	return c.Append(Gate{Kind: GateRZ, Target: q, θ: θ})
}

// CX appends a controlled X.
func (c *Circuit) CX(control, target int) *Circuit {
	return c.Append(Gate{Kind: GateCX, Target: target, Control: control})
}

// Amplitudes implements the InitialState interface.
func (c *Circuit) Amplitudes(numParticles int) ([]complex128, error) {
	if c.numQubits != numParticles {
		return nil, configErr("initial state", "circuit acts on %d qubits, expected %d", c.numQubits, numParticles)
	}
	if numParticles <= 0 || numParticles > MaxQubits {
		return nil, configErr("particles", "%d not in [1, %d]", numParticles, MaxQubits)
	}
	ψ := []complex128(GroundState(numParticles))
	for k, g := range c.gates {
		if g.Target < 0 || g.Target >= numParticles {
			return nil, configErr("initial state", "gate %d (%s) targets qubit %d of %d", k, g, g.Target, numParticles)
		}
		if g.Kind == GateCX {
			if g.Control < 0 || g.Control >= numParticles || g.Control == g.Target {
				return nil, configErr("initial state", "gate %d (%s) has an invalid control", k, g)
			}
			applyCX(ψ, numParticles, g.Control, g.Target)
			continue
		}
		u, err := g.unitary()
		if err != nil {
			return nil, err
		}
		apply1Q(ψ, numParticles, g.Target, u)
	}
	return ψ, nil
}

// unitary returns the 2x2 single qubit matrix of this gate, row major.
func (g Gate) unitary() ([4]complex128, error) {
	c, s := math.Cos(g.θ/2), math.Sin(g.θ/2)
	switch g.Kind {
	case GateX:
		return [4]complex128{0, 1, 1, 0}, nil
	case GateY:
		return [4]complex128{0, -1i, 1i, 0}, nil
	case GateZ:
		return [4]complex128{1, 0, 0, -1}, nil
	case GateH:
		h := complex(1/math.Sqrt2, 0)
		return [4]complex128{h, h, h, -h}, nil
	case GateRX:
		return [4]complex128{complex(c, 0), complex(0, -s), complex(0, -s), complex(c, 0)}, nil
	case GateRY:
		return [4]complex128{complex(c, 0), complex(-s, 0), complex(s, 0), complex(c, 0)}, nil
	case GateRZ:
		return [4]complex128{cmplx.Exp(complex(0, -g.θ/2)), 0, 0, cmplx.Exp(complex(0, g.θ/2))}, nil
	}
	return [4]complex128{}, configErr("gate", "unsupported gate kind %d", g.Kind)
}

func apply1Q(ψ []complex128, n, q int, u [4]complex128) {
	mask := 1 << uint(n-1-q)
	for b := range ψ {
		if b&mask != 0 {
			continue
		}
		a0, a1 := ψ[b], ψ[b|mask]
		ψ[b] = u[0]*a0 + u[1]*a1
		ψ[b|mask] = u[2]*a0 + u[3]*a1
	}
}

func applyCX(ψ []complex128, n, control, target int) {
	cMask := 1 << uint(n-1-control)
	tMask := 1 << uint(n-1-target)
	for b := range ψ {
		if b&cMask != 0 && b&tMask == 0 {
			ψ[b], ψ[b|tMask] = ψ[b|tMask], ψ[b]
		}
	}
}
