package spinevo

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestGroundState(t *testing.T) {
	ψ, err := GroundState(2).Amplitudes(2)
	if err != nil {
		t.Fatal(err)
	}
	if !cmplxs.Equal(ψ, []complex128{1, 0, 0, 0}) {
		t.Fatalf("invalid ground state %v", ψ)
	}
	// Amplitudes returns a copy.
	s := GroundState(1)
	ψ, _ = s.Amplitudes(1)
	ψ[0] = 0
	if s[0] != 1 {
		t.Fatal("state vector was modified through its amplitudes")
	}
}

func TestStateVectorErrors(t *testing.T) {
	for _, tc := range []struct {
		s StateVector
		n int
	}{
		{GroundState(2), 3},
		{GroundState(2), 0},
		{StateVector{1, 1}, 1},
		{StateVector{0, 0}, 1},
	} {
		_, err := tc.s.Amplitudes(tc.n)
		var cerr *ConfigurationError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected a ConfigurationError for %v on %d particles, got %v", tc.s, tc.n, err)
		}
	}
	h := complex(1/math.Sqrt2, 0)
	if _, err := (StateVector{h, -h}).Amplitudes(1); err != nil {
		t.Fatalf("|-> should be valid: %s", err)
	}
}

func TestCircuitGates(t *testing.T) {
	h := complex(1/math.Sqrt2, 0)
	for _, tc := range []struct {
		circ *Circuit
		exp  []complex128
	}{
		{NewCircuit(1).X(0), []complex128{0, 1}},
		{NewCircuit(1).Y(0), []complex128{0, 1i}},
		{NewCircuit(1).X(0).Z(0), []complex128{0, -1}},
		{NewCircuit(1).H(0), []complex128{h, h}},
		{NewCircuit(1).RX(0, math.Pi), []complex128{0, -1i}},
		{NewCircuit(1).RY(0, math.Pi/2), []complex128{h, h}},
		{NewCircuit(1).RZ(0, math.Pi), []complex128{-1i, 0}},
		{NewCircuit(2).X(1), []complex128{0, 1, 0, 0}},
		{NewCircuit(2).H(0).CX(0, 1), []complex128{h, 0, 0, h}}, // Bell
		{NewCircuit(2).X(1).CX(1, 0), []complex128{0, 0, 0, 1}},
	} {
		ψ, err := tc.circ.Amplitudes(tc.circ.NumQubits())
		if err != nil {
			t.Fatal(err)
		}
		if !cmplxs.EqualApprox(ψ, tc.exp, 1e-15) {
			t.Fatalf("%v: got %v, expected %v", tc.circ.Gates(), ψ, tc.exp)
		}
		if !scalar.EqualWithinAbs(Norm(ψ), 1, 1e-15) {
			t.Fatalf("%v is not normalized", tc.circ.Gates())
		}
	}
}

func TestCircuitFreshAmplitudes(t *testing.T) {
	c := NewCircuit(1).H(0)
	ψ1, _ := c.Amplitudes(1)
	ψ1[0] = 42
	ψ2, _ := c.Amplitudes(1)
	if ψ2[0] == 42 {
		t.Fatal("circuit amplitudes are shared between calls")
	}
}

func TestCircuitErrors(t *testing.T) {
	for _, c := range []*Circuit{
		NewCircuit(3).X(0),
		NewCircuit(2).X(2),
		NewCircuit(2).X(-1),
		NewCircuit(2).CX(0, 0),
		NewCircuit(2).CX(5, 0),
		NewCircuit(2).Append(Gate{Kind: 42}),
	} {
		_, err := c.Amplitudes(2)
		var cerr *ConfigurationError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected a ConfigurationError for %v, got %v", c.Gates(), err)
		}
	}
}

func TestParseGate(t *testing.T) {
	for in, exp := range map[string]Gate{
		"h:0":       {Kind: GateH, Target: 0},
		" X:3 ":     {Kind: GateX, Target: 3},
		"rx:1:1.5":  {Kind: GateRX, Target: 1, θ: 1.5},
		"rz:0:-0.5": {Kind: GateRZ, Target: 0, θ: -0.5},
		"cx:0:2":    {Kind: GateCX, Control: 0, Target: 2},
	} {
		g, err := ParseGate(in)
		if err != nil {
			t.Fatalf("%q: %s", in, err)
		}
		if g != exp {
			t.Fatalf("%q: got %+v, expected %+v", in, g, exp)
		}
		// Round trip through the string representation.
		if g2, err := ParseGate(g.String()); err != nil || g2 != g {
			t.Fatalf("%s does not round trip: %+v (%v)", g, g2, err)
		}
	}
	for _, in := range []string{"", "h", "t:0", "h:a", "h:0:1", "rx:0", "rx:0:a", "cx:0", "cx:0:b"} {
		if _, err := ParseGate(in); err == nil {
			t.Fatalf("%q should not parse", in)
		}
	}
}
