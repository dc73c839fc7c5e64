package spinevo

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func allIntegrators() []Integrator {
	t1, _ := NewTrotterIntegrator(1)
	t2, _ := NewTrotterIntegrator(2)
	return []Integrator{t1, t2, RK4Integrator{}, DopriIntegrator{}}
}

func problem(H PauliOp, T float64, N int) EvolutionProblem {
	obs, _ := BuildObservables(H.NumQubits())
	return EvolutionProblem{Hamiltonian: H, Time: T, NumTimesteps: N, InitialState: GroundState(H.NumQubits()), Observables: obs}
}

// maxError returns the largest deviation of the first observable from exp.
func maxError(res *EvolutionResult, exp func(t float64) float64) (maxErr float64) {
	for k, t := range res.Times {
		maxErr = math.Max(maxErr, math.Abs(res.Observables[k][0]-exp(t)))
	}
	return
}

func TestIntegratorMethods(t *testing.T) {
	exp := []string{"trotter1", "trotter2", "rk4", "dopri"}
	for i, integ := range allIntegrators() {
		if integ.Method() != exp[i] {
			t.Fatalf("expected %s, got %s", exp[i], integ.Method())
		}
	}
	for _, order := range []int{0, 3, -1} {
		var cerr *ConfigurationError
		if _, err := NewTrotterIntegrator(order); !errors.As(err, &cerr) {
			t.Fatalf("order %d should fail", order)
		}
	}
}

func TestZeroHamiltonian(t *testing.T) {
	H, _ := ZeroOp(2)
	for _, integ := range allIntegrators() {
		res, err := integ.Evolve(problem(H, 1, 10))
		if err != nil {
			t.Fatalf("%s: %s", integ.Method(), err)
		}
		if len(res.Times) != 11 || len(res.Observables) != 11 {
			t.Fatalf("%s: expected 11 records, got %d", integ.Method(), len(res.Observables))
		}
		if res.Times[0] != 0 || res.Times[10] != 1 {
			t.Fatalf("%s: invalid time grid %v", integ.Method(), res.Times)
		}
		for k, vals := range res.Observables {
			for i, v := range vals {
				if !scalar.EqualWithinAbs(v, 0.5, 1e-9) {
					t.Fatalf("%s: particle %d at step %d: %f", integ.Method(), i, k, v)
				}
			}
		}
	}
}

func TestRabiOscillation(t *testing.T) {
	const h = 0.7
	H := MustPauliOp(PauliTerm{"X", h})
	exact := func(t float64) float64 { return 0.5 * math.Cos(2*h*t) }
	for _, integ := range allIntegrators() {
		res, err := integ.Evolve(problem(H, 10, 200))
		if err != nil {
			t.Fatalf("%s: %s", integ.Method(), err)
		}
		tol := 1e-5
		if _, ok := integ.(TrotterIntegrator); ok {
			// A single term is applied exactly.
			tol = 1e-12
		}
		if e := maxError(res, exact); e > tol {
			t.Fatalf("%s: error %e > %e", integ.Method(), e, tol)
		}
	}
}

func TestObliqueField(t *testing.T) {
	const (
		hx, hz = 0.8, 0.6
		T      = 5.0
	)
	H := MustPauliOp(PauliTerm{"X", hx}, PauliTerm{"Z", hz})
	Ω := math.Hypot(hx, hz)
	nz := hz / Ω
	exact := func(t float64) float64 {
		return 0.5 * (nz*nz + (1-nz*nz)*math.Cos(2*Ω*t))
	}
	errs := make(map[string][]float64)
	for _, N := range []int{100, 400} {
		for _, integ := range allIntegrators() {
			res, err := integ.Evolve(problem(H, T, N))
			if err != nil {
				t.Fatalf("%s: %s", integ.Method(), err)
			}
			errs[integ.Method()] = append(errs[integ.Method()], maxError(res, exact))
		}
	}
	for _, method := range []string{"trotter1", "trotter2"} {
		if e := errs[method]; e[1] >= e[0]/2 {
			t.Fatalf("%s: error did not shrink with the step size: %v", method, e)
		}
	}
	for i := range errs["trotter1"] {
		if errs["trotter2"][i] >= errs["trotter1"][i] {
			t.Fatalf("second order (%e) does not beat first order (%e)", errs["trotter2"][i], errs["trotter1"][i])
		}
	}
	if e := errs["rk4"][1]; e > 1e-6 {
		t.Fatalf("rk4 error %e", e)
	}
	if e := errs["dopri"][1]; e > 1e-6 {
		t.Fatalf("dopri error %e", e)
	}
}

func TestIntegratorsAgree(t *testing.T) {
	H, _ := IsingChain(3, 1, 0.6)
	p := problem(H, 2, 1000)
	p.InitialState, _ = NewCircuit(3).H(0).RY(2, 0.3).Amplitudes(3)
	initial := make([]complex128, len(p.InitialState))
	copy(initial, p.InitialState)
	var ref *EvolutionResult
	for _, integ := range []Integrator{DopriIntegrator{}, TrotterIntegrator{Order: 2}, RK4Integrator{}} {
		res, err := integ.Evolve(p)
		if err != nil {
			t.Fatalf("%s: %s", integ.Method(), err)
		}
		if !scalar.EqualWithinAbs(Norm(res.FinalState), 1, 1e-6) {
			t.Fatalf("%s: norm drifted to %f", integ.Method(), Norm(res.FinalState))
		}
		if !cmplxs.Equal(p.InitialState, initial) {
			t.Fatalf("%s modified the initial state", integ.Method())
		}
		if ref == nil {
			ref = res
			continue
		}
		for k := range res.Observables {
			if !floats.EqualApprox(res.Observables[k], ref.Observables[k], 1e-4) {
				t.Fatalf("%s differs at step %d: %v != %v", integ.Method(), k, res.Observables[k], ref.Observables[k])
			}
		}
		if f := Fidelity(res.FinalState, ref.FinalState); !scalar.EqualWithinAbs(f, 1, 1e-6) {
			t.Fatalf("%s: final state fidelity %f", integ.Method(), f)
		}
	}
}

func TestTrotterUnitary(t *testing.T) {
	H, _ := IsingChain(5, 1.3, 0.4)
	for _, order := range []int{1, 2} {
		res, err := TrotterIntegrator{Order: order}.Evolve(problem(H, 10, 37))
		if err != nil {
			t.Fatal(err)
		}
		if !scalar.EqualWithinAbs(Norm(res.FinalState), 1, 1e-12) {
			t.Fatalf("order %d: norm %.15f", order, Norm(res.FinalState))
		}
	}
}

type countingCollapser struct {
	events []CollapseEvent
}

func (c *countingCollapser) Collapse(particle, step int, ψ []complex128) {
	c.events = append(c.events, CollapseEvent{Particle: particle, Step: step})
}

func TestCollapserInvocations(t *testing.T) {
	H, _ := IsingChain(3, 1, 1)
	schedule, err := NewCollapseSchedule(3, 100, 5, 7, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, integ := range allIntegrators() {
		c := &countingCollapser{}
		p := problem(H, 1, 100)
		p.Collapses = schedule
		p.Collapser = c
		res, err := integ.Evolve(p)
		if err != nil {
			t.Fatalf("%s: %s", integ.Method(), err)
		}
		if len(c.events) != schedule.Events() || len(res.Collapses) != schedule.Events() {
			t.Fatalf("%s: %d calls and %d records for %d events", integ.Method(), len(c.events), len(res.Collapses), schedule.Events())
		}
		for i, ev := range c.events {
			if !schedule.Contains(ev.Particle, ev.Step) {
				t.Fatalf("%s: unexpected collapse %+v", integ.Method(), ev)
			}
			if i > 0 {
				prev := c.events[i-1]
				if ev.Step < prev.Step || ev.Step == prev.Step && ev.Particle <= prev.Particle {
					t.Fatalf("%s: collapses out of order %+v then %+v", integ.Method(), prev, ev)
				}
			}
			if res.Collapses[i].Time != res.Times[ev.Step] {
				t.Fatalf("%s: collapse %d recorded at %f", integ.Method(), i, res.Collapses[i].Time)
			}
		}
	}
}

// flipCollapser flips the spin of the collapsing particle.
type flipCollapser struct {
	n int
}

func (f flipCollapser) Collapse(particle, step int, ψ []complex128) {
	apply1Q(ψ, f.n, particle, [4]complex128{0, 1, 1, 0})
}

func TestCollapseOrdering(t *testing.T) {
	// The value at the collapse step is recorded before the collapse.
	H, _ := ZeroOp(1)
	exp := []float64{0.5, 0.5, 0.5, 0.5, -0.5, -0.5, -0.5}
	for _, integ := range allIntegrators() {
		p := problem(H, 1, 6)
		p.Collapses = CollapseSchedule{{3}}
		p.Collapser = flipCollapser{1}
		res, err := integ.Evolve(p)
		if err != nil {
			t.Fatalf("%s: %s", integ.Method(), err)
		}
		for k, vals := range res.Observables {
			if !scalar.EqualWithinAbs(vals[0], exp[k], 1e-9) {
				t.Fatalf("%s: step %d: %f != %f", integ.Method(), k, vals[0], exp[k])
			}
		}
	}
}

type nanCollapser struct{}

func (nanCollapser) Collapse(particle, step int, ψ []complex128) {
	ψ[0] = cmplx.NaN()
}

func TestIntegratorDivergence(t *testing.T) {
	H, _ := ZeroOp(1)
	p := problem(H, 1, 6)
	p.Collapses = CollapseSchedule{{2}}
	p.Collapser = nanCollapser{}
	_, err := TrotterIntegrator{Order: 1}.Evolve(p)
	var ierr *IntegratorError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected an IntegratorError, got %v", err)
	}
	if ierr.Step != 3 || ierr.Method != "trotter1" {
		t.Fatalf("invalid error %+v", ierr)
	}
}

func TestEvolutionProblemValidation(t *testing.T) {
	H, _ := IsingChain(2, 1, 1)
	obs1, _ := BuildObservables(1)
	for name, mod := range map[string]func(p *EvolutionProblem){
		"time":        func(p *EvolutionProblem) { p.Time = 0 },
		"nan time":    func(p *EvolutionProblem) { p.Time = math.NaN() },
		"timesteps":   func(p *EvolutionProblem) { p.NumTimesteps = 0 },
		"state":       func(p *EvolutionProblem) { p.InitialState = GroundState(1) },
		"observables": func(p *EvolutionProblem) { p.Observables = obs1 },
		"collapses":   func(p *EvolutionProblem) { p.Collapses = CollapseSchedule{{1}} },
		"hamiltonian": func(p *EvolutionProblem) { p.Hamiltonian = PauliOp{} },
	} {
		p := problem(H, 1, 10)
		mod(&p)
		for _, integ := range allIntegrators() {
			_, err := integ.Evolve(p)
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("%s with %s: expected a ConfigurationError, got %v", integ.Method(), name, err)
			}
		}
	}
}
