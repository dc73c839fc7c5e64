package spinevo

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/ChristopherRabotin/ode"
	"github.com/ready-steady/ode/dopri"
)

// EvolutionProblem defines everything an Integrator needs to evolve a state.
type EvolutionProblem struct {
	Hamiltonian  PauliOp
	Time         float64 // total evolution time
	NumTimesteps int     // number of equal sub-intervals of [0, Time]
	InitialState []complex128
	Observables  []PauliOp        // recorded at every timestep
	Collapses    CollapseSchedule // optional exogenous collapse markers
	Collapser    Collapser        // effect of a collapse, defaults to NoCollapse
}

func (p EvolutionProblem) validate() error {
	n := p.Hamiltonian.NumQubits()
	if n == 0 {
		return configErr("hamiltonian", "empty operator")
	}
	if math.IsNaN(p.Time) || math.IsInf(p.Time, 0) || p.Time <= 0 {
		return configErr("time", "must be positive, got %g", p.Time)
	}
	if p.NumTimesteps <= 0 {
		return configErr("timesteps", "must be positive, got %d", p.NumTimesteps)
	}
	if len(p.InitialState) != 1<<uint(n) {
		return configErr("initial state", "%d amplitudes for a %d qubit Hamiltonian", len(p.InitialState), n)
	}
	for i, obs := range p.Observables {
		if obs.NumQubits() != n {
			return configErr("observables", "observable %d acts on %d qubits, expected %d", i, obs.NumQubits(), n)
		}
	}
	if p.Collapses != nil && p.Collapses.Particles() != n {
		return configErr("collapses", "schedule has %d particles, expected %d", p.Collapses.Particles(), n)
	}
	return nil
}

// EvolutionResult stores what an Integrator recorded.
type EvolutionResult struct {
	Times       []float64   // NumTimesteps+1 points from 0 to Time inclusive
	Observables [][]float64 // Observables[step][observable]
	FinalState  []complex128
	Collapses   []CollapseEvent
}

// Integrator evolves a state under a Hamiltonian and records the observables at every timestep.
type Integrator interface {
	Evolve(p EvolutionProblem) (*EvolutionResult, error)
	Method() string
}

// recorder is shared by all integrators: it records the observables and applies the scheduled collapses.
type recorder struct {
	method    string
	p         EvolutionProblem
	collapser Collapser
	res       *EvolutionResult
}

func newRecorder(method string, p EvolutionProblem) *recorder {
	times := TimeGrid(p.Time, p.NumTimesteps)
	collapser := p.Collapser
	if collapser == nil {
		collapser = NoCollapse{}
	}
	return &recorder{method, p, collapser, &EvolutionResult{Times: times, Observables: make([][]float64, p.NumTimesteps+1)}}
}

// record stores the expectation values of the state at the provided step.
func (r *recorder) record(step int, ψ []complex128) error {
	if !isFinite(ψ) {
		return &IntegratorError{Method: r.method, Step: step, Err: errors.New("state diverged (NaN or Inf)")}
	}
	vals := make([]float64, len(r.p.Observables))
	for i, obs := range r.p.Observables {
		vals[i] = obs.Expectation(ψ)
	}
	r.res.Observables[step] = vals
	return nil
}

// collapse applies the collapses scheduled at the start of the sub-interval [step, step+1].
func (r *recorder) collapse(step int, ψ []complex128) {
	if r.p.Collapses == nil || step >= r.p.NumTimesteps {
		return
	}
	for _, particle := range r.p.Collapses.At(step) {
		r.collapser.Collapse(particle, step, ψ)
		r.res.Collapses = append(r.res.Collapses, CollapseEvent{particle, step, r.res.Times[step]})
	}
}

func (r *recorder) finish(ψ []complex128) *EvolutionResult {
	r.res.FinalState = ψ
	return r.res
}

func copyState(ψ []complex128) []complex128 {
	c := make([]complex128, len(ψ))
	copy(c, ψ)
	return c
}

/* Trotter product formula. */

// TrotterIntegrator evolves with a Lie-Trotter (order 1) or Strang (order 2) product formula.
// Each Pauli term P with coefficient c is applied exactly as exp(-icPdt) = cos(cdt) I - i sin(cdt) P.
type TrotterIntegrator struct {
	Order int
}

// NewTrotterIntegrator returns a new product formula integrator of order 1 or 2.
func NewTrotterIntegrator(order int) (TrotterIntegrator, error) {
	if order != 1 && order != 2 {
		return TrotterIntegrator{}, configErr("trotter order", "must be 1 or 2, got %d", order)
	}
	return TrotterIntegrator{order}, nil
}

// Method implements the Integrator interface.
func (t TrotterIntegrator) Method() string {
	return fmt.Sprintf("trotter%d", t.order())
}

func (t TrotterIntegrator) order() int {
	if t.Order == 2 {
		return 2
	}
	return 1
}

// Evolve implements the Integrator interface.
func (t TrotterIntegrator) Evolve(p EvolutionProblem) (*EvolutionResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	rec := newRecorder(t.Method(), p)
	ψ := copyState(p.InitialState)
	buf := make([]complex128, len(ψ))
	dt := p.Time / float64(p.NumTimesteps)
	for k := 0; k < p.NumTimesteps; k++ {
		if err := rec.record(k, ψ); err != nil {
			return nil, err
		}
		rec.collapse(k, ψ)
		t.step(p.Hamiltonian, ψ, buf, dt)
	}
	if err := rec.record(p.NumTimesteps, ψ); err != nil {
		return nil, err
	}
	return rec.finish(ψ), nil
}

// step performs one Trotter step of duration dt, in place.
func (t TrotterIntegrator) step(H PauliOp, ψ, buf []complex128, dt float64) {
	if t.order() == 1 {
		for i, ps := range H.strs {
			rotate(ψ, buf, ps, H.terms[i].Coeff*dt)
		}
		return
	}
	half := dt / 2
	for i, ps := range H.strs {
		rotate(ψ, buf, ps, H.terms[i].Coeff*half)
	}
	for i := len(H.strs) - 1; i >= 0; i-- {
		rotate(ψ, buf, H.strs[i], H.terms[i].Coeff*half)
	}
}

// rotate applies exp(-iθP) to ψ.
func rotate(ψ, buf []complex128, ps pauliString, θ float64) {
	if θ == 0 {
		return
	}
	for i := range buf {
		buf[i] = 0
	}
	ps.addTo(buf, ψ, 1)
	s, c := math.Sincos(θ)
	cosθ, isinθ := complex(c, 0), complex(0, s)
	for i := range ψ {
		ψ[i] = cosθ*ψ[i] - isinθ*buf[i]
	}
}

/* Schrödinger equation integrated as a real ODE system. */

// schrodinger implements ode.Integrable on [Re ψ, Im ψ] with dψ/dt = -iHψ.
type schrodinger struct {
	H          PauliOp
	state      []float64
	ψ, y, φ    []complex128 // buffers
	step, last int
	rec        *recorder
	err        error
}

func newSchrodinger(p EvolutionProblem, rec *recorder) *schrodinger {
	d := len(p.InitialState)
	s := &schrodinger{H: p.Hamiltonian, ψ: make([]complex128, d), y: make([]complex128, d), φ: make([]complex128, d), last: p.NumTimesteps, rec: rec}
	s.state = packState(p.InitialState)
	return s
}

// GetState implements the ode.Integrable interface.
func (s *schrodinger) GetState() []float64 {
	return s.state
}

// SetState implements the ode.Integrable interface.
func (s *schrodinger) SetState(t float64, state []float64) {
	s.state = state
	s.step++
	unpackState(s.ψ, state)
	if err := s.rec.record(s.step, s.ψ); err != nil {
		s.err = err
		return
	}
	if s.step < s.last && s.rec.p.Collapses != nil {
		s.rec.collapse(s.step, s.ψ)
		s.state = packState(s.ψ)
	}
}

// Stop implements the ode.Integrable interface. Time is tracked by step count to avoid float drift.
func (s *schrodinger) Stop(t float64) bool {
	return s.err != nil || s.step >= s.last
}

// Func implements the ode.Integrable interface.
func (s *schrodinger) Func(t float64, f []float64) []float64 {
	fDot := make([]float64, len(f))
	s.derivative(f, fDot)
	return fDot
}

// derivative computes d/dt [Re ψ, Im ψ] = [Im Hψ, -Re Hψ].
func (s *schrodinger) derivative(f, fDot []float64) {
	d := len(s.y)
	unpackState(s.y, f)
	s.H.applyTo(s.φ, s.y)
	for i, v := range s.φ {
		fDot[i] = imag(v)
		fDot[d+i] = -real(v)
	}
}

// RK4Integrator integrates the Schrödinger equation with a fixed step RK4, one step per timestep.
// It is not unitary, so the norm drifts as O(dt^4).
type RK4Integrator struct{}

// Method implements the Integrator interface.
func (RK4Integrator) Method() string {
	return "rk4"
}

// Evolve implements the Integrator interface.
func (r RK4Integrator) Evolve(p EvolutionProblem) (*EvolutionResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	rec := newRecorder(r.Method(), p)
	ψ0 := copyState(p.InitialState)
	if err := rec.record(0, ψ0); err != nil {
		return nil, err
	}
	rec.collapse(0, ψ0)
	q := p
	q.InitialState = ψ0
	sys := newSchrodinger(q, rec)
	ode.NewRK4(0, p.Time/float64(p.NumTimesteps), sys).Solve() // Blocking.
	if sys.err != nil {
		return nil, sys.err
	}
	ψ := make([]complex128, len(ψ0))
	unpackState(ψ, sys.state)
	return rec.finish(ψ), nil
}

// DopriIntegrator integrates the Schrödinger equation with an adaptive Dormand-Prince scheme on every sub-interval.
type DopriIntegrator struct {
	AbsError, RelError float64
}

const (
	defaultDopriAbsError = 1e-10
	defaultDopriRelError = 1e-8
)

// Method implements the Integrator interface.
func (DopriIntegrator) Method() string {
	return "dopri"
}

// Evolve implements the Integrator interface.
func (di DopriIntegrator) Evolve(p EvolutionProblem) (*EvolutionResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	conf := dopri.DefaultConfig()
	conf.AbsError, conf.RelError = defaultDopriAbsError, defaultDopriRelError
	if di.AbsError > 0 {
		conf.AbsError = di.AbsError
	}
	if di.RelError > 0 {
		conf.RelError = di.RelError
	}
	integ, err := dopri.New(conf)
	if err != nil {
		return nil, &IntegratorError{Method: di.Method(), Err: err}
	}
	rec := newRecorder(di.Method(), p)
	sys := newSchrodinger(p, rec)
	dydx := func(_ float64, y, f []float64) {
		sys.derivative(y, f)
	}
	ψ := copyState(p.InitialState)
	nd := 2 * len(ψ)
	for k := 0; k < p.NumTimesteps; k++ {
		if err := rec.record(k, ψ); err != nil {
			return nil, err
		}
		rec.collapse(k, ψ)
		ys, _, err := integ.Compute(dydx, packState(ψ), []float64{rec.res.Times[k], rec.res.Times[k+1]})
		if err != nil {
			return nil, &IntegratorError{Method: di.Method(), Step: k, Err: err}
		}
		// Without intermediate points, every internal step is returned: the last row is the end of the interval.
		unpackState(ψ, ys[len(ys)-nd:])
	}
	if err := rec.record(p.NumTimesteps, ψ); err != nil {
		return nil, err
	}
	return rec.finish(ψ), nil
}

// isFinite returns whether no amplitude is NaN or Inf.
func isFinite(ψ []complex128) bool {
	for _, v := range ψ {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return false
		}
	}
	return true
}
