package spinevo

import (
	"errors"
	"math"
	"os"
	"time"

	kitlog "github.com/go-kit/log"
)

/* Orchestrates the time evolution of a spin-1/2 chain. */

// SimulationConfig defines a simulation.
type SimulationConfig struct {
	NumParticles        int
	Hamiltonian         PauliOp
	Time                float64      // total evolution time
	NumTimesteps        int          // number of Trotter steps
	Lambda              float64      // Poisson rate of the collapse gaps, zero if unset
	InitialState        InitialState // nil means the ground state
	Collapse            bool         // whether spontaneous collapses are scheduled
	Seed                uint64       // seed of the collapse sampling
	MaxCollapseAttempts int          // zero uses the configured default
}

// Validate returns a ConfigurationError if this configuration cannot be simulated.
func (c SimulationConfig) Validate() error {
	if c.NumParticles <= 0 {
		return configErr("particles", "must be positive, got %d", c.NumParticles)
	}
	if c.NumParticles > MaxQubits {
		return configErr("particles", "at most %d supported, got %d", MaxQubits, c.NumParticles)
	}
	if c.Hamiltonian.NumQubits() != c.NumParticles {
		return configErr("hamiltonian", "acts on %d qubits but there are %d particles", c.Hamiltonian.NumQubits(), c.NumParticles)
	}
	if math.IsNaN(c.Time) || math.IsInf(c.Time, 0) || c.Time <= 0 {
		return configErr("time", "must be positive, got %g", c.Time)
	}
	if c.NumTimesteps <= 0 {
		return configErr("timesteps", "must be positive, got %d", c.NumTimesteps)
	}
	if c.Collapse && (math.IsNaN(c.Lambda) || math.IsInf(c.Lambda, 0) || c.Lambda <= 0) {
		return configErr("lambda", "spontaneous collapse requires a positive Poisson rate, got %g", c.Lambda)
	}
	if c.MaxCollapseAttempts < 0 {
		return configErr("max collapse attempts", "must not be negative, got %d", c.MaxCollapseAttempts)
	}
	return nil
}

// SpinEvolution evolves a chain of spin-1/2 particles and extracts the spin expectation values.
type SpinEvolution struct {
	Name        string
	conf        SimulationConfig
	integrator  Integrator
	extractor   SeriesExtractor
	collapser   Collapser
	logger      kitlog.Logger
	confErr     error // invalid configuration file, replaced by the defaults
	observables []PauliOp
	schedule    CollapseSchedule
	result      *EvolutionResult
}

// NewSpinEvolution returns a new evolution. If integ is nil, the Trotter integrator of the configured order is used.
func NewSpinEvolution(name string, conf SimulationConfig, integ Integrator) (*SpinEvolution, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	settings, err := spinConfig() // Defaults are returned if no configuration is available.
	if os.Getenv(configEnv) == "" {
		err = nil
	}
	if integ == nil {
		integ = TrotterIntegrator{Order: settings.trotterOrder}
	}
	if conf.MaxCollapseAttempts == 0 {
		conf.MaxCollapseAttempts = settings.maxCollapseAttempts
	}
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	klog = kitlog.With(klog, "evolution", name)
	return &SpinEvolution{Name: name, conf: conf, integrator: integ, extractor: ExtractorFor(conf.NumParticles), collapser: NoCollapse{}, logger: klog, confErr: err}, nil
}

// SetLogger replaces the default logfmt logger.
func (e *SpinEvolution) SetLogger(l kitlog.Logger) {
	e.logger = kitlog.With(l, "evolution", e.Name)
}

// SetCollapser sets the effect of a spontaneous collapse on the state.
func (e *SpinEvolution) SetCollapser(c Collapser) {
	if c == nil {
		c = NoCollapse{}
	}
	e.collapser = c
}

// SetExtractor overrides the extractor picked from the number of particles.
func (e *SpinEvolution) SetExtractor(x SeriesExtractor) {
	if x != nil {
		e.extractor = x
	}
}

// Config returns the configuration of this evolution.
func (e *SpinEvolution) Config() SimulationConfig {
	return e.conf
}

// Observables returns the observables of the last Configure call.
func (e *SpinEvolution) Observables() []PauliOp {
	return e.observables
}

// Schedule returns the collapse schedule of the last Configure call, nil if collapses are disabled.
func (e *SpinEvolution) Schedule() CollapseSchedule {
	return e.schedule
}

// Result returns the raw integrator output of the last successful evolution.
func (e *SpinEvolution) Result() *EvolutionResult {
	return e.result
}

// initialState resolves the initial state. A new ground state is allocated on every call.
func (e *SpinEvolution) initialState() ([]complex128, error) {
	if e.conf.InitialState == nil {
		return GroundState(e.conf.NumParticles), nil
	}
	return e.conf.InitialState.Amplitudes(e.conf.NumParticles)
}

// Configure builds the observables and, if enabled, draws one collapse schedule per particle.
func (e *SpinEvolution) Configure() ([]PauliOp, CollapseSchedule, error) {
	obs, err := BuildObservables(e.conf.NumParticles)
	if err != nil {
		return nil, nil, err
	}
	var schedule CollapseSchedule
	if e.conf.Collapse {
		schedule, err = NewCollapseSchedule(e.conf.NumParticles, e.conf.NumTimesteps, e.conf.Lambda, e.conf.Seed, e.conf.MaxCollapseAttempts)
		if err != nil {
			return nil, nil, err
		}
	}
	e.observables = obs
	e.schedule = schedule
	return obs, schedule, nil
}

// Evolve runs the whole simulation and returns the spin expectation value of every particle at every timestep.
// No partial result is returned on failure.
func (e *SpinEvolution) Evolve() (ExpectationSeries, error) {
	if e.confErr != nil {
		e.logger.Log("level", "warning", "subsys", "config", "err", e.confErr, "using", "defaults")
	}
	ψ0, err := e.initialState()
	if err != nil {
		e.logger.Log("level", "critical", "subsys", "init", "err", err)
		return ExpectationSeries{}, err
	}
	obs, schedule, err := e.Configure()
	if err != nil {
		e.logger.Log("level", "critical", "subsys", "collapse", "err", err)
		return ExpectationSeries{}, err
	}
	e.logger.Log("level", "info", "subsys", "evolution", "integrator", e.integrator.Method(), "particles", e.conf.NumParticles, "time", e.conf.Time, "timesteps", e.conf.NumTimesteps, "collapses", schedule.Events())

	start := time.Now()
	res, err := e.integrator.Evolve(EvolutionProblem{
		Hamiltonian:  e.conf.Hamiltonian,
		Time:         e.conf.Time,
		NumTimesteps: e.conf.NumTimesteps,
		InitialState: ψ0,
		Observables:  obs,
		Collapses:    schedule,
		Collapser:    e.collapser,
	})
	if err != nil {
		var cerr *ConfigurationError
		var ierr *IntegratorError
		if !errors.As(err, &cerr) && !errors.As(err, &ierr) {
			err = &IntegratorError{Method: e.integrator.Method(), Step: -1, Err: err}
		}
		e.logger.Log("level", "critical", "subsys", "evolution", "err", err)
		return ExpectationSeries{}, err
	}
	series, err := e.extractor.Extract(res, e.conf.NumParticles)
	if err != nil {
		e.logger.Log("level", "critical", "subsys", "extract", "err", err)
		return ExpectationSeries{}, err
	}
	e.result = res
	e.logger.Log("level", "notice", "subsys", "evolution", "status", "finished", "duration", time.Since(start), "norm", Norm(res.FinalState), "collapsed", len(res.Collapses))
	return series, nil
}
