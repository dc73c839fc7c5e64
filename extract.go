package spinevo

import (
	"errors"
	"fmt"
)

// ExpectationSeries stores the per particle spin expectation value at every timestep.
type ExpectationSeries struct {
	Times  []float64
	Values [][]float64 // Values[particle][step]
}

// Particles returns the number of particles in this series.
func (s ExpectationSeries) Particles() int {
	return len(s.Values)
}

// Len returns the number of recorded timesteps, i.e. NumTimesteps+1.
func (s ExpectationSeries) Len() int {
	return len(s.Times)
}

// Particle returns the series of the provided particle.
func (s ExpectationSeries) Particle(i int) []float64 {
	return s.Values[i]
}

// TimeValue is a single (time, expectation value) point, as consumed by a plotter.
type TimeValue struct {
	Time, Value float64
}

// Pairs returns the (time, value) pairs of the provided particle.
func (s ExpectationSeries) Pairs(i int) []TimeValue {
	pairs := make([]TimeValue, len(s.Times))
	for k, t := range s.Times {
		pairs[k] = TimeValue{t, s.Values[i][k]}
	}
	return pairs
}

// SeriesExtractor converts the raw integrator output into an ExpectationSeries.
type SeriesExtractor interface {
	Extract(res *EvolutionResult, numParticles int) (ExpectationSeries, error)
}

// ExtractorFor returns the extractor adapted to the number of particles.
func ExtractorFor(numParticles int) SeriesExtractor {
	if numParticles == 1 {
		return SingleParticleExtractor{}
	}
	return MultiParticleExtractor{}
}

func checkResult(res *EvolutionResult, numObs int) error {
	if res == nil {
		return errors.New("nil evolution result")
	}
	if len(res.Observables) != len(res.Times) {
		return fmt.Errorf("%d observable records for %d times", len(res.Observables), len(res.Times))
	}
	for k, vals := range res.Observables {
		if len(vals) < numObs {
			return fmt.Errorf("step %d has %d observables, expected at least %d", k, len(vals), numObs)
		}
	}
	return nil
}

// SingleParticleExtractor selects the first recorded observable at every timestep.
type SingleParticleExtractor struct{}

// Extract implements the SeriesExtractor interface.
func (SingleParticleExtractor) Extract(res *EvolutionResult, numParticles int) (ExpectationSeries, error) {
	if numParticles != 1 {
		return ExpectationSeries{}, configErr("particles", "single particle extractor used with %d particles", numParticles)
	}
	if err := checkResult(res, 1); err != nil {
		return ExpectationSeries{}, err
	}
	vals := make([]float64, len(res.Times))
	for k, obs := range res.Observables {
		vals[k] = obs[0]
	}
	return ExpectationSeries{Times: res.Times, Values: [][]float64{vals}}, nil
}

// MultiParticleExtractor transposes the records so that Values[i][k] is the observable of particle i at step k.
type MultiParticleExtractor struct{}

// Extract implements the SeriesExtractor interface.
func (MultiParticleExtractor) Extract(res *EvolutionResult, numParticles int) (ExpectationSeries, error) {
	if numParticles <= 0 {
		return ExpectationSeries{}, configErr("particles", "must be positive, got %d", numParticles)
	}
	if err := checkResult(res, numParticles); err != nil {
		return ExpectationSeries{}, err
	}
	values := make([][]float64, numParticles)
	for i := range values {
		values[i] = make([]float64, len(res.Times))
		for k, obs := range res.Observables {
			values[i][k] = obs[i]
		}
	}
	return ExpectationSeries{Times: res.Times, Values: values}, nil
}
