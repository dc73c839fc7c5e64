package spinevo

import (
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// DefaultMaxCollapseAttempts caps the number of rejected Poisson draws per particle.
	// A draw is accepted roughly half of the time, so reaching the cap means λ is unusable for this horizon.
	DefaultMaxCollapseAttempts = 1000

	// MaxCollapseDrawSize caps the number of gaps drawn per attempt, i.e. round(numTimesteps/λ).
	MaxCollapseDrawSize = 1 << 24
)

/* Spontaneous collapse scheduling. */

// CollapseSampler draws the timesteps at which a single particle undergoes a spontaneous collapse.
// Inter-arrival gaps are Poisson distributed with mean λ.
type CollapseSampler struct {
	λ           float64
	MaxAttempts int
	particle    int
	gaps        distuv.Poisson
}

// NewCollapseSampler returns a new sampler of rate λ which draws from src.
func NewCollapseSampler(λ float64, src rand.Source) (*CollapseSampler, error) {
	if math.IsNaN(λ) || math.IsInf(λ, 0) || λ <= 0 {
		return nil, configErr("lambda", "Poisson rate must be positive, got %g", λ)
	}
	if src == nil {
		return nil, configErr("lambda", "a random source is required")
	}
	return &CollapseSampler{λ: λ, MaxAttempts: DefaultMaxCollapseAttempts, gaps: distuv.Poisson{Lambda: λ, Src: src}}, nil
}

// Lambda returns the Poisson rate of this sampler.
func (s *CollapseSampler) Lambda() float64 {
	return s.λ
}

// DrawSize returns the number of gaps drawn per attempt, i.e. round(numTimesteps/λ) but at least one.
// A ConfigurationError is returned if λ is too small for this horizon.
func (s *CollapseSampler) DrawSize(numTimesteps int) (int, error) {
	ratio := math.RoundToEven(float64(numTimesteps) / s.λ)
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio > MaxCollapseDrawSize {
		return 0, configErr("lambda", "rate %g needs %g gaps per draw over %d timesteps, at most %d supported", s.λ, ratio, numTimesteps, MaxCollapseDrawSize)
	}
	size := int(ratio)
	if size < 1 {
		size = 1
	}
	return size, nil
}

// Generate returns the strictly increasing collapse timesteps, all in [0, numTimesteps).
// A draw whose total exceeds the horizon is discarded entirely and redrawn, up to MaxAttempts times.
func (s *CollapseSampler) Generate(numTimesteps int) ([]int, error) {
	if numTimesteps <= 0 {
		return nil, configErr("timesteps", "must be positive, got %d", numTimesteps)
	}
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCollapseAttempts
	}
	size, err := s.DrawSize(numTimesteps)
	if err != nil {
		return nil, err
	}
	gaps := make([]float64, size)
	horizon := float64(numTimesteps)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		for i := range gaps {
			gaps[i] = s.gaps.Rand()
		}
		// The last cumulative value is the total, so checking the sum bounds every element.
		if floats.Sum(gaps) >= horizon {
			continue
		}
		return uniqueSteps(floats.CumSum(gaps, gaps)), nil
	}
	return nil, &SamplingError{Particle: s.particle, Attempts: maxAttempts, NumTimesteps: numTimesteps, Lambda: s.λ}
}

// uniqueSteps converts a non decreasing cumulative sum into strictly increasing timesteps.
// Zero gaps mean several arrivals on the same timestep, which are merged into one collapse.
func uniqueSteps(cumul []float64) []int {
	steps := make([]int, 0, len(cumul))
	for _, v := range cumul {
		step := int(v)
		if len(steps) > 0 && steps[len(steps)-1] == step {
			continue
		}
		steps = append(steps, step)
	}
	return steps
}

// CollapseTimes is a helper which draws a single schedule of rate λ from src.
func CollapseTimes(numTimesteps int, λ float64, src rand.Source) ([]int, error) {
	s, err := NewCollapseSampler(λ, src)
	if err != nil {
		return nil, err
	}
	return s.Generate(numTimesteps)
}

// CollapseSchedule stores, per particle, the strictly increasing collapse timesteps.
type CollapseSchedule [][]int

// NewCollapseSchedule draws one independent schedule per particle. Particles are sampled concurrently,
// each from its own PCG stream seeded with (seed, particle), so the result only depends on the seed.
func NewCollapseSchedule(numParticles, numTimesteps int, λ float64, seed uint64, maxAttempts int) (CollapseSchedule, error) {
	if numParticles <= 0 {
		return nil, configErr("particles", "must be positive, got %d", numParticles)
	}
	if numTimesteps <= 0 {
		return nil, configErr("timesteps", "must be positive, got %d", numTimesteps)
	}
	schedule := make(CollapseSchedule, numParticles)
	var g errgroup.Group
	for p := 0; p < numParticles; p++ {
		sampler, err := NewCollapseSampler(λ, rand.NewPCG(seed, uint64(p)))
		if err != nil {
			return nil, err
		}
		sampler.particle = p
		if maxAttempts > 0 {
			sampler.MaxAttempts = maxAttempts
		}
		g.Go(func() error {
			steps, err := sampler.Generate(numTimesteps)
			if err != nil {
				return err
			}
			schedule[p] = steps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return schedule, nil
}

// Particles returns the number of particles in this schedule.
func (c CollapseSchedule) Particles() int {
	return len(c)
}

// Contains returns whether the provided particle collapses at the provided step.
func (c CollapseSchedule) Contains(particle, step int) bool {
	if particle < 0 || particle >= len(c) {
		return false
	}
	steps := c[particle]
	i := sort.SearchInts(steps, step)
	return i < len(steps) && steps[i] == step
}

// At returns the particles which collapse at the provided step, in ascending order.
func (c CollapseSchedule) At(step int) []int {
	var particles []int
	for p := range c {
		if c.Contains(p, step) {
			particles = append(particles, p)
		}
	}
	return particles
}

// Events returns the total number of scheduled collapses.
func (c CollapseSchedule) Events() (n int) {
	for _, steps := range c {
		n += len(steps)
	}
	return
}

// CollapseEvent records a collapse which was applied during the evolution.
type CollapseEvent struct {
	Particle int
	Step     int
	Time     float64
}

// Collapser applies the effect of a spontaneous collapse of a particle on the state, in place.
type Collapser interface {
	Collapse(particle, step int, ψ []complex128)
}

// NoCollapse is the default Collapser: the physical collapse model is not defined, so the state is left untouched.
type NoCollapse struct{}

// Collapse implements the Collapser interface.
func (NoCollapse) Collapse(particle, step int, ψ []complex128) {}
