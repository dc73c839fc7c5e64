package spinevo

// spinCoeff is ħ/2 in natural units: S_z = 0.5 Z.
const spinCoeff = 0.5

// BuildObservables returns the spin observables 0.5*Z_i, one per particle and in particle order.
// E.g. 3 particles: [0.5*ZII, 0.5*IZI, 0.5*IIZ].
func BuildObservables(numParticles int) ([]PauliOp, error) {
	if numParticles <= 0 {
		return nil, configErr("particles", "must be positive, got %d", numParticles)
	}
	if numParticles > MaxQubits {
		return nil, configErr("particles", "at most %d supported, got %d", MaxQubits, numParticles)
	}
	obs := make([]PauliOp, numParticles)
	for i := 0; i < numParticles; i++ {
		op, err := NewPauliOp(PauliTerm{siteLabel(numParticles, i, 'Z'), spinCoeff})
		if err != nil {
			return nil, err
		}
		obs[i] = op
	}
	return obs, nil
}
