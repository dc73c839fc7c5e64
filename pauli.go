package spinevo

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
)

const (
	// MaxQubits is the largest chain which can be stored as a dense amplitude vector.
	MaxQubits = 24
)

// iPow stores i^k for k in [0, 4).
var iPow = [4]complex128{1, 1i, -1, -1i}

// PauliTerm is a single weighted Pauli string, e.g. {"ZI", 0.5}.
// Position p of the label acts on particle p.
type PauliTerm struct {
	Label string  `mapstructure:"label"`
	Coeff float64 `mapstructure:"coeff"`
}

// pauliString is the bitmask form of a Pauli label: P|b> = i^nY (-1)^|b&z| |b^x>.
type pauliString struct {
	x, z uint64
	nY   int
}

func (p pauliString) phase(b uint64) complex128 {
	ph := iPow[p.nY%4]
	if bits.OnesCount64(b&p.z)%2 == 1 {
		return -ph
	}
	return ph
}

// addTo accumulates c*P*ψ into dst.
func (p pauliString) addTo(dst, ψ []complex128, c complex128) {
	for b, amp := range ψ {
		if amp == 0 {
			continue
		}
		dst[uint64(b)^p.x] += c * p.phase(uint64(b)) * amp
	}
}

// PauliOp is a Hermitian operator written as a real linear combination of Pauli strings.
type PauliOp struct {
	numQubits int
	terms     []PauliTerm
	strs      []pauliString
}

// NewPauliOp returns a new operator from the provided terms. All labels must have the same length.
func NewPauliOp(terms ...PauliTerm) (PauliOp, error) {
	if len(terms) == 0 {
		return PauliOp{}, configErr("operator", "at least one term is required")
	}
	n := len(terms[0].Label)
	if n == 0 || n > MaxQubits {
		return PauliOp{}, configErr("operator", "label width %d not in [1, %d]", n, MaxQubits)
	}
	op := PauliOp{numQubits: n, terms: make([]PauliTerm, len(terms)), strs: make([]pauliString, len(terms))}
	for t, term := range terms {
		if len(term.Label) != n {
			return PauliOp{}, configErr("operator", "term %d (%q) acts on %d qubits, expected %d", t, term.Label, len(term.Label), n)
		}
		if math.IsNaN(term.Coeff) || math.IsInf(term.Coeff, 0) {
			return PauliOp{}, configErr("operator", "term %d (%q) has a non finite coefficient", t, term.Label)
		}
		label := strings.ToUpper(term.Label)
		var ps pauliString
		for pos, c := range label {
			bit := uint64(1) << uint(n-1-pos)
			switch c {
			case 'I':
			case 'X':
				ps.x |= bit
			case 'Y':
				ps.x |= bit
				ps.z |= bit
				ps.nY++
			case 'Z':
				ps.z |= bit
			default:
				return PauliOp{}, configErr("operator", "unknown Pauli `%c` in %q", c, term.Label)
			}
		}
		op.terms[t] = PauliTerm{label, term.Coeff}
		op.strs[t] = ps
	}
	return op, nil
}

// MustPauliOp is the same as NewPauliOp but panics on error.
func MustPauliOp(terms ...PauliTerm) PauliOp {
	op, err := NewPauliOp(terms...)
	if err != nil {
		panic(err)
	}
	return op
}

// NumQubits returns the number of particles this operator acts on.
func (op PauliOp) NumQubits() int {
	return op.numQubits
}

// Terms returns a copy of the terms of this operator.
func (op PauliOp) Terms() []PauliTerm {
	terms := make([]PauliTerm, len(op.terms))
	copy(terms, op.terms)
	return terms
}

// IsZero returns whether all coefficients are zero.
func (op PauliOp) IsZero() bool {
	for _, term := range op.terms {
		if term.Coeff != 0 {
			return false
		}
	}
	return true
}

// Apply returns Hψ.
func (op PauliOp) Apply(ψ []complex128) []complex128 {
	φ := make([]complex128, len(ψ))
	op.applyTo(φ, ψ)
	return φ
}

func (op PauliOp) applyTo(dst, ψ []complex128) {
	for i := range dst {
		dst[i] = 0
	}
	for t, ps := range op.strs {
		if op.terms[t].Coeff == 0 {
			continue
		}
		ps.addTo(dst, ψ, complex(op.terms[t].Coeff, 0))
	}
}

// Expectation returns <ψ|H|ψ>. The state is assumed to be normalized.
func (op PauliOp) Expectation(ψ []complex128) float64 {
	return real(cmplxs.Dot(ψ, op.Apply(ψ)))
}

// Matrix returns the dense 2^n x 2^n matrix of this operator.
func (op PauliOp) Matrix() *mat.CDense {
	dim := 1 << uint(op.numQubits)
	m := mat.NewCDense(dim, dim, nil)
	for t, ps := range op.strs {
		c := complex(op.terms[t].Coeff, 0)
		for b := 0; b < dim; b++ {
			row := int(uint64(b) ^ ps.x)
			m.Set(row, b, m.At(row, b)+c*ps.phase(uint64(b)))
		}
	}
	return m
}

func (op PauliOp) String() string {
	parts := make([]string, len(op.terms))
	for t, term := range op.terms {
		parts[t] = fmt.Sprintf("%g*%s", term.Coeff, term.Label)
	}
	return strings.Join(parts, " + ")
}

// siteLabel returns the label with `p` at position i and identity elsewhere.
func siteLabel(n, i int, p byte) string {
	label := []byte(strings.Repeat("I", n))
	label[i] = p
	return string(label)
}

// ZeroOp returns the trivial Hamiltonian on n particles.
func ZeroOp(n int) (PauliOp, error) {
	if n <= 0 {
		return PauliOp{}, configErr("particles", "must be positive, got %d", n)
	}
	return NewPauliOp(PauliTerm{strings.Repeat("I", n), 0})
}

// TransverseField returns h Σ X_i.
func TransverseField(n int, h float64) (PauliOp, error) {
	if n <= 0 {
		return PauliOp{}, configErr("particles", "must be positive, got %d", n)
	}
	terms := make([]PauliTerm, n)
	for i := 0; i < n; i++ {
		terms[i] = PauliTerm{siteLabel(n, i, 'X'), h}
	}
	return NewPauliOp(terms...)
}

// IsingChain returns the open transverse field Ising chain -J Σ Z_i Z_{i+1} - h Σ X_i.
func IsingChain(n int, J, h float64) (PauliOp, error) {
	if n <= 0 {
		return PauliOp{}, configErr("particles", "must be positive, got %d", n)
	}
	terms := make([]PauliTerm, 0, 2*n-1)
	for i := 0; i < n-1; i++ {
		label := []byte(strings.Repeat("I", n))
		label[i] = 'Z'
		label[i+1] = 'Z'
		terms = append(terms, PauliTerm{string(label), -J})
	}
	for i := 0; i < n; i++ {
		terms = append(terms, PauliTerm{siteLabel(n, i, 'X'), -h})
	}
	return NewPauliOp(terms...)
}
