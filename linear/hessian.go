package linear

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jlblancoc/gtsam/keys"
)

// HessianFactor is a linear Gaussian factor in information form,
// holding the augmented quadratic
//
//	[H g]
//	[g' c]
//
// over its variables, with H the information matrix, g the information
// vector and c the constant term. Cholesky-strategy elimination leaves
// its remainders in this form, which stays well defined even when H is
// rank deficient.
type HessianFactor struct {
	keys []keys.Key
	dims []int
	offs []int // cumulative block offsets, len = len(dims)+1
	aug  *mat.SymDense
}

// NewHessianFactor builds a factor over ks with the given per-variable
// dimensions from its augmented information matrix, which must be of
// size sum(dims)+1. The matrix is adopted without copying.
func NewHessianFactor(ks []keys.Key, dims []int, aug *mat.SymDense) (*HessianFactor, error) {
	if len(ks) != len(dims) {
		return nil, fmt.Errorf("linear: %d keys with %d dimensions: %w", len(ks), len(dims), ErrInvalidArgument)
	}
	offs := make([]int, len(dims)+1)
	for i, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("linear: dimension %d of variable %s: %w", d, ks[i], ErrInvalidDimensions)
		}
		offs[i+1] = offs[i] + d
	}
	if n := offs[len(dims)]; aug.SymmetricDim() != n+1 {
		return nil, fmt.Errorf("linear: augmented matrix of size %d, want %d: %w",
			aug.SymmetricDim(), n+1, ErrInvalidDimensions)
	}
	return &HessianFactor{
		keys: append([]keys.Key(nil), ks...),
		dims: append([]int(nil), dims...),
		offs: offs,
		aug:  aug,
	}, nil
}

// Keys returns the factor's variables in block order.
func (h *HessianFactor) Keys() []keys.Key {
	return append([]keys.Key(nil), h.keys...)
}

// Dim returns the block dimension of variable k.
func (h *HessianFactor) Dim(k keys.Key) (int, error) {
	for i, hk := range h.keys {
		if hk == k {
			return h.dims[i], nil
		}
	}
	return 0, fmt.Errorf("linear: variable %s: %w", k, ErrKeyNotFound)
}

// AugmentedInformation returns a copy of [H g; g' c].
func (h *HessianFactor) AugmentedInformation() *mat.SymDense {
	out := mat.NewSymDense(h.aug.SymmetricDim(), nil)
	out.CopySym(h.aug)
	return out
}

// Information returns a copy of H.
func (h *HessianFactor) Information() *mat.SymDense {
	n := h.offs[len(h.dims)]
	if n == 0 {
		return &mat.SymDense{}
	}
	out := mat.NewSymDense(n, nil)
	out.CopySym(h.aug.SliceSym(0, n).(*mat.SymDense))
	return out
}

// Error returns ½(x'Hx − 2g'x + c) at x. It panics if x lacks one of
// the factor's variables.
func (h *HessianFactor) Error(x VectorValues) float64 {
	n := h.offs[len(h.dims)]
	if n == 0 {
		return 0.5 * h.aug.At(0, 0)
	}
	xs, err := x.Vector(h.keys)
	if err != nil {
		panic(err)
	}
	var hx mat.VecDense
	hx.MulVec(h.aug.SliceSym(0, n), xs)
	quad := mat.Dot(xs, &hx)
	lin := 0.0
	for i := 0; i < n; i++ {
		lin += xs.AtVec(i) * h.aug.At(i, n)
	}
	return 0.5*quad - lin + 0.5*h.aug.At(n, n)
}

// sqrt rewrites the factor in square-root form: a unit-noise Jacobian
// factor whose augmented matrix R satisfies R'R = [H g; g' c]. The
// factorization is by symmetric eigendecomposition, so rank-deficient
// but semidefinite factors convert too.
func (h *HessianFactor) sqrt() (*JacobianFactor, error) {
	n := h.aug.SymmetricDim()
	var es mat.EigenSym
	if !es.Factorize(h.aug, true) {
		return nil, fmt.Errorf("linear: eigendecomposition of augmented information failed")
	}
	vals := es.Values(nil)
	tol := 1e-12 * math.Max(1, math.Abs(vals[n-1]))
	if vals[0] < -tol {
		return nil, fmt.Errorf("linear: augmented information has eigenvalue %g: %w",
			vals[0], ErrNotPositiveDefinite)
	}
	var u mat.Dense
	es.VectorsTo(&u)

	var kept []int
	for i, v := range vals {
		if v > tol {
			kept = append(kept, i)
		}
	}
	widths := append(append([]int(nil), h.dims...), 1)
	bm, err := NewBlockMatrix(widths, len(kept))
	if err != nil {
		return nil, err
	}
	full := bm.Full()
	for r, i := range kept {
		s := math.Sqrt(vals[i])
		for j := 0; j < n; j++ {
			full.Set(r, j, s*u.At(j, i))
		}
	}
	return NewJacobianFactorFromBlocks(h.keys, bm, nil)
}
