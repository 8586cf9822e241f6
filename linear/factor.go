package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/jlblancoc/gtsam/keys"
)

// GaussianFactor is a quadratic potential over a set of keyed vector
// variables. The two implementations are JacobianFactor (square-root
// form) and HessianFactor (information form).
type GaussianFactor interface {
	// Keys returns the factor's variables in block order.
	Keys() []keys.Key

	// Dim returns the dimension of k's block, or ErrKeyNotFound.
	Dim(k keys.Key) (int, error)

	// Information returns A'Σ⁻¹A, the information matrix over the
	// factor's variables in block order, right-hand side excluded.
	Information() *mat.SymDense

	// AugmentedInformation returns [A b]'Σ⁻¹[A b], the information
	// matrix of the system augmented with its right-hand side.
	AugmentedInformation() *mat.SymDense

	// Error returns the negative log-likelihood ½‖Σ^{-½}(Ax−b)‖² at x.
	// It panics if x lacks one of the factor's variables.
	Error(x VectorValues) float64
}
