// Package noise provides the diagonal family of Gaussian noise models
// used to weight linear factors. A nil model everywhere in the library
// means unit weighting.
package noise

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidSigma is returned for standard deviations that are not
	// strictly positive.
	ErrInvalidSigma = errors.New("noise: sigma must be positive")

	// ErrInvalidDim is returned for non-positive model dimensions.
	ErrInvalidDim = errors.New("noise: dimension must be positive")
)

// Model is a Gaussian noise model over a fixed number of rows. Models
// are immutable after construction and safe for concurrent use.
type Model interface {
	// Dim returns the number of rows the model weights.
	Dim() int

	// Sigmas returns the per-row standard deviations.
	Sigmas() []float64

	// WhitenSystem scales the rows of the stacked system [A|b] by the
	// inverse standard deviations, in place.
	WhitenSystem(ab *mat.Dense)

	// WhitenVector scales v by the inverse standard deviations, in place.
	WhitenVector(v *mat.VecDense)
}
