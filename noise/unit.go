package noise

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Unit is the identity noise model: whitening leaves the system
// untouched. It is equivalent to passing a nil Model, but carries an
// explicit dimension.
type Unit struct {
	dim int
}

// NewUnit creates a unit model of the given dimension.
func NewUnit(dim int) (*Unit, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("noise: dimension %d: %w", dim, ErrInvalidDim)
	}
	return &Unit{dim: dim}, nil
}

func (u *Unit) Dim() int {
	return u.dim
}

func (u *Unit) Sigmas() []float64 {
	sigmas := make([]float64, u.dim)
	for i := range sigmas {
		sigmas[i] = 1
	}
	return sigmas
}

func (u *Unit) WhitenSystem(ab *mat.Dense) {}

func (u *Unit) WhitenVector(v *mat.VecDense) {}
