package noise

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Diagonal is a noise model with an independent standard deviation per
// row.
type Diagonal struct {
	sigmas    []float64
	invSigmas []float64
}

// NewDiagonal creates a diagonal model from per-row standard deviations.
func NewDiagonal(sigmas []float64) (*Diagonal, error) {
	if len(sigmas) == 0 {
		return nil, fmt.Errorf("noise: no sigmas given: %w", ErrInvalidDim)
	}
	inv := make([]float64, len(sigmas))
	for i, s := range sigmas {
		if !(s > 0) || math.IsInf(s, 1) {
			return nil, fmt.Errorf("noise: sigma[%d] = %v: %w", i, s, ErrInvalidSigma)
		}
		inv[i] = 1 / s
	}
	return &Diagonal{
		sigmas:    append([]float64(nil), sigmas...),
		invSigmas: inv,
	}, nil
}

// NewDiagonalVariances creates a diagonal model from per-row variances.
func NewDiagonalVariances(variances []float64) (*Diagonal, error) {
	sigmas := make([]float64, len(variances))
	for i, v := range variances {
		sigmas[i] = math.Sqrt(v)
	}
	return NewDiagonal(sigmas)
}

func (d *Diagonal) Dim() int {
	return len(d.sigmas)
}

func (d *Diagonal) Sigmas() []float64 {
	return append([]float64(nil), d.sigmas...)
}

func (d *Diagonal) WhitenSystem(ab *mat.Dense) {
	r, c := ab.Dims()
	if r != len(d.invSigmas) {
		panic("noise: system row count does not match model dimension")
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			ab.Set(i, j, ab.At(i, j)*d.invSigmas[i])
		}
	}
}

func (d *Diagonal) WhitenVector(v *mat.VecDense) {
	if v.Len() != len(d.invSigmas) {
		panic("noise: vector length does not match model dimension")
	}
	for i := 0; i < v.Len(); i++ {
		v.SetVec(i, v.AtVec(i)*d.invSigmas[i])
	}
}
