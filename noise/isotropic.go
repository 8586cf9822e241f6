package noise

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Isotropic is a noise model with one standard deviation shared by all
// rows.
type Isotropic struct {
	dim      int
	sigma    float64
	invSigma float64
}

// NewIsotropic creates an isotropic model of the given dimension.
func NewIsotropic(dim int, sigma float64) (*Isotropic, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("noise: dimension %d: %w", dim, ErrInvalidDim)
	}
	if !(sigma > 0) || math.IsInf(sigma, 1) {
		return nil, fmt.Errorf("noise: sigma = %v: %w", sigma, ErrInvalidSigma)
	}
	return &Isotropic{dim: dim, sigma: sigma, invSigma: 1 / sigma}, nil
}

func (is *Isotropic) Dim() int {
	return is.dim
}

func (is *Isotropic) Sigmas() []float64 {
	sigmas := make([]float64, is.dim)
	for i := range sigmas {
		sigmas[i] = is.sigma
	}
	return sigmas
}

func (is *Isotropic) WhitenSystem(ab *mat.Dense) {
	r, _ := ab.Dims()
	if r != is.dim {
		panic("noise: system row count does not match model dimension")
	}
	ab.Scale(is.invSigma, ab)
}

func (is *Isotropic) WhitenVector(v *mat.VecDense) {
	if v.Len() != is.dim {
		panic("noise: vector length does not match model dimension")
	}
	v.ScaleVec(is.invSigma, v)
}
