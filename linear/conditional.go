package linear

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"

	"github.com/jlblancoc/gtsam/keys"
)

// Pivots with absolute value at or below this are treated as singular.
const singularPivotTol = 1e-12

// Conditional is a Gaussian conditional density P(frontal | parents)
// in square-root form: R x_f + S₁ x_p1 + … = d with unit noise and R
// upper triangular. The blocks live in one store, [R S₁ … | d].
type Conditional struct {
	frontal keys.Key
	parents []keys.Key
	rsd     *BlockMatrix
}

func newConditional(frontal keys.Key, parents []keys.Key, rsd *BlockMatrix) *Conditional {
	return &Conditional{frontal: frontal, parents: parents, rsd: rsd}
}

// Frontal returns the conditioned variable.
func (c *Conditional) Frontal() keys.Key {
	return c.frontal
}

// Parents returns the conditioning variables.
func (c *Conditional) Parents() []keys.Key {
	return append([]keys.Key(nil), c.parents...)
}

// Dim returns the dimension of the frontal variable.
func (c *Conditional) Dim() int {
	w, err := c.rsd.Width(0)
	if err != nil {
		panic(err)
	}
	return w
}

// R returns a copy of the upper-triangular frontal block.
func (c *Conditional) R() *mat.Dense {
	blk, err := c.rsd.Block(0)
	if err != nil {
		panic(err)
	}
	var out mat.Dense
	out.CloneFrom(blk)
	return &out
}

// D returns a copy of the right-hand side.
func (c *Conditional) D() *mat.VecDense {
	blk, err := c.rsd.Block(c.rsd.BlockCount() - 1)
	if err != nil {
		panic(err)
	}
	out := mat.NewVecDense(c.Dim(), nil)
	for i := 0; i < c.Dim(); i++ {
		out.SetVec(i, blk.At(i, 0))
	}
	return out
}

// AsFactor reinterprets the conditional as a unit-noise Jacobian factor
// over [frontal, parents...]. The factor shares the conditional's
// store.
func (c *Conditional) AsFactor() *JacobianFactor {
	ks := append([]keys.Key{c.frontal}, c.parents...)
	f, err := NewJacobianFactorFromBlocks(ks, c.rsd, nil)
	if err != nil {
		panic(err)
	}
	return f
}

// Solve back-substitutes x_f = R⁻¹ (d − Σᵢ Sᵢ x_pᵢ). All parents must
// be present in x.
func (c *Conditional) Solve(x VectorValues) (*mat.VecDense, error) {
	dk := c.Dim()
	out := c.D()
	for i, p := range c.parents {
		xp, err := x.At(p)
		if err != nil {
			return nil, err
		}
		blk, err := c.rsd.Block(1 + i)
		if err != nil {
			return nil, err
		}
		var t mat.VecDense
		t.MulVec(blk, xp)
		out.SubVec(out, &t)
	}

	rblk, err := c.rsd.Block(0)
	if err != nil {
		return nil, err
	}
	for i := 0; i < dk; i++ {
		if math.Abs(rblk.At(i, i)) <= singularPivotTol {
			return nil, &IndeterminantError{Key: c.frontal}
		}
	}
	rm := rblk.RawMatrix()
	lapack64.Trtrs(blas.NoTrans,
		blas64.Triangular{Uplo: blas.Upper, Diag: blas.NonUnit, N: dk, Data: rm.Data, Stride: rm.Stride},
		blas64.General{Rows: dk, Cols: 1, Stride: 1, Data: out.RawVector().Data})
	return out, nil
}
