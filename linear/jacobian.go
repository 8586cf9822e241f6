package linear

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/jlblancoc/gtsam/keys"
	"github.com/jlblancoc/gtsam/noise"
	"github.com/jlblancoc/gtsam/utils"
)

// Term pairs a variable with its coefficient block.
type Term struct {
	Key keys.Key
	A   *mat.Dense
}

// JacobianFactor is a linear Gaussian factor in square-root form,
// ‖Σ^{-½}(A₁x₁ + … + Aₙxₙ − b)‖², stored as one augmented block matrix
// [A₁ … Aₙ | b]. The stored matrix is never mutated after construction
// except through ReplaceBlock.
type JacobianFactor struct {
	keys  []keys.Key
	ab    *BlockMatrix
	model noise.Model // nil means unit noise
}

// NewJacobianFactor builds a factor from keyed coefficient blocks, a
// right-hand side and an optional noise model (nil means unit noise).
// All blocks and the model must agree with b on the row count. Nothing
// is allocated until all dimensions have been validated.
func NewJacobianFactor(terms []Term, b *mat.VecDense, model noise.Model) (*JacobianFactor, error) {
	rows := b.Len()
	if model != nil && model.Dim() != rows {
		return nil, &InvalidNoiseModelError{Expected: rows, Actual: model.Dim()}
	}

	widths := make([]int, len(terms)+1)
	for i, t := range terms {
		r, c := t.A.Dims()
		if r != rows {
			return nil, &InvalidMatrixBlockError{Expected: rows, Actual: r}
		}
		widths[i] = c
	}
	widths[len(terms)] = 1

	ab, err := NewBlockMatrix(widths, rows)
	if err != nil {
		return nil, err
	}
	ks := make([]keys.Key, len(terms))
	for i, t := range terms {
		blk, err := ab.Block(i)
		if err != nil {
			return nil, err
		}
		blk.Copy(t.A)
		ks[i] = t.Key
	}
	rhs, err := ab.Block(len(terms))
	if err != nil {
		return nil, err
	}
	for i := 0; i < rows; i++ {
		rhs.Set(i, 0, b.AtVec(i))
	}
	return &JacobianFactor{keys: ks, ab: ab, model: model}, nil
}

// NewJacobianFactorFromBlocks builds a factor around an already
// assembled augmented store whose last block is the right-hand side
// column. The store is adopted without copying.
func NewJacobianFactorFromBlocks(ks []keys.Key, ab *BlockMatrix, model noise.Model) (*JacobianFactor, error) {
	if model != nil && model.Dim() != ab.Rows() {
		return nil, &InvalidNoiseModelError{Expected: ab.Rows(), Actual: model.Dim()}
	}
	if len(ks) != ab.BlockCount()-1 {
		return nil, fmt.Errorf("linear: %d keys for %d variable blocks: %w",
			len(ks), ab.BlockCount()-1, ErrInvalidArgument)
	}
	if w, _ := ab.Width(ab.BlockCount() - 1); w != 1 {
		return nil, fmt.Errorf("linear: last block has width %d, want the right-hand side column: %w",
			w, ErrInvalidArgument)
	}
	return &JacobianFactor{
		keys:  append([]keys.Key(nil), ks...),
		ab:    ab,
		model: model,
	}, nil
}

// Keys returns the factor's variables in block order.
func (f *JacobianFactor) Keys() []keys.Key {
	return append([]keys.Key(nil), f.keys...)
}

// Rows returns the number of measurement rows.
func (f *JacobianFactor) Rows() int {
	return f.ab.Rows()
}

// Model returns the noise model; nil means unit noise.
func (f *JacobianFactor) Model() noise.Model {
	return f.model
}

// Dim returns the block width of variable k.
func (f *JacobianFactor) Dim(k keys.Key) (int, error) {
	for i, fk := range f.keys {
		if fk == k {
			return f.ab.Width(i)
		}
	}
	return 0, fmt.Errorf("linear: variable %s: %w", k, ErrKeyNotFound)
}

// A returns a copy of the i-th coefficient block.
func (f *JacobianFactor) A(i int) (*mat.Dense, error) {
	if i < 0 || i >= len(f.keys) {
		return nil, fmt.Errorf("linear: variable block %d of %d: %w", i, len(f.keys), ErrIndexOutOfRange)
	}
	blk, err := f.ab.Block(i)
	if err != nil {
		return nil, err
	}
	var out mat.Dense
	if f.ab.Rows() > 0 {
		out.CloneFrom(blk)
	}
	return &out, nil
}

// B returns a copy of the right-hand side.
func (f *JacobianFactor) B() *mat.VecDense {
	rows := f.ab.Rows()
	if rows == 0 {
		return &mat.VecDense{}
	}
	rhs, err := f.ab.Block(len(f.keys))
	if err != nil {
		panic(err)
	}
	out := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		out.SetVec(i, rhs.At(i, 0))
	}
	return out
}

// AugmentedMatrix returns a copy of the raw augmented system [A | b],
// unweighted by the noise model.
func (f *JacobianFactor) AugmentedMatrix() *mat.Dense {
	var out mat.Dense
	if f.ab.Rows() > 0 {
		out.CloneFrom(f.ab.Full())
	}
	return &out
}

// ReplaceBlock overwrites block i with a same-shaped block. The
// right-hand side is block len(Keys()).
func (f *JacobianFactor) ReplaceBlock(i int, block *mat.Dense) error {
	w, err := f.ab.Width(i)
	if err != nil {
		return err
	}
	r, c := block.Dims()
	if r != f.ab.Rows() || c != w {
		return fmt.Errorf("linear: replacement block is %dx%d, want %dx%d: %w",
			r, c, f.ab.Rows(), w, ErrInvalidDimensions)
	}
	if f.ab.Rows() == 0 {
		return nil
	}
	dst, err := f.ab.Block(i)
	if err != nil {
		return err
	}
	dst.Copy(block)
	return nil
}

// whitenedAugmented returns a whitened copy of [A | b].
func (f *JacobianFactor) whitenedAugmented() *mat.Dense {
	out := f.AugmentedMatrix()
	if f.model != nil && f.ab.Rows() > 0 {
		f.model.WhitenSystem(out)
	}
	return out
}

// AugmentedInformation returns [A b]'Σ⁻¹[A b].
func (f *JacobianFactor) AugmentedInformation() *mat.SymDense {
	n := f.ab.Cols()
	if f.ab.Rows() == 0 {
		return mat.NewSymDense(n, nil)
	}
	w := f.whitenedAugmented()
	var h mat.Dense
	h.Mul(w.T(), w)
	return utils.SymFromDense(&h)
}

// Information returns A'Σ⁻¹A, the augmented information with the
// right-hand side row and column stripped.
func (f *JacobianFactor) Information() *mat.SymDense {
	aug := f.AugmentedInformation()
	n := aug.SymmetricDim() - 1
	if n == 0 {
		return &mat.SymDense{}
	}
	return aug.SliceSym(0, n).(*mat.SymDense)
}

// Error returns ½‖Σ^{-½}(Ax−b)‖² at x. It panics if x lacks one of the
// factor's variables.
func (f *JacobianFactor) Error(x VectorValues) float64 {
	rows := f.ab.Rows()
	if rows == 0 {
		return 0
	}
	e := f.B()
	e.ScaleVec(-1, e)
	for i, k := range f.keys {
		xk, err := x.At(k)
		if err != nil {
			panic(err)
		}
		blk, err := f.ab.Block(i)
		if err != nil {
			panic(err)
		}
		var t mat.VecDense
		t.MulVec(blk, xk)
		e.AddVec(e, &t)
	}
	if f.model != nil {
		f.model.WhitenVector(e)
	}
	return 0.5 * mat.Dot(e, e)
}
