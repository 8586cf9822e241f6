package linear

import (
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"

	"github.com/jlblancoc/gtsam/keys"
)

// Strategy selects the numerical factorization used during
// elimination.
type Strategy uint8

const (
	// Cholesky eliminates on the normal equations. It is the faster
	// strategy and the default choice for well-conditioned systems.
	Cholesky Strategy = iota

	// QR eliminates with Householder reflections on the stacked rows.
	// It is slower but numerically more robust.
	QR
)

func (s Strategy) String() string {
	switch s {
	case Cholesky:
		return "cholesky"
	case QR:
		return "qr"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

func (s Strategy) valid() bool {
	return s == Cholesky || s == QR
}

func factorInvolves(f GaussianFactor, k keys.Key) bool {
	_, err := f.Dim(k)
	return err == nil
}

// EliminatePartial eliminates ord's variables from the graph in the
// given order. It returns the resulting conditionals and the graph of
// factors left over the remaining variables.
func (g *FactorGraph) EliminatePartial(ord Ordering, s Strategy) (*BayesNet, *FactorGraph, error) {
	if !s.valid() {
		return nil, nil, fmt.Errorf("linear: unknown strategy %d: %w", uint8(s), ErrInvalidArgument)
	}
	seen := make(map[keys.Key]struct{}, len(ord))
	for _, k := range ord {
		if _, dup := seen[k]; dup {
			return nil, nil, fmt.Errorf("linear: variable %s listed twice: %w", k, ErrInvalidArgument)
		}
		seen[k] = struct{}{}
	}

	work := append([]GaussianFactor(nil), g.factors...)
	active := bitset.New(uint(len(work)))
	for i := range work {
		active.Set(uint(i))
	}

	net := &BayesNet{}
	for _, k := range ord {
		var involved []GaussianFactor
		for i, ok := active.NextSet(0); ok; i, ok = active.NextSet(i + 1) {
			if factorInvolves(work[i], k) {
				involved = append(involved, work[i])
				active.Clear(i)
			}
		}
		if len(involved) == 0 {
			return nil, nil, fmt.Errorf("linear: no factor involves %s: %w", k, ErrKeyNotFound)
		}
		cond, rem, err := eliminateOne(involved, k, s)
		if err != nil {
			return nil, nil, err
		}
		net.conds = append(net.conds, cond)
		if rem != nil {
			work = append(work, rem)
			active.Set(uint(len(work) - 1))
		}
	}

	remainder := NewFactorGraph()
	for i, ok := active.NextSet(0); ok; i, ok = active.NextSet(i + 1) {
		remainder.Add(work[i])
	}
	return net, remainder, nil
}

// EliminateSequential eliminates the entire graph, failing if ord does
// not cover all of its variables.
func (g *FactorGraph) EliminateSequential(ord Ordering, s Strategy) (*BayesNet, error) {
	net, rem, err := g.EliminatePartial(ord, s)
	if err != nil {
		return nil, err
	}
	if rem.Len() > 0 {
		return nil, fmt.Errorf("linear: %d factors left after eliminating %d variables: %w",
			rem.Len(), len(ord), ErrInvalidArgument)
	}
	return net, nil
}

// EliminateTree eliminates the entire graph and assembles the result
// into a Bayes tree.
func (g *FactorGraph) EliminateTree(ord Ordering, s Strategy) (*BayesTree, error) {
	net, err := g.EliminateSequential(ord, s)
	if err != nil {
		return nil, err
	}
	return newBayesTree(net)
}

// MarginalBayesTree marginalizes out every variable not in ord, then
// eliminates ord in the caller's order. The result is the Bayes tree
// of the joint marginal density over ord.
func (g *FactorGraph) MarginalBayesTree(ord Ordering, s Strategy) (*BayesTree, error) {
	all := g.Keys()
	inGraph := make(map[keys.Key]struct{}, len(all))
	for _, k := range all {
		inGraph[k] = struct{}{}
	}
	for _, k := range ord {
		if _, ok := inGraph[k]; !ok {
			return nil, fmt.Errorf("linear: variable %s not in graph: %w", k, ErrKeyNotFound)
		}
	}
	_, rem, err := g.EliminatePartial(complement(all, ord), s)
	if err != nil {
		return nil, err
	}
	net, err := rem.EliminateSequential(ord, s)
	if err != nil {
		return nil, err
	}
	return newBayesTree(net)
}

// elimLayout is the column layout of one elimination step: the frontal
// variable first, then the separators ascending, then the right-hand
// side.
type elimLayout struct {
	frontal keys.Key
	fdim    int
	seps    []keys.Key
	sdims   []int
	offs    map[keys.Key]int
	n       int // total variable columns
}

func newElimLayout(involved []GaussianFactor, frontal keys.Key) (*elimLayout, error) {
	dims := make(map[keys.Key]int)
	for _, f := range involved {
		for _, k := range f.Keys() {
			d, err := f.Dim(k)
			if err != nil {
				return nil, err
			}
			if have, ok := dims[k]; ok && have != d {
				return nil, fmt.Errorf("linear: variable %s has dimension %d in one factor and %d in another: %w",
					k, have, d, ErrInvalidDimensions)
			}
			dims[k] = d
		}
	}
	fdim, ok := dims[frontal]
	if !ok {
		return nil, fmt.Errorf("linear: variable %s: %w", frontal, ErrKeyNotFound)
	}
	seps := make([]keys.Key, 0, len(dims)-1)
	for k := range dims {
		if k != frontal {
			seps = append(seps, k)
		}
	}
	keys.Sort(seps)

	lay := &elimLayout{
		frontal: frontal,
		fdim:    fdim,
		seps:    seps,
		sdims:   make([]int, len(seps)),
		offs:    make(map[keys.Key]int, len(dims)),
	}
	lay.offs[frontal] = 0
	off := fdim
	for i, k := range seps {
		lay.sdims[i] = dims[k]
		lay.offs[k] = off
		off += dims[k]
	}
	lay.n = off
	return lay, nil
}

func (lay *elimLayout) widths() []int {
	w := make([]int, 0, len(lay.sdims)+2)
	w = append(w, lay.fdim)
	w = append(w, lay.sdims...)
	return append(w, 1)
}

// eliminateOne eliminates the frontal variable from the involved
// factors, returning its conditional and the remainder factor over the
// separators (nil when there are none).
func eliminateOne(involved []GaussianFactor, frontal keys.Key, s Strategy) (*Conditional, GaussianFactor, error) {
	lay, err := newElimLayout(involved, frontal)
	if err != nil {
		return nil, nil, err
	}
	if s == QR {
		return eliminateQR(involved, lay)
	}
	return eliminateCholesky(involved, lay)
}

func asJacobian(f GaussianFactor) (*JacobianFactor, error) {
	switch j := f.(type) {
	case *JacobianFactor:
		return j, nil
	case *HessianFactor:
		return j.sqrt()
	default:
		return nil, fmt.Errorf("linear: cannot stack factor of type %T: %w", f, ErrInvalidArgument)
	}
}

// eliminateQR stacks the whitened rows of all involved factors into
// the layout's columns and triangularizes them with Householder
// reflections. The top fdim rows of the result form the conditional,
// the rows below it the unit-noise remainder.
func eliminateQR(involved []GaussianFactor, lay *elimLayout) (*Conditional, GaussianFactor, error) {
	jacs := make([]*JacobianFactor, len(involved))
	rows := 0
	for i, f := range involved {
		j, err := asJacobian(f)
		if err != nil {
			return nil, nil, err
		}
		jacs[i] = j
		rows += j.Rows()
	}
	if rows < lay.fdim {
		return nil, nil, &IndeterminantError{Key: lay.frontal}
	}

	W := mat.NewDense(rows, lay.n+1, nil)
	r0 := 0
	for _, j := range jacs {
		if j.Rows() == 0 {
			continue
		}
		wa := j.whitenedAugmented()
		for bi, k := range j.keys {
			off, err := j.ab.Offset(bi)
			if err != nil {
				return nil, nil, err
			}
			wdt, err := j.ab.Width(bi)
			if err != nil {
				return nil, nil, err
			}
			dst := W.Slice(r0, r0+j.Rows(), lay.offs[k], lay.offs[k]+wdt).(*mat.Dense)
			dst.Copy(wa.Slice(0, j.Rows(), off, off+wdt))
		}
		rhs := j.ab.Cols() - 1
		dst := W.Slice(r0, r0+j.Rows(), lay.n, lay.n+1).(*mat.Dense)
		dst.Copy(wa.Slice(0, j.Rows(), rhs, rhs+1))
		r0 += j.Rows()
	}

	tau := make([]float64, min(rows, lay.n+1))
	gen := blas64.General{Rows: rows, Cols: lay.n + 1, Stride: lay.n + 1, Data: W.RawMatrix().Data}
	work := make([]float64, 1)
	lapack64.Geqrf(gen, tau, work, -1)
	work = make([]float64, int(work[0]))
	lapack64.Geqrf(gen, tau, work, len(work))

	rsd, err := NewBlockMatrix(lay.widths(), lay.fdim)
	if err != nil {
		return nil, nil, err
	}
	full := rsd.Full()
	for i := 0; i < lay.fdim; i++ {
		if math.Abs(W.At(i, i)) <= singularPivotTol {
			return nil, nil, &IndeterminantError{Key: lay.frontal}
		}
		for j := i; j < lay.n+1; j++ {
			full.Set(i, j, W.At(i, j))
		}
	}
	cond := newConditional(lay.frontal, lay.seps, rsd)

	if len(lay.seps) == 0 {
		return cond, nil, nil
	}
	// A zero-row remainder is kept: it still records that the separators
	// carry no constraint from this step.
	rrows := max(0, min(rows, lay.n+1)-lay.fdim)
	rbm, err := NewBlockMatrix(append(append([]int(nil), lay.sdims...), 1), rrows)
	if err != nil {
		return nil, nil, err
	}
	rfull := rbm.Full()
	for i := 0; i < rrows; i++ {
		gi := lay.fdim + i
		for j := gi; j < lay.n+1; j++ {
			rfull.Set(i, j-lay.fdim, W.At(gi, j))
		}
	}
	rem, err := NewJacobianFactorFromBlocks(lay.seps, rbm, nil)
	if err != nil {
		return nil, nil, err
	}
	return cond, rem, nil
}

// eliminateCholesky sums the involved factors' augmented informations
// in the layout's columns, takes the Cholesky factor of the frontal
// block and forms the Schur complement over the separators. The
// remainder stays in information form, which keeps rank-deficient
// separator blocks representable.
func eliminateCholesky(involved []GaussianFactor, lay *elimLayout) (*Conditional, GaussianFactor, error) {
	n := lay.n
	acc := mat.NewDense(n+1, n+1, nil)
	for _, f := range involved {
		if err := addAugmented(acc, f, lay.offs, n); err != nil {
			return nil, nil, err
		}
	}

	fd := lay.fdim
	r1 := make([]float64, fd*fd)
	for i := 0; i < fd; i++ {
		for j := i; j < fd; j++ {
			r1[i*fd+j] = acc.At(i, j)
		}
	}
	if _, ok := lapack64.Potrf(blas64.Symmetric{Uplo: blas.Upper, N: fd, Stride: fd, Data: r1}); !ok {
		return nil, nil, &IndeterminantError{Key: lay.frontal}
	}

	// [S d] = R⁻ᵀ [H12 h1b]
	mcols := n + 1 - fd
	xd := make([]float64, fd*mcols)
	for i := 0; i < fd; i++ {
		for j := 0; j < mcols; j++ {
			xd[i*mcols+j] = acc.At(i, fd+j)
		}
	}
	X := blas64.General{Rows: fd, Cols: mcols, Stride: mcols, Data: xd}
	lapack64.Trtrs(blas.Trans,
		blas64.Triangular{Uplo: blas.Upper, Diag: blas.NonUnit, N: fd, Stride: fd, Data: r1}, X)

	rsd, err := NewBlockMatrix(lay.widths(), fd)
	if err != nil {
		return nil, nil, err
	}
	full := rsd.Full()
	for i := 0; i < fd; i++ {
		for j := i; j < fd; j++ {
			full.Set(i, j, r1[i*fd+j])
		}
		for j := 0; j < mcols; j++ {
			full.Set(i, fd+j, xd[i*mcols+j])
		}
	}
	cond := newConditional(lay.frontal, lay.seps, rsd)

	if len(lay.seps) == 0 {
		return cond, nil, nil
	}

	// Schur complement [H22 h2b; ...] − [S d]'[S d].
	sd := make([]float64, mcols*mcols)
	for i := 0; i < mcols; i++ {
		for j := i; j < mcols; j++ {
			sd[i*mcols+j] = acc.At(fd+i, fd+j)
		}
	}
	blas64.Syrk(blas.Trans, -1, X, 1,
		blas64.Symmetric{Uplo: blas.Upper, N: mcols, Stride: mcols, Data: sd})

	aug := mat.NewSymDense(mcols, nil)
	for i := 0; i < mcols; i++ {
		for j := i; j < mcols; j++ {
			aug.SetSym(i, j, sd[i*mcols+j])
		}
	}
	rem, err := NewHessianFactor(lay.seps, lay.sdims, aug)
	if err != nil {
		return nil, nil, err
	}
	return cond, rem, nil
}
