package marginals

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/jlblancoc/gtsam/keys"
	"github.com/jlblancoc/gtsam/linear"
)

// JointMarginal is the result of a joint query: one square matrix over
// several variables, partitioned per variable in request order and
// indexable by key pairs.
type JointMarginal struct {
	keys   []keys.Key
	dims   []int
	offs   []int
	matrix *mat.Dense
}

func newJointMarginal(matrix *mat.Dense, ks []keys.Key, dims []int) (*JointMarginal, error) {
	offs := make([]int, len(dims)+1)
	for i, d := range dims {
		offs[i+1] = offs[i] + d
	}
	r, c := matrix.Dims()
	if r != c || r != offs[len(dims)] {
		return nil, fmt.Errorf("marginals: %dx%d joint matrix for a total dimension of %d: %w",
			r, c, offs[len(dims)], linear.ErrInvalidDimensions)
	}
	return &JointMarginal{
		keys:   append([]keys.Key(nil), ks...),
		dims:   append([]int(nil), dims...),
		offs:   offs,
		matrix: matrix,
	}, nil
}

// Keys returns the variables in stored order.
func (j *JointMarginal) Keys() []keys.Key {
	return append([]keys.Key(nil), j.keys...)
}

// Dim returns the dimension of variable k's partition.
func (j *JointMarginal) Dim(k keys.Key) (int, error) {
	i := j.indexOf(k)
	if i < 0 {
		return 0, fmt.Errorf("marginals: variable %s not in joint: %w", k, linear.ErrKeyNotFound)
	}
	return j.dims[i], nil
}

// At returns a copy of the sub-matrix coupling a's rows with b's
// columns.
func (j *JointMarginal) At(a, b keys.Key) (*mat.Dense, error) {
	ia := j.indexOf(a)
	if ia < 0 {
		return nil, fmt.Errorf("marginals: variable %s not in joint: %w", a, linear.ErrKeyNotFound)
	}
	ib := j.indexOf(b)
	if ib < 0 {
		return nil, fmt.Errorf("marginals: variable %s not in joint: %w", b, linear.ErrKeyNotFound)
	}
	var out mat.Dense
	out.CloneFrom(j.matrix.Slice(j.offs[ia], j.offs[ia+1], j.offs[ib], j.offs[ib+1]))
	return &out, nil
}

// FullMatrix returns a copy of the whole joint matrix.
func (j *JointMarginal) FullMatrix() *mat.Dense {
	var out mat.Dense
	out.CloneFrom(j.matrix)
	return &out
}

func (j *JointMarginal) indexOf(k keys.Key) int {
	for i, jk := range j.keys {
		if jk == k {
			return i
		}
	}
	return -1
}
