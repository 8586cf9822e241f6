package linear

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/jlblancoc/gtsam/keys"
	"github.com/jlblancoc/gtsam/utils"
)

// VectorValues maps variables to vector values. It serves both as a
// linearization or solution point, from which variable dimensions are
// read, and as the result of back-substitution.
type VectorValues map[keys.Key]*mat.VecDense

// NewVectorValues returns an empty mapping.
func NewVectorValues() VectorValues {
	return VectorValues{}
}

// Insert adds the value of a new variable. Inserting a variable twice
// is an error.
func (v VectorValues) Insert(k keys.Key, val *mat.VecDense) error {
	if _, ok := v[k]; ok {
		return fmt.Errorf("linear: variable %s inserted twice: %w", k, ErrInvalidArgument)
	}
	if val.Len() == 0 {
		return fmt.Errorf("linear: variable %s has no dimensions: %w", k, ErrInvalidDimensions)
	}
	v[k] = val
	return nil
}

// At returns the value of variable k.
func (v VectorValues) At(k keys.Key) (*mat.VecDense, error) {
	val, ok := v[k]
	if !ok {
		return nil, fmt.Errorf("linear: variable %s: %w", k, ErrKeyNotFound)
	}
	return val, nil
}

// Dim returns the dimension of variable k.
func (v VectorValues) Dim(k keys.Key) (int, error) {
	val, ok := v[k]
	if !ok {
		return 0, fmt.Errorf("linear: variable %s: %w", k, ErrKeyNotFound)
	}
	return val.Len(), nil
}

// Keys returns all variables in ascending order.
func (v VectorValues) Keys() []keys.Key {
	ks := make([]keys.Key, 0, len(v))
	for k := range v {
		ks = append(ks, k)
	}
	return keys.Sort(ks)
}

// Vector stacks the values of ks, in the given order, into one vector.
func (v VectorValues) Vector(ks []keys.Key) (*mat.VecDense, error) {
	total := 0
	vecs := make([]*mat.VecDense, len(ks))
	for i, k := range ks {
		val, err := v.At(k)
		if err != nil {
			return nil, err
		}
		vecs[i] = val
		total += val.Len()
	}
	if total == 0 {
		return &mat.VecDense{}, nil
	}
	return utils.ConcatVecs(total, vecs...), nil
}
