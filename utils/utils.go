package utils

import (
	"gonum.org/v1/gonum/mat"
)

// Concatenate multiple vectors.
func ConcatVecs(size int, vecs ...*mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(size, nil)
	offset := 0
	for _, vec := range vecs {
		slice := out.SliceVec(offset, offset+vec.Len()).(*mat.VecDense)
		slice.CopyVec(vec)
		offset += vec.Len()
	}
	if offset != size {
		panic("utils: vector lengths do not sum to size")
	}
	return out
}

// Make a block diagonal matrix.
func BlockDiag(size int, mats ...mat.Matrix) *mat.Dense {
	out := mat.NewDense(size, size, nil)
	offset := 0
	for _, matrix := range mats {
		r, _ := matrix.Dims()
		slice := out.Slice(offset, offset+r, offset, offset+r).(*mat.Dense)
		slice.Copy(matrix)
		offset += r
	}
	return out
}

// Identity matrix.
func Eye(n int) *mat.Dense {
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return out
}

// Copy the upper triangle of a square matrix into symmetric form.
func SymFromDense(a mat.Matrix) *mat.SymDense {
	n, m := a.Dims()
	if n != m {
		panic("utils: matrix is not square")
	}
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, a.At(i, j))
		}
	}
	return out
}
