package linear

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// BlockMatrix is an augmented matrix partitioned into contiguous column
// blocks. Block boundaries are fixed at construction; the views
// returned by Block and Full alias the single backing buffer, so writes
// through any view are visible through all others.
type BlockMatrix struct {
	data    *mat.Dense // nil when rows == 0
	rows    int
	offsets []int // cumulative column offsets, len = BlockCount()+1
}

// NewBlockMatrix allocates a zero matrix with the given block widths
// and row count. Widths must be positive; rows must be non-negative.
func NewBlockMatrix(widths []int, rows int) (*BlockMatrix, error) {
	if rows < 0 {
		return nil, fmt.Errorf("linear: row count %d: %w", rows, ErrInvalidDimensions)
	}
	if len(widths) == 0 {
		return nil, fmt.Errorf("linear: no column blocks: %w", ErrInvalidDimensions)
	}
	offsets := make([]int, len(widths)+1)
	for i, w := range widths {
		if w <= 0 {
			return nil, fmt.Errorf("linear: width %d of block %d: %w", w, i, ErrInvalidDimensions)
		}
		offsets[i+1] = offsets[i] + w
	}
	bm := &BlockMatrix{rows: rows, offsets: offsets}
	if rows > 0 {
		bm.data = mat.NewDense(rows, offsets[len(widths)], nil)
	}
	return bm, nil
}

// Rows returns the row count shared by all blocks.
func (b *BlockMatrix) Rows() int {
	return b.rows
}

// Cols returns the total column count.
func (b *BlockMatrix) Cols() int {
	return b.offsets[len(b.offsets)-1]
}

// BlockCount returns the number of column blocks.
func (b *BlockMatrix) BlockCount() int {
	return len(b.offsets) - 1
}

// Width returns the column count of block i.
func (b *BlockMatrix) Width(i int) (int, error) {
	if i < 0 || i >= b.BlockCount() {
		return 0, fmt.Errorf("linear: block %d of %d: %w", i, b.BlockCount(), ErrIndexOutOfRange)
	}
	return b.offsets[i+1] - b.offsets[i], nil
}

// Offset returns the column offset at which block i starts.
func (b *BlockMatrix) Offset(i int) (int, error) {
	if i < 0 || i >= b.BlockCount() {
		return 0, fmt.Errorf("linear: block %d of %d: %w", i, b.BlockCount(), ErrIndexOutOfRange)
	}
	return b.offsets[i], nil
}

// Block returns a mutable view of block i.
func (b *BlockMatrix) Block(i int) (*mat.Dense, error) {
	if i < 0 || i >= b.BlockCount() {
		return nil, fmt.Errorf("linear: block %d of %d: %w", i, b.BlockCount(), ErrIndexOutOfRange)
	}
	if b.data == nil {
		return &mat.Dense{}, nil
	}
	return b.data.Slice(0, b.rows, b.offsets[i], b.offsets[i+1]).(*mat.Dense), nil
}

// Full returns a mutable view of the entire matrix.
func (b *BlockMatrix) Full() *mat.Dense {
	if b.data == nil {
		return &mat.Dense{}
	}
	return b.data
}
