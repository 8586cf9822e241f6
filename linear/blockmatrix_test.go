package linear_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlblancoc/gtsam/linear"
)

func TestNewBlockMatrix(t *testing.T) {
	bm, err := linear.NewBlockMatrix([]int{2, 3, 1}, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, bm.Rows())
	assert.Equal(t, 6, bm.Cols())
	assert.Equal(t, 3, bm.BlockCount())

	w, err := bm.Width(1)
	require.NoError(t, err)
	assert.Equal(t, 3, w)
	off, err := bm.Offset(2)
	require.NoError(t, err)
	assert.Equal(t, 5, off)
}

func TestNewBlockMatrixRejectsBadDimensions(t *testing.T) {
	_, err := linear.NewBlockMatrix([]int{2}, -1)
	assert.ErrorIs(t, err, linear.ErrInvalidDimensions)

	_, err = linear.NewBlockMatrix(nil, 3)
	assert.ErrorIs(t, err, linear.ErrInvalidDimensions)

	_, err = linear.NewBlockMatrix([]int{2, 0}, 3)
	assert.ErrorIs(t, err, linear.ErrInvalidDimensions)

	_, err = linear.NewBlockMatrix([]int{2, -4}, 3)
	assert.ErrorIs(t, err, linear.ErrInvalidDimensions)
}

func TestBlockMatrixZeroRows(t *testing.T) {
	bm, err := linear.NewBlockMatrix([]int{2, 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, bm.Rows())
	assert.Equal(t, 3, bm.Cols())

	blk, err := bm.Block(0)
	require.NoError(t, err)
	r, c := blk.Dims()
	assert.Zero(t, r)
	assert.Zero(t, c)
}

func TestBlockMatrixIndexRange(t *testing.T) {
	bm, err := linear.NewBlockMatrix([]int{2, 1}, 3)
	require.NoError(t, err)

	_, err = bm.Block(-1)
	assert.ErrorIs(t, err, linear.ErrIndexOutOfRange)
	_, err = bm.Block(2)
	assert.ErrorIs(t, err, linear.ErrIndexOutOfRange)
	_, err = bm.Width(5)
	assert.ErrorIs(t, err, linear.ErrIndexOutOfRange)
	_, err = bm.Offset(-2)
	assert.ErrorIs(t, err, linear.ErrIndexOutOfRange)
}

func TestBlockMatrixViewsAlias(t *testing.T) {
	bm, err := linear.NewBlockMatrix([]int{2, 2, 1}, 2)
	require.NoError(t, err)

	blk, err := bm.Block(1)
	require.NoError(t, err)
	blk.Set(0, 1, 7)
	blk.Set(1, 0, -3)

	full := bm.Full()
	assert.Equal(t, 7.0, full.At(0, 3))
	assert.Equal(t, -3.0, full.At(1, 2))

	full.Set(0, 2, 11)
	assert.Equal(t, 11.0, blk.At(0, 0))
}

func TestBlockMatrixLayoutProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("blocks tile the column range", prop.ForAll(
		func(widths []int, rows int) bool {
			bm, err := linear.NewBlockMatrix(widths, rows)
			if len(widths) == 0 {
				return err != nil
			}
			if err != nil {
				return false
			}
			total := 0
			for i, w := range widths {
				got, err := bm.Width(i)
				if err != nil || got != w {
					return false
				}
				off, err := bm.Offset(i)
				if err != nil || off != total {
					return false
				}
				blk, err := bm.Block(i)
				if err != nil {
					return false
				}
				r, c := blk.Dims()
				if rows > 0 && (r != rows || c != w) {
					return false
				}
				total += w
			}
			return bm.Cols() == total && bm.BlockCount() == len(widths)
		},
		gen.SliceOf(gen.IntRange(1, 6)),
		gen.IntRange(0, 7),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
