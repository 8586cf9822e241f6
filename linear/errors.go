package linear

import (
	"errors"
	"fmt"

	"github.com/jlblancoc/gtsam/keys"
)

// Sentinel errors of the linear package. Callers match them with
// errors.Is; the structured types below carry payloads and are matched
// with errors.As.
var (
	// ErrInvalidDimensions reports a non-positive block width, a negative
	// row count, or dimensions that disagree across factors.
	ErrInvalidDimensions = errors.New("linear: invalid dimensions")

	// ErrIndexOutOfRange reports a block index outside the valid range.
	ErrIndexOutOfRange = errors.New("linear: block index out of range")

	// ErrKeyNotFound reports a variable that is absent from a factor,
	// graph, tree or value mapping.
	ErrKeyNotFound = errors.New("linear: key not found")

	// ErrInvalidArgument reports structurally inconsistent input, such as
	// a key list whose length disagrees with a block count.
	ErrInvalidArgument = errors.New("linear: invalid argument")

	// ErrNotPositiveDefinite reports a matrix that was required to be
	// positive definite and is not.
	ErrNotPositiveDefinite = errors.New("linear: matrix not positive definite")
)

// InvalidNoiseModelError reports a noise model whose dimension does not
// match the rows of the system it weights.
type InvalidNoiseModelError struct {
	Expected int // rows of the weighted system
	Actual   int // dimension of the model
}

func (e *InvalidNoiseModelError) Error() string {
	return fmt.Sprintf("linear: noise model of dimension %d for a system of %d rows", e.Actual, e.Expected)
}

// InvalidMatrixBlockError reports a coefficient block whose row count
// does not match the right-hand side.
type InvalidMatrixBlockError struct {
	Expected int // rows of the right-hand side
	Actual   int // rows of the offending block
}

func (e *InvalidMatrixBlockError) Error() string {
	return fmt.Sprintf("linear: coefficient block with %d rows, expected %d", e.Actual, e.Expected)
}

// IndeterminantError reports a singular pivot during elimination or
// back-substitution: the system does not constrain the named variable.
type IndeterminantError struct {
	Key keys.Key
}

func (e *IndeterminantError) Error() string {
	return fmt.Sprintf("linear: indeterminant system near variable %s", e.Key)
}
