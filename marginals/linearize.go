package marginals

import (
	"fmt"

	"github.com/jlblancoc/gtsam/linear"
)

// Linearizer produces the linear factor graph of a problem at a given
// solution point. Nonlinear front ends implement it; the engine calls
// it exactly once, at construction.
type Linearizer interface {
	Linearize(solution linear.VectorValues) (*linear.FactorGraph, error)
}

// NewFromLinearizer linearizes the problem at solution and builds the
// engine over the resulting graph.
func NewFromLinearizer(lz Linearizer, solution linear.VectorValues, strategy linear.Strategy) (*Marginals, error) {
	if lz == nil {
		return nil, fmt.Errorf("marginals: nil linearizer: %w", linear.ErrInvalidArgument)
	}
	graph, err := lz.Linearize(solution)
	if err != nil {
		return nil, fmt.Errorf("marginals: linearize: %w", err)
	}
	return New(graph, solution, strategy)
}
