package linear

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/jlblancoc/gtsam/keys"
	"github.com/jlblancoc/gtsam/utils"
)

// FactorGraph is an ordered collection of Gaussian factors over keyed
// variables.
type FactorGraph struct {
	factors []GaussianFactor
}

// NewFactorGraph returns an empty graph.
func NewFactorGraph() *FactorGraph {
	return &FactorGraph{}
}

// Add appends a factor.
func (g *FactorGraph) Add(f GaussianFactor) {
	g.factors = append(g.factors, f)
}

// Len returns the number of factors.
func (g *FactorGraph) Len() int {
	return len(g.factors)
}

// Factor returns the i-th factor in insertion order.
func (g *FactorGraph) Factor(i int) (GaussianFactor, error) {
	if i < 0 || i >= len(g.factors) {
		return nil, fmt.Errorf("linear: factor %d of %d: %w", i, len(g.factors), ErrIndexOutOfRange)
	}
	return g.factors[i], nil
}

// Factors returns the factors in insertion order.
func (g *FactorGraph) Factors() []GaussianFactor {
	return append([]GaussianFactor(nil), g.factors...)
}

// Keys returns every variable referenced by the graph, ascending.
func (g *FactorGraph) Keys() []keys.Key {
	seen := make(map[keys.Key]struct{})
	for _, f := range g.factors {
		for _, k := range f.Keys() {
			seen[k] = struct{}{}
		}
	}
	ks := make([]keys.Key, 0, len(seen))
	for k := range seen {
		ks = append(ks, k)
	}
	return keys.Sort(ks)
}

// Error sums the factors' errors at x. Like GaussianFactor.Error, it
// panics if x lacks a referenced variable.
func (g *FactorGraph) Error(x VectorValues) float64 {
	total := 0.0
	for _, f := range g.factors {
		total += f.Error(x)
	}
	return total
}

// scatter lays the graph's variables out as contiguous column spans in
// the order given by ord.
type scatter struct {
	order []keys.Key
	offs  map[keys.Key]int
	dims  map[keys.Key]int
	total int
}

func newScatter(g *FactorGraph, ord Ordering) (*scatter, error) {
	dims := make(map[keys.Key]int)
	for _, f := range g.factors {
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
	offs := make(map[keys.Key]int, len(ord))
	total := 0
	for _, k := range ord {
		d, ok := dims[k]
		if !ok {
			return nil, fmt.Errorf("linear: variable %s not in graph: %w", k, ErrKeyNotFound)
		}
		if _, dup := offs[k]; dup {
			return nil, fmt.Errorf("linear: variable %s listed twice: %w", k, ErrInvalidArgument)
		}
		offs[k] = total
		total += d
	}
	if len(offs) != len(dims) {
		for k := range dims {
			if _, ok := offs[k]; !ok {
				return nil, fmt.Errorf("linear: graph variable %s missing from ordering: %w", k, ErrKeyNotFound)
			}
		}
	}
	return &scatter{order: append([]keys.Key(nil), ord...), offs: offs, dims: dims, total: total}, nil
}

// AugmentedHessian sums the factors' augmented informations into the
// column layout given by ord, with one trailing row and column for the
// right-hand side. ord must cover the graph's variables exactly.
func (g *FactorGraph) AugmentedHessian(ord Ordering) (*mat.SymDense, error) {
	sc, err := newScatter(g, ord)
	if err != nil {
		return nil, err
	}
	acc := mat.NewDense(sc.total+1, sc.total+1, nil)
	for _, f := range g.factors {
		if err := addAugmented(acc, f, sc.offs, sc.total); err != nil {
			return nil, err
		}
	}
	return utils.SymFromDense(acc), nil
}

// addAugmented accumulates f's augmented information into acc, an
// (n+1)x(n+1) accumulator whose variable columns start at offs and
// whose right-hand side row and column sit at index rhs.
func addAugmented(acc *mat.Dense, f GaussianFactor, offs map[keys.Key]int, rhs int) error {
	aug := f.AugmentedInformation()

	type span struct{ global, local, dim int }
	fk := f.Keys()
	spans := make([]span, 0, len(fk)+1)
	local := 0
	for _, k := range fk {
		d, err := f.Dim(k)
		if err != nil {
			return err
		}
		spans = append(spans, span{offs[k], local, d})
		local += d
	}
	spans = append(spans, span{rhs, local, 1})

	for _, a := range spans {
		for _, b := range spans {
			for i := 0; i < a.dim; i++ {
				for j := 0; j < b.dim; j++ {
					acc.Set(a.global+i, b.global+j,
						acc.At(a.global+i, b.global+j)+aug.At(a.local+i, b.local+j))
				}
			}
		}
	}
	return nil
}
