// Package marginals answers covariance and information queries about
// the variables of a Gaussian factor graph. The graph is eliminated
// once into a Bayes tree at construction; queries then work off the
// tree without revisiting the original factors, except for joints over
// more than two variables.
package marginals

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/jlblancoc/gtsam/keys"
	"github.com/jlblancoc/gtsam/linear"
	"github.com/jlblancoc/gtsam/logger"
	"github.com/jlblancoc/gtsam/utils"
)

// Marginals is the query engine over one eliminated factor graph. It is
// safe for concurrent queries once constructed.
type Marginals struct {
	graph    *linear.FactorGraph
	values   linear.VectorValues
	strategy linear.Strategy
	tree     *linear.BayesTree
}

// New eliminates graph under the given strategy and returns an engine
// bound to it. The solution mapping provides the dimension of each
// queried variable; it is not otherwise consulted.
func New(graph *linear.FactorGraph, solution linear.VectorValues, strategy linear.Strategy) (*Marginals, error) {
	if graph == nil || graph.Len() == 0 {
		return nil, fmt.Errorf("marginals: empty factor graph: %w", linear.ErrInvalidArgument)
	}
	start := time.Now()
	tree, err := graph.EliminateTree(linear.DefaultOrdering(graph), strategy)
	if err != nil {
		return nil, err
	}
	log := logger.Logger()
	log.Debug().
		Int("factors", graph.Len()).
		Int("cliques", tree.Len()).
		Str("strategy", strategy.String()).
		Dur("took", time.Since(start)).
		Msg("eliminated factor graph")

	return &Marginals{graph: graph, values: solution, strategy: strategy, tree: tree}, nil
}

// MarginalInformation returns the information matrix of a single
// variable.
func (m *Marginals) MarginalInformation(k keys.Key) (*mat.SymDense, error) {
	f, err := m.tree.MarginalFactor(k, m.strategy)
	if err != nil {
		return nil, err
	}
	return f.Information(), nil
}

// MarginalCovariance returns the covariance of a single variable, the
// inverse of its marginal information.
func (m *Marginals) MarginalCovariance(k keys.Key) (*mat.SymDense, error) {
	info, err := m.MarginalInformation(k)
	if err != nil {
		return nil, err
	}
	cov, err := invert(info)
	if err != nil {
		return nil, fmt.Errorf("marginals: covariance of %s: %w", k, err)
	}
	return utils.SymFromDense(cov), nil
}

// MarginalCovariances computes single-variable covariances for several
// variables at once. Queries only read the eliminated tree, so they
// run concurrently.
func (m *Marginals) MarginalCovariances(ks []keys.Key) (map[keys.Key]*mat.SymDense, error) {
	out := make([]*mat.SymDense, len(ks))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, k := range ks {
		g.Go(func() error {
			cov, err := m.MarginalCovariance(k)
			if err != nil {
				return err
			}
			out[i] = cov
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res := make(map[keys.Key]*mat.SymDense, len(ks))
	for i, k := range ks {
		res[k] = out[i]
	}
	return res, nil
}

// JointMarginalInformation computes the joint information matrix over
// the requested variables, partitioned in the caller's order.
//
// Joints over one variable reuse the single marginal; over two, the
// Bayes tree answers from the two root paths; over more, the original
// graph is re-eliminated with the requested variables last.
func (m *Marginals) JointMarginalInformation(ks []keys.Key) (*JointMarginal, error) {
	if len(ks) == 0 {
		return nil, fmt.Errorf("marginals: no variables requested: %w", linear.ErrInvalidArgument)
	}
	seen := make(map[keys.Key]struct{}, len(ks))
	for _, k := range ks {
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("marginals: variable %s requested twice: %w", k, linear.ErrInvalidArgument)
		}
		seen[k] = struct{}{}
	}
	dims := make([]int, len(ks))
	for i, k := range ks {
		d, err := m.values.Dim(k)
		if err != nil {
			return nil, fmt.Errorf("marginals: solution has no %s: %w", k, err)
		}
		dims[i] = d
	}

	switch len(ks) {
	case 1:
		info, err := m.MarginalInformation(ks[0])
		if err != nil {
			return nil, err
		}
		var dense mat.Dense
		dense.CloneFrom(info)
		return newJointMarginal(&dense, ks, dims)
	case 2:
		jg, err := m.tree.JointFactorGraph(ks[0], ks[1], m.strategy)
		if err != nil {
			return nil, err
		}
		return m.jointFromGraph(jg, ks, dims)
	default:
		start := time.Now()
		mtree, err := m.graph.MarginalBayesTree(linear.Ordering(ks), m.strategy)
		if err != nil {
			return nil, err
		}
		log := logger.Logger()
		log.Debug().
			Int("variables", len(ks)).
			Dur("took", time.Since(start)).
			Msg("re-eliminated graph for joint marginal")
		return m.jointFromGraph(mtree.AsFactorGraph(), ks, dims)
	}
}

// jointFromGraph assembles the joint information of fg over ks and
// strips the trailing right-hand side row and column.
func (m *Marginals) jointFromGraph(fg *linear.FactorGraph, ks []keys.Key, dims []int) (*JointMarginal, error) {
	aug, err := fg.AugmentedHessian(linear.Ordering(ks))
	if err != nil {
		return nil, err
	}
	n := aug.SymmetricDim() - 1
	var dense mat.Dense
	dense.CloneFrom(aug.SliceSym(0, n))
	return newJointMarginal(&dense, ks, dims)
}

// JointMarginalCovariance computes the joint covariance over the
// requested variables: the inverse of the full joint information, with
// the same partition.
func (m *Marginals) JointMarginalCovariance(ks []keys.Key) (*JointMarginal, error) {
	jm, err := m.JointMarginalInformation(ks)
	if err != nil {
		return nil, err
	}
	cov, err := invert(jm.matrix)
	if err != nil {
		return nil, fmt.Errorf("marginals: joint covariance: %w", err)
	}
	return &JointMarginal{keys: jm.keys, dims: jm.dims, offs: jm.offs, matrix: cov}, nil
}

// invert numerically inverts an information matrix. Exact singularity
// is an error; a finite but poor condition number is logged and
// accepted.
func invert(a mat.Matrix) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) && !math.IsInf(float64(cond), 1) {
			log := logger.Logger()
			log.Warn().
				Float64("condition", float64(cond)).
				Msg("ill-conditioned information matrix")
		} else {
			return nil, fmt.Errorf("marginals: information matrix is singular (%v): %w",
				err, linear.ErrNotPositiveDefinite)
		}
	}
	return &inv, nil
}
