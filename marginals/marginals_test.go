package marginals_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/jlblancoc/gtsam/keys"
	"github.com/jlblancoc/gtsam/linear"
	"github.com/jlblancoc/gtsam/marginals"
	"github.com/jlblancoc/gtsam/noise"
	"github.com/jlblancoc/gtsam/utils"
)

var (
	x1 = keys.Symbol('x', 1)
	x2 = keys.Symbol('x', 2)
	x3 = keys.Symbol('x', 3)
)

var strategies = map[string]linear.Strategy{
	"cholesky": linear.Cholesky,
	"qr":       linear.QR,
}

func prior(t *testing.T, k keys.Key, sigma float64) *linear.JacobianFactor {
	t.Helper()
	var model noise.Model
	if sigma != 1 {
		m, err := noise.NewIsotropic(1, sigma)
		require.NoError(t, err)
		model = m
	}
	f, err := linear.NewJacobianFactor([]linear.Term{
		{Key: k, A: mat.NewDense(1, 1, []float64{1})},
	}, mat.NewVecDense(1, nil), model)
	require.NoError(t, err)
	return f
}

func between(t *testing.T, a, b keys.Key) *linear.JacobianFactor {
	t.Helper()
	f, err := linear.NewJacobianFactor([]linear.Term{
		{Key: a, A: mat.NewDense(1, 1, []float64{-1})},
		{Key: b, A: mat.NewDense(1, 1, []float64{1})},
	}, mat.NewVecDense(1, nil), nil)
	require.NoError(t, err)
	return f
}

// chainGraph has joint covariance [[1,1,1],[1,2,2],[1,2,3]] over
// (x1,x2,x3).
func chainGraph(t *testing.T) *linear.FactorGraph {
	t.Helper()
	g := linear.NewFactorGraph()
	g.Add(prior(t, x1, 1))
	g.Add(between(t, x1, x2))
	g.Add(between(t, x2, x3))
	return g
}

func chainValues(t *testing.T) linear.VectorValues {
	t.Helper()
	v := linear.NewVectorValues()
	for _, k := range []keys.Key{x1, x2, x3} {
		require.NoError(t, v.Insert(k, mat.NewVecDense(1, nil)))
	}
	return v
}

func chainEngine(t *testing.T, s linear.Strategy) *marginals.Marginals {
	t.Helper()
	m, err := marginals.New(chainGraph(t), chainValues(t), s)
	require.NoError(t, err)
	return m
}

// mixedChainGraph chains a two-dimensional x1 to the scalars x2 and x3
// through x1's first coordinate only. Its joint covariance over
// (x1,x2,x3) is
//
//	[2/3   0  1/3  1/3]
//	[  0   1    0    0]
//	[1/3   0  2/3  2/3]
//	[1/3   0  2/3  5/3]
func mixedChainGraph(t *testing.T) *linear.FactorGraph {
	t.Helper()
	g := linear.NewFactorGraph()
	p, err := linear.NewJacobianFactor([]linear.Term{
		{Key: x1, A: utils.Eye(2)},
	}, mat.NewVecDense(2, nil), nil)
	require.NoError(t, err)
	g.Add(p)
	g.Add(prior(t, x2, 1))
	link, err := linear.NewJacobianFactor([]linear.Term{
		{Key: x1, A: mat.NewDense(1, 2, []float64{-1, 0})},
		{Key: x2, A: mat.NewDense(1, 1, []float64{1})},
	}, mat.NewVecDense(1, nil), nil)
	require.NoError(t, err)
	g.Add(link)
	g.Add(between(t, x2, x3))
	return g
}

func mixedChainValues(t *testing.T) linear.VectorValues {
	t.Helper()
	v := linear.NewVectorValues()
	require.NoError(t, v.Insert(x1, mat.NewVecDense(2, nil)))
	require.NoError(t, v.Insert(x2, mat.NewVecDense(1, nil)))
	require.NoError(t, v.Insert(x3, mat.NewVecDense(1, nil)))
	return v
}

func TestMarginalCovariance(t *testing.T) {
	expected := map[keys.Key]float64{x1: 1, x2: 2, x3: 3}
	for name, s := range strategies {
		t.Run(name, func(t *testing.T) {
			m := chainEngine(t, s)
			for k, want := range expected {
				cov, err := m.MarginalCovariance(k)
				require.NoError(t, err)
				assert.InDelta(t, want, cov.At(0, 0), 1e-9, "covariance of %s", k)

				info, err := m.MarginalInformation(k)
				require.NoError(t, err)
				assert.InDelta(t, 1/want, info.At(0, 0), 1e-9, "information of %s", k)
			}
		})
	}
}

func TestMarginalCovariances(t *testing.T) {
	m := chainEngine(t, linear.Cholesky)
	covs, err := m.MarginalCovariances([]keys.Key{x1, x2, x3})
	require.NoError(t, err)
	require.Len(t, covs, 3)
	assert.InDelta(t, 1.0, covs[x1].At(0, 0), 1e-9)
	assert.InDelta(t, 2.0, covs[x2].At(0, 0), 1e-9)
	assert.InDelta(t, 3.0, covs[x3].At(0, 0), 1e-9)

	_, err = m.MarginalCovariances([]keys.Key{x1, keys.Symbol('x', 9)})
	assert.ErrorIs(t, err, linear.ErrKeyNotFound)
}

func TestJointMarginalInformationPair(t *testing.T) {
	for name, s := range strategies {
		t.Run(name, func(t *testing.T) {
			m := chainEngine(t, s)
			jm, err := m.JointMarginalInformation([]keys.Key{x3, x1})
			require.NoError(t, err)

			assert.Equal(t, []keys.Key{x3, x1}, jm.Keys())
			d, err := jm.Dim(x3)
			require.NoError(t, err)
			assert.Equal(t, 1, d)

			// inv([[3,1],[1,1]]) = [[0.5,-0.5],[-0.5,1.5]]
			b33, err := jm.At(x3, x3)
			require.NoError(t, err)
			assert.InDelta(t, 0.5, b33.At(0, 0), 1e-9)
			b31, err := jm.At(x3, x1)
			require.NoError(t, err)
			assert.InDelta(t, -0.5, b31.At(0, 0), 1e-9)
			b11, err := jm.At(x1, x1)
			require.NoError(t, err)
			assert.InDelta(t, 1.5, b11.At(0, 0), 1e-9)

			_, err = jm.At(x3, x2)
			assert.ErrorIs(t, err, linear.ErrKeyNotFound)
			_, err = jm.Dim(x2)
			assert.ErrorIs(t, err, linear.ErrKeyNotFound)
		})
	}
}

func TestJointMarginalCovariancePair(t *testing.T) {
	for name, s := range strategies {
		t.Run(name, func(t *testing.T) {
			m := chainEngine(t, s)
			jm, err := m.JointMarginalCovariance([]keys.Key{x3, x1})
			require.NoError(t, err)

			expected := mat.NewDense(2, 2, []float64{
				3, 1,
				1, 1,
			})
			assert.True(t, mat.EqualApprox(expected, jm.FullMatrix(), 1e-9))
		})
	}
}

// Joints over more than two variables fall back to re-eliminating the
// graph with the requested variables last, in request order.
func TestJointMarginalThreeVariables(t *testing.T) {
	for name, s := range strategies {
		t.Run(name, func(t *testing.T) {
			m := chainEngine(t, s)
			jm, err := m.JointMarginalCovariance([]keys.Key{x2, x3, x1})
			require.NoError(t, err)

			expected := mat.NewDense(3, 3, []float64{
				2, 2, 1,
				2, 3, 1,
				1, 1, 1,
			})
			assert.True(t, mat.EqualApprox(expected, jm.FullMatrix(), 1e-9))
		})
	}
}

// Two unit-variance priors linked by a unit-information constraint:
// the joint information is [[2,-1],[-1,2]], so the joint covariance is
// its closed-form inverse.
func TestJointMarginalTwoPoseClosedForm(t *testing.T) {
	for name, s := range strategies {
		t.Run(name, func(t *testing.T) {
			g := linear.NewFactorGraph()
			g.Add(prior(t, x1, 1))
			g.Add(between(t, x1, x2))
			g.Add(prior(t, x2, 1))
			v := linear.NewVectorValues()
			require.NoError(t, v.Insert(x1, mat.NewVecDense(1, nil)))
			require.NoError(t, v.Insert(x2, mat.NewVecDense(1, nil)))

			m, err := marginals.New(g, v, s)
			require.NoError(t, err)
			jm, err := m.JointMarginalCovariance([]keys.Key{x1, x2})
			require.NoError(t, err)

			expected := mat.NewDense(2, 2, []float64{
				2.0 / 3, 1.0 / 3,
				1.0 / 3, 2.0 / 3,
			})
			assert.True(t, mat.EqualApprox(expected, jm.FullMatrix(), 1e-9))
		})
	}
}

func TestJointMarginalSingleVariable(t *testing.T) {
	m := chainEngine(t, linear.Cholesky)
	jm, err := m.JointMarginalInformation([]keys.Key{x2})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, jm.FullMatrix().At(0, 0), 1e-9)

	cov, err := m.JointMarginalCovariance([]keys.Key{x2})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, cov.FullMatrix().At(0, 0), 1e-9)
}

// Cross blocks of a joint marginal are each other's transposes.
func TestJointMarginalSymmetry(t *testing.T) {
	m := chainEngine(t, linear.QR)
	jm, err := m.JointMarginalCovariance([]keys.Key{x1, x2, x3})
	require.NoError(t, err)

	for _, a := range []keys.Key{x1, x2, x3} {
		for _, b := range []keys.Key{x1, x2, x3} {
			ab, err := jm.At(a, b)
			require.NoError(t, err)
			ba, err := jm.At(b, a)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(ab, ba.T(), 1e-9), "blocks (%s,%s)", a, b)
		}
	}
}

// Queries do not mutate the engine: asking twice yields the same
// answer.
func TestJointMarginalIdempotent(t *testing.T) {
	m := chainEngine(t, linear.Cholesky)
	first, err := m.JointMarginalCovariance([]keys.Key{x3, x1})
	require.NoError(t, err)
	second, err := m.JointMarginalCovariance([]keys.Key{x3, x1})
	require.NoError(t, err)
	assert.True(t, mat.Equal(first.FullMatrix(), second.FullMatrix()))
}

// Independent variables have a block-diagonal joint covariance.
func TestJointMarginalIndependentBlocks(t *testing.T) {
	g := linear.NewFactorGraph()
	g.Add(prior(t, x1, 1))
	g.Add(prior(t, x2, 0.5))
	v := linear.NewVectorValues()
	require.NoError(t, v.Insert(x1, mat.NewVecDense(1, nil)))
	require.NoError(t, v.Insert(x2, mat.NewVecDense(1, nil)))

	m, err := marginals.New(g, v, linear.Cholesky)
	require.NoError(t, err)
	jm, err := m.JointMarginalCovariance([]keys.Key{x1, x2})
	require.NoError(t, err)

	expected := utils.BlockDiag(2,
		mat.NewDense(1, 1, []float64{1}),
		mat.NewDense(1, 1, []float64{0.25}),
	)
	assert.True(t, mat.EqualApprox(expected, jm.FullMatrix(), 1e-9))
}

func TestMarginalsMultiDimensional(t *testing.T) {
	model, err := noise.NewIsotropic(2, 0.5)
	require.NoError(t, err)
	f, err := linear.NewJacobianFactor([]linear.Term{
		{Key: x1, A: utils.Eye(2)},
	}, mat.NewVecDense(2, []float64{1, 2}), model)
	require.NoError(t, err)
	g := linear.NewFactorGraph()
	g.Add(f)

	v := linear.NewVectorValues()
	require.NoError(t, v.Insert(x1, mat.NewVecDense(2, []float64{1, 2})))

	for name, s := range strategies {
		t.Run(name, func(t *testing.T) {
			m, err := marginals.New(g, v, s)
			require.NoError(t, err)

			cov, err := m.MarginalCovariance(x1)
			require.NoError(t, err)
			expected := mat.NewSymDense(2, []float64{
				0.25, 0,
				0, 0.25,
			})
			assert.True(t, mat.EqualApprox(expected, cov, 1e-9))

			jm, err := m.JointMarginalInformation([]keys.Key{x1})
			require.NoError(t, err)
			d, err := jm.Dim(x1)
			require.NoError(t, err)
			assert.Equal(t, 2, d)
		})
	}
}

// With a two-dimensional variable in the joint, the cross blocks are
// rectangular and must still be each other's transposes.
func TestJointMarginalMixedDimensions(t *testing.T) {
	for name, s := range strategies {
		t.Run(name, func(t *testing.T) {
			m, err := marginals.New(mixedChainGraph(t), mixedChainValues(t), s)
			require.NoError(t, err)

			jm, err := m.JointMarginalCovariance([]keys.Key{x1, x2})
			require.NoError(t, err)
			expected := mat.NewDense(3, 3, []float64{
				2.0 / 3, 0, 1.0 / 3,
				0, 1, 0,
				1.0 / 3, 0, 2.0 / 3,
			})
			assert.True(t, mat.EqualApprox(expected, jm.FullMatrix(), 1e-9))

			cross, err := jm.At(x1, x2)
			require.NoError(t, err)
			r, c := cross.Dims()
			assert.Equal(t, 2, r)
			assert.Equal(t, 1, c)
			back, err := jm.At(x2, x1)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(cross, back.T(), 1e-9))

			single, err := m.JointMarginalCovariance([]keys.Key{x1})
			require.NoError(t, err)
			cov, err := m.MarginalCovariance(x1)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(cov, single.FullMatrix(), 1e-9))
		})
	}
}

func TestJointMarginalMixedDimensionsThreeVariables(t *testing.T) {
	for name, s := range strategies {
		t.Run(name, func(t *testing.T) {
			m, err := marginals.New(mixedChainGraph(t), mixedChainValues(t), s)
			require.NoError(t, err)

			jm, err := m.JointMarginalCovariance([]keys.Key{x2, x1, x3})
			require.NoError(t, err)
			expected := mat.NewDense(4, 4, []float64{
				2.0 / 3, 1.0 / 3, 0, 2.0 / 3,
				1.0 / 3, 2.0 / 3, 0, 1.0 / 3,
				0, 0, 1, 0,
				2.0 / 3, 1.0 / 3, 0, 5.0 / 3,
			})
			assert.True(t, mat.EqualApprox(expected, jm.FullMatrix(), 1e-9))

			d, err := jm.Dim(x1)
			require.NoError(t, err)
			assert.Equal(t, 2, d)
		})
	}
}

func TestMarginalsArgumentErrors(t *testing.T) {
	_, err := marginals.New(linear.NewFactorGraph(), linear.NewVectorValues(), linear.Cholesky)
	assert.ErrorIs(t, err, linear.ErrInvalidArgument)

	_, err = marginals.New(nil, linear.NewVectorValues(), linear.Cholesky)
	assert.ErrorIs(t, err, linear.ErrInvalidArgument)

	m := chainEngine(t, linear.Cholesky)

	_, err = m.JointMarginalInformation(nil)
	assert.ErrorIs(t, err, linear.ErrInvalidArgument)

	_, err = m.JointMarginalInformation([]keys.Key{x1, x1})
	assert.ErrorIs(t, err, linear.ErrInvalidArgument)

	_, err = m.JointMarginalInformation([]keys.Key{x1, keys.Symbol('x', 9)})
	assert.ErrorIs(t, err, linear.ErrKeyNotFound)

	_, err = m.MarginalCovariance(keys.Symbol('x', 9))
	assert.ErrorIs(t, err, linear.ErrKeyNotFound)
}

type chainLinearizer struct {
	fail bool
}

func (l *chainLinearizer) Linearize(solution linear.VectorValues) (*linear.FactorGraph, error) {
	if l.fail {
		return nil, linear.ErrInvalidArgument
	}
	g := linear.NewFactorGraph()
	a := mat.NewDense(1, 1, []float64{1})
	f, err := linear.NewJacobianFactor([]linear.Term{{Key: x1, A: a}}, mat.NewVecDense(1, nil), nil)
	if err != nil {
		return nil, err
	}
	g.Add(f)
	return g, nil
}

func TestNewFromLinearizer(t *testing.T) {
	v := linear.NewVectorValues()
	require.NoError(t, v.Insert(x1, mat.NewVecDense(1, nil)))

	m, err := marginals.NewFromLinearizer(&chainLinearizer{}, v, linear.Cholesky)
	require.NoError(t, err)
	cov, err := m.MarginalCovariance(x1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cov.At(0, 0), 1e-9)

	_, err = marginals.NewFromLinearizer(nil, v, linear.Cholesky)
	assert.ErrorIs(t, err, linear.ErrInvalidArgument)

	_, err = marginals.NewFromLinearizer(&chainLinearizer{fail: true}, v, linear.Cholesky)
	assert.ErrorIs(t, err, linear.ErrInvalidArgument)
}
