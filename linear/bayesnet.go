package linear

import "fmt"

// BayesNet is the product of sequential elimination: one conditional
// per eliminated variable, in elimination order.
type BayesNet struct {
	conds []*Conditional
}

// Len returns the number of conditionals.
func (n *BayesNet) Len() int {
	return len(n.conds)
}

// Conditional returns the i-th conditional in elimination order.
func (n *BayesNet) Conditional(i int) (*Conditional, error) {
	if i < 0 || i >= len(n.conds) {
		return nil, fmt.Errorf("linear: conditional %d of %d: %w", i, len(n.conds), ErrIndexOutOfRange)
	}
	return n.conds[i], nil
}

// Conditionals returns the conditionals in elimination order.
func (n *BayesNet) Conditionals() []*Conditional {
	return append([]*Conditional(nil), n.conds...)
}

// Optimize computes the maximum-a-posteriori solution by
// back-substitution in reverse elimination order.
func (n *BayesNet) Optimize() (VectorValues, error) {
	x := NewVectorValues()
	for i := len(n.conds) - 1; i >= 0; i-- {
		c := n.conds[i]
		v, err := c.Solve(x)
		if err != nil {
			return nil, err
		}
		if err := x.Insert(c.Frontal(), v); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// AsFactorGraph views every conditional as a unit-noise factor.
func (n *BayesNet) AsFactorGraph() *FactorGraph {
	g := NewFactorGraph()
	for _, c := range n.conds {
		g.Add(c.AsFactor())
	}
	return g
}
