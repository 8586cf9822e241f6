package linear

import (
	"fmt"
	"sort"

	"github.com/jlblancoc/gtsam/keys"
)

// Clique is one node of a Bayes tree, holding the conditional of its
// frontal variable.
type Clique struct {
	conditional *Conditional
	parent      *Clique
	children    []*Clique
}

// Conditional returns the clique's conditional.
func (c *Clique) Conditional() *Conditional {
	return c.conditional
}

// Parent returns the parent clique, nil at a root.
func (c *Clique) Parent() *Clique {
	return c.parent
}

// BayesTree indexes the conditionals of an eliminated graph by frontal
// variable and answers marginal queries without touching the original
// factors again. Disconnected graphs yield one root per component.
type BayesTree struct {
	roots []*Clique
	index map[keys.Key]*Clique
	order map[keys.Key]int // elimination positions
}

// newBayesTree wires the conditionals of a sequential elimination into
// a tree: each clique hangs off the clique of its earliest-eliminated
// parent. The running intersection property of sequential elimination
// guarantees that all other parents appear further up that path.
func newBayesTree(net *BayesNet) (*BayesTree, error) {
	t := &BayesTree{
		index: make(map[keys.Key]*Clique, net.Len()),
		order: make(map[keys.Key]int, net.Len()),
	}
	for i, c := range net.conds {
		if _, dup := t.order[c.Frontal()]; dup {
			return nil, fmt.Errorf("linear: variable %s eliminated twice: %w", c.Frontal(), ErrInvalidArgument)
		}
		t.order[c.Frontal()] = i
	}
	// Root-first: conditionals with later elimination positions sit
	// closer to the root.
	for i := net.Len() - 1; i >= 0; i-- {
		c := net.conds[i]
		cl := &Clique{conditional: c}
		t.index[c.Frontal()] = cl

		parents := c.Parents()
		if len(parents) == 0 {
			t.roots = append(t.roots, cl)
			continue
		}
		earliest := parents[0]
		for _, p := range parents[1:] {
			if t.order[p] < t.order[earliest] {
				earliest = p
			}
		}
		pcl, ok := t.index[earliest]
		if !ok {
			return nil, fmt.Errorf("linear: parent %s of %s has no clique: %w",
				earliest, c.Frontal(), ErrKeyNotFound)
		}
		cl.parent = pcl
		pcl.children = append(pcl.children, cl)
	}
	return t, nil
}

// Len returns the number of cliques.
func (t *BayesTree) Len() int {
	return len(t.index)
}

// Roots returns the root cliques.
func (t *BayesTree) Roots() []*Clique {
	return append([]*Clique(nil), t.roots...)
}

// Clique returns the clique whose frontal variable is k.
func (t *BayesTree) Clique(k keys.Key) (*Clique, error) {
	cl, ok := t.index[k]
	if !ok {
		return nil, fmt.Errorf("linear: variable %s not in bayes tree: %w", k, ErrKeyNotFound)
	}
	return cl, nil
}

func (t *BayesTree) pathToRoot(k keys.Key) ([]*Clique, error) {
	cl, err := t.Clique(k)
	if err != nil {
		return nil, err
	}
	var path []*Clique
	for ; cl != nil; cl = cl.parent {
		path = append(path, cl)
	}
	return path, nil
}

// byEliminationOrder sorts ks ascending by their original elimination
// position.
func (t *BayesTree) byEliminationOrder(ks []keys.Key) Ordering {
	out := Ordering(append([]keys.Key(nil), ks...))
	sort.Slice(out, func(i, j int) bool { return t.order[out[i]] < t.order[out[j]] })
	return out
}

// MarginalFactor computes the marginal density of variable k as a
// unit-noise factor, by eliminating everything but k from the
// conditionals on k's path to the root.
func (t *BayesTree) MarginalFactor(k keys.Key, s Strategy) (GaussianFactor, error) {
	path, err := t.pathToRoot(k)
	if err != nil {
		return nil, err
	}
	g := NewFactorGraph()
	var others []keys.Key
	for _, cl := range path {
		g.Add(cl.conditional.AsFactor())
		if f := cl.conditional.Frontal(); f != k {
			others = append(others, f)
		}
	}
	_, rem, err := g.EliminatePartial(t.byEliminationOrder(others), s)
	if err != nil {
		return nil, err
	}
	net, err := rem.EliminateSequential(Ordering{k}, s)
	if err != nil {
		return nil, err
	}
	return net.conds[0].AsFactor(), nil
}

// JointFactorGraph computes the joint density over variables a and b
// as a factor graph, by eliminating everything else from the union of
// both root paths.
func (t *BayesTree) JointFactorGraph(a, b keys.Key, s Strategy) (*FactorGraph, error) {
	if a == b {
		return nil, fmt.Errorf("linear: joint of %s with itself: %w", a, ErrInvalidArgument)
	}
	pa, err := t.pathToRoot(a)
	if err != nil {
		return nil, err
	}
	pb, err := t.pathToRoot(b)
	if err != nil {
		return nil, err
	}

	g := NewFactorGraph()
	var others []keys.Key
	seen := make(map[keys.Key]struct{})
	for _, cl := range append(pa, pb...) {
		f := cl.conditional.Frontal()
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		g.Add(cl.conditional.AsFactor())
		if f != a && f != b {
			others = append(others, f)
		}
	}
	_, rem, err := g.EliminatePartial(t.byEliminationOrder(others), s)
	if err != nil {
		return nil, err
	}
	net, err := rem.EliminateSequential(Ordering{a, b}, s)
	if err != nil {
		return nil, err
	}
	return net.AsFactorGraph(), nil
}

// AsFactorGraph flattens every clique's conditional into a unit-noise
// factor graph.
func (t *BayesTree) AsFactorGraph() *FactorGraph {
	g := NewFactorGraph()
	t.walk(func(cl *Clique) {
		g.Add(cl.conditional.AsFactor())
	})
	return g
}

// Optimize computes the maximum-a-posteriori solution by solving each
// clique after its parent, from the roots down.
func (t *BayesTree) Optimize() (VectorValues, error) {
	x := NewVectorValues()
	var solve func(cl *Clique) error
	solve = func(cl *Clique) error {
		v, err := cl.conditional.Solve(x)
		if err != nil {
			return err
		}
		if err := x.Insert(cl.conditional.Frontal(), v); err != nil {
			return err
		}
		for _, ch := range cl.children {
			if err := solve(ch); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range t.roots {
		if err := solve(r); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func (t *BayesTree) walk(visit func(*Clique)) {
	var rec func(cl *Clique)
	rec = func(cl *Clique) {
		visit(cl)
		for _, ch := range cl.children {
			rec(ch)
		}
	}
	for _, r := range t.roots {
		rec(r)
	}
}
