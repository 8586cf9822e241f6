package linear

import "github.com/jlblancoc/gtsam/keys"

// Ordering is an elimination order over variables.
type Ordering []keys.Key

// DefaultOrdering returns the graph's variables in ascending key
// order. It is deterministic and always valid; fill-reducing orderings
// are the caller's concern.
func DefaultOrdering(g *FactorGraph) Ordering {
	return Ordering(g.Keys())
}

// complement returns all keys of `all` that are not in drop, keeping
// their order.
func complement(all []keys.Key, drop Ordering) Ordering {
	skip := make(map[keys.Key]struct{}, len(drop))
	for _, k := range drop {
		skip[k] = struct{}{}
	}
	var out Ordering
	for _, k := range all {
		if _, ok := skip[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
