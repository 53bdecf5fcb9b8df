package broadcast

import "github.com/lumennet/lumen-core/core"

// Plan is a topology provider's answer to "who should I be connected to".
// Clusters are ordered by hop distance: Clusters[0] is the direct
// neighborhood, Clusters[1:] are wider reachability hints.
type Plan struct {
	Clusters [][]core.NodeIndex
}

// TopologyProvider computes a fresh connection plan on epoch change. It runs
// on a background worker (spec §4.7: "topology computation runs on a
// background worker and delivers results via a channel") so the event loop
// never blocks on it.
type TopologyProvider interface {
	ComputePlan(epoch core.Epoch) (Plan, error)
}

// Dialer opens a new Stream to a node, resolving its network address out of
// band (DNS, a discovery service, ...) — an external collaborator per spec
// §1, same boundary as the pool transport itself.
type Dialer interface {
	Dial(node core.NodeIndex) (Stream, error)
}

// diffTopology computes the additions (to dial) and removals (to drop) to
// move the current peer set to plan (spec §9 open question resolved: "a
// set-diff over the flattened cluster list vs. current peer set; drop peers
// missing from the new plan, dial peers present but not connected"). Only
// the direct neighborhood (plan.Clusters[0]) is dialed; wider clusters are
// recorded as reachability hints only, since spec does not define a
// multi-hop dial policy and eagerly dialing every cluster would blow past
// any connection quota.
func diffTopology(current map[core.NodeIndex]struct{}, plan Plan) (toDial []core.NodeIndex, toDrop []core.NodeIndex) {
	wanted := make(map[core.NodeIndex]struct{})
	if len(plan.Clusters) > 0 {
		for _, n := range plan.Clusters[0] {
			wanted[n] = struct{}{}
		}
	}
	for n := range wanted {
		if _, connected := current[n]; !connected {
			toDial = append(toDial, n)
		}
	}
	for n := range current {
		if _, wantedStill := wanted[n]; !wantedStill {
			toDrop = append(toDrop, n)
		}
	}
	return toDial, toDrop
}
