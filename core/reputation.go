package core

import "sort"

// applyReputationScores aggregates this epoch's accumulated measurements into
// a single per-subject score (spec §4.8), called as step 1 of the epoch
// transition (spec §4.3.2). Subjects with fewer than MinReportsForScore
// reports are skipped and retain their prior score.
func applyReputationScores(b *WriteBatch) {
	for subject, reports := range b.t.RepMeasurements {
		if len(reports) < b.t.Params.MinReportsForScore {
			continue
		}
		score := aggregateMeasurements(reports, b.t.Params.RepWeights)
		v := score
		node, ok := b.t.Nodes[b.t.IndexToNode[subject]]
		if !ok {
			continue
		}
		node.Reputation = &v
		b.t.RepScores[subject] = score

		uptime := medianUptime(reports)
		switch {
		case uptime < b.t.Params.MinUptimeParticipate:
			node.Participation = ParticipationFalse
		case uptime >= b.t.Params.MaxUptimeParticipate:
			node.Participation = ParticipationTrue
		}
		b.t.Nodes[b.t.IndexToNode[subject]] = node
	}
}

// aggregateMeasurements computes the median of each metric across reports,
// then combines the medians with the published weights into a single score
// (spec §4.8: "median per-metric, then a weighted sum with published
// weights"). The weighted sum is divided by the total of the weights; the
// result is floored to an integer score.
func aggregateMeasurements(reports []ReputationMeasurement, w RepWeights) uint32 {
	latency := medianUint32(mapU32(reports, func(m ReputationMeasurement) uint32 { return m.LatencyMs }))
	uptime := medianUint32(mapU32(reports, func(m ReputationMeasurement) uint32 { return m.UptimePct }))
	bytesServed := medianUint64(mapU64(reports, func(m ReputationMeasurement) uint64 { return m.BytesServed }))
	hops := medianUint32(mapU32(reports, func(m ReputationMeasurement) uint32 { return m.Hops }))

	// Latency and hops are cost metrics: lower is better, so they contribute
	// inversely via a capped complement rather than directly.
	latencyScore := invertCapped(latency, 1000)
	hopsScore := invertCapped(hops, 20)
	bytesScore := capped(bytesServed, 1<<20)

	weighted := uint64(w.Latency)*uint64(latencyScore) +
		uint64(w.Uptime)*uint64(uptime) +
		uint64(w.BytesServed)*uint64(bytesScore) +
		uint64(w.Hops)*uint64(hopsScore)
	total := uint64(w.Latency) + uint64(w.Uptime) + uint64(w.BytesServed) + uint64(w.Hops)
	if total == 0 {
		return 0
	}
	return uint32(weighted / total)
}

func medianUptime(reports []ReputationMeasurement) uint32 {
	return medianUint32(mapU32(reports, func(m ReputationMeasurement) uint32 { return m.UptimePct }))
}

func mapU32(reports []ReputationMeasurement, f func(ReputationMeasurement) uint32) []uint32 {
	out := make([]uint32, len(reports))
	for i, r := range reports {
		out[i] = f(r)
	}
	return out
}

func mapU64(reports []ReputationMeasurement, f func(ReputationMeasurement) uint64) []uint64 {
	out := make([]uint64, len(reports))
	for i, r := range reports {
		out[i] = f(r)
	}
	return out
}

func medianUint32(vs []uint32) uint32 {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]uint32(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func medianUint64(vs []uint64) uint64 {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]uint64(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// invertCapped maps a cost metric (lower is better) onto a 0-100 score: 0 at
// or above cap, 100 at zero, linear in between.
func invertCapped(v, cap uint32) uint32 {
	if v >= cap {
		return 0
	}
	return 100 - (v*100)/cap
}

// capped maps a benefit metric (higher is better) onto a 0-100 score: 100 at
// or above cap, linear below it.
func capped(v uint64, cap uint64) uint32 {
	if v >= cap {
		return 100
	}
	return uint32((v * 100) / cap)
}
