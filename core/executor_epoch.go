package core

import "sort"

// committeeThreshold returns ⌊2N/3⌋+1, the strict-majority-plus-one quorum
// spec §4.3.2 and §8 both specify.
func committeeThreshold(n int) int {
	return (2*n)/3 + 1
}

// handleChangeEpoch records a committee member's epoch-change signal and,
// once quorum is reached, runs the full epoch transition (spec §4.3.2).
// Non-committee senders are accepted but have no effect on the quorum: spec
// does not enumerate a revert kind for "not a committee member", and
// silently ignoring such signals (rather than inventing a new RevertKind)
// keeps the method table closed per spec §4.3's enumerated error list.
func (ex *Executor) handleChangeEpoch(b *WriteBatch, signerNode *NodeId, m ChangeEpochMethod) (ExecutionData, bool, *ExecutionError) {
	if signerNode == nil {
		return nil, false, revert(RevertNodeDoesNotExist, "ChangeEpoch must be sent by a node")
	}
	if m.Epoch < b.t.Metadata.CurrentEpoch {
		return nil, false, revert(RevertEpochHasNotStarted, "epoch %d < current %d", m.Epoch, b.t.Metadata.CurrentEpoch)
	}
	if m.Epoch > b.t.Metadata.CurrentEpoch {
		return nil, false, revert(RevertEpochAlreadyStarted, "epoch %d > current %d", m.Epoch, b.t.Metadata.CurrentEpoch)
	}

	idx, ok := b.t.NodeIndex[*signerNode]
	if !ok || !b.t.Committee.isMember(idx) {
		return ExecutionData{"signalled": false}, false, nil
	}
	b.t.Committee.Signalled[idx] = struct{}{}

	threshold := committeeThreshold(len(b.t.Committee.Members))
	if len(b.t.Committee.Signalled) < threshold {
		return ExecutionData{"signalled": true, "change_epoch": false}, false, nil
	}

	if err := ex.transitionEpoch(b); err != nil {
		return nil, false, revert(RevertEpochAlreadyStarted, "%v", err)
	}
	return ExecutionData{"signalled": true, "change_epoch": true}, true, nil
}

// transitionEpoch runs the five epoch-change steps of spec §4.3.2.
func (ex *Executor) transitionEpoch(b *WriteBatch) error {
	// 1. Reputation scoring and participation thresholds.
	applyReputationScores(b)

	// 2. Reward distribution.
	if err := distributeRewards(b); err != nil {
		return err
	}

	// 3. Advance the epoch; clear per-epoch accumulators.
	b.t.Metadata.CurrentEpoch++
	b.t.Committee.Signalled = make(map[NodeIndex]struct{})
	b.t.RepMeasurements = make(map[NodeIndex][]ReputationMeasurement)
	b.t.RepReporters = make(map[NodeIndex]map[NodeIndex]struct{})
	b.t.TotalServed = zeroTotalServed()
	rolloverSupplyAtYearStart(b)

	// 4. Select the next committee: top CommitteeSize valid nodes by stake,
	// ties broken by ascending NodeIndex.
	b.t.Committee.Members = selectNextCommittee(b)
	b.t.Committee.Ready = true

	// 5. Schedule the new epoch's end. change_epoch is flagged by the caller
	// on the triggering receipt only.
	b.t.Metadata.EpochStartMs += b.t.Metadata.EpochLengthMs
	b.t.Committee.EpochEndMs = b.t.Metadata.EpochStartMs + b.t.Metadata.EpochLengthMs
	return nil
}

// selectNextCommittee picks the top CommitteeSize valid nodes by stake,
// ascending NodeIndex breaking ties (spec §4.3.2 step 4).
func selectNextCommittee(b *WriteBatch) []NodeIndex {
	type cand struct {
		idx    NodeIndex
		staked *HpFixed
	}
	cands := make([]cand, 0, len(b.t.Nodes))
	for id, n := range b.t.Nodes {
		if !n.IsValid(b.t.Params.MinimumStake) {
			continue
		}
		cands = append(cands, cand{idx: b.t.NodeIndex[id], staked: n.Staked})
	}
	sort.Slice(cands, func(i, j int) bool {
		cmp, _ := cands[i].staked.Cmp(cands[j].staked)
		if cmp != 0 {
			return cmp > 0 // descending stake
		}
		return cands[i].idx < cands[j].idx
	})
	n := int(b.t.Params.CommitteeSize)
	if n > len(cands) {
		n = len(cands)
	}
	members := make([]NodeIndex, 0, n)
	for i := 0; i < n; i++ {
		members = append(members, cands[i].idx)
	}
	return members
}
