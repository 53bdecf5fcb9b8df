package core

import "sort"

// PagingParams controls node-registry pagination (spec §4.4). When
// IgnoreStake is false only valid nodes (staked, participating, above the
// minimum) are returned.
type PagingParams struct {
	IgnoreStake bool
	Start       uint32
	Limit       uint32
}

// NodeInfo is the public view of a registered node returned by the query
// runner.
type NodeInfo struct {
	Index         NodeIndex
	Id            NodeId
	Owner         AccountAddress
	Domain        string
	Ports         []uint16
	Staked        *HpFixed
	Participation Participation
	Reputation    *uint32
}

// ServiceInfo is the public view of a registered service.
type ServiceInfo struct {
	Id              ServiceId
	Owner           AccountAddress
	CommodityPrices map[ServiceId]*HpFixed
}

// EpochInfo summarizes the current epoch for callers outside the executor
// (consensus bridge, attestation layer).
type EpochInfo struct {
	Epoch        Epoch
	EpochEndMs   uint64
	Committee    []NodeIndex
	CommitteeSet map[NodeIndex]struct{}
}

// QueryRunner is the read-only accessor layer (C4) of spec §4.4. It never
// blocks on, or contends with, the executor's writer: every lookup reads
// from a State snapshot, and validate_txn simulates execution against a
// throwaway clone of that snapshot rather than the executor's live batch.
type QueryRunner struct {
	state    *State
	executor *Executor
}

// NewQueryRunner constructs a QueryRunner bound to state and the executor
// whose method dispatch validate_txn must mirror exactly.
func NewQueryRunner(state *State, executor *Executor) *QueryRunner {
	return &QueryRunner{state: state, executor: executor}
}

// ValidateTxn runs tx through the same dispatch path Execute uses, against a
// private clone of the current snapshot, and discards the result. Per spec
// §4.3.1, the returned TransactionResponse is identical in shape to what a
// real Execute call would produce for the same transaction against the same
// state.
func (q *QueryRunner) ValidateTxn(tx TransactionRequest) (TransactionResponse, error) {
	snap := q.state.Snapshot()
	sim := &WriteBatch{t: snap.t.clone()}
	receipt, _, err := q.executor.applyOne(sim, tx)
	if err != nil {
		return TransactionResponse{}, err
	}
	return receipt.Response, nil
}

// ListNodes returns a page of the node registry ordered by ascending
// NodeIndex (spec §4.4 pagination).
func (q *QueryRunner) ListNodes(p PagingParams) []NodeInfo {
	snap := q.state.Snapshot()
	indices := make([]NodeIndex, 0, len(snap.t.Nodes))
	for id := range snap.t.Nodes {
		indices = append(indices, snap.t.NodeIndex[id])
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	out := make([]NodeInfo, 0, p.Limit)
	for _, idx := range indices {
		if idx < NodeIndex(p.Start) {
			continue
		}
		id := snap.t.IndexToNode[idx]
		n := snap.t.Nodes[id]
		if !p.IgnoreStake && !n.IsValid(snap.t.Params.MinimumStake) {
			continue
		}
		out = append(out, NodeInfo{
			Index: idx, Id: id, Owner: n.Owner, Domain: n.Domain, Ports: n.Ports,
			Staked: n.Staked, Participation: n.Participation, Reputation: n.Reputation,
		})
		if p.Limit > 0 && uint32(len(out)) >= p.Limit {
			break
		}
	}
	return out
}

// RepScore returns the most recently computed reputation score for subject,
// if any has been computed yet.
func (q *QueryRunner) RepScore(subject NodeIndex) (uint32, bool) {
	snap := q.state.Snapshot()
	v, ok := snap.t.RepScores[subject]
	return v, ok
}

// ServiceInfoByID returns a registered service's public info.
func (q *QueryRunner) ServiceInfoByID(id ServiceId) (ServiceInfo, bool) {
	snap := q.state.Snapshot()
	svc, ok := snap.t.Services[id]
	if !ok {
		return ServiceInfo{}, false
	}
	return ServiceInfo{Id: id, Owner: svc.Owner, CommodityPrices: svc.CommodityPrices}, true
}

// CurrentEpoch returns a summary of the committee-in-session.
func (q *QueryRunner) CurrentEpoch() EpochInfo {
	snap := q.state.Snapshot()
	set := make(map[NodeIndex]struct{}, len(snap.t.Committee.Members))
	for _, m := range snap.t.Committee.Members {
		set[m] = struct{}{}
	}
	return EpochInfo{
		Epoch:        snap.t.Metadata.CurrentEpoch,
		EpochEndMs:   snap.t.Committee.EpochEndMs,
		Committee:    append([]NodeIndex(nil), snap.t.Committee.Members...),
		CommitteeSet: set,
	}
}

// NodePubKey resolves any registered node's NodeId (its public key), used by the
// broadcast layer to verify message signatures against an origin NodeIndex
// (spec §4.7 "resolve origin NodeIndex -> public key via C4").
func (q *QueryRunner) NodePubKey(idx NodeIndex) (NodeId, bool) {
	snap := q.state.Snapshot()
	id, ok := snap.t.IndexToNode[idx]
	return id, ok
}
