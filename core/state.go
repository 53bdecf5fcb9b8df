package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Metadata is the single-row table carrying chain-wide bookkeeping (spec §3).
type Metadata struct {
	CurrentEpoch         Epoch
	EpochStartMs         uint64
	EpochLengthMs        uint64
	LastBlockDigest      Digest
	Supply               *HpFixed // FLK, scale 18
	SupplyAtYearStart    *HpFixed // FLK, scale 18
	GovernanceAddress    AccountAddress
	ProtocolFundAddress  AccountAddress
	EpochChangesThisYear uint64 // supplements original_source's year-boundary bookkeeping
}

func (m Metadata) clone() Metadata {
	c := m
	c.Supply = m.Supply.Clone()
	c.SupplyAtYearStart = m.SupplyAtYearStart.Clone()
	return c
}

// Account holds a user's balances and replay-defense nonce (spec §3).
type Account struct {
	FlkBalance       *HpFixed // scale 18
	StablesBalance   *HpFixed // scale 6
	Nonce            uint64
	BandwidthBalance uint64
}

func (a Account) clone() Account {
	c := a
	c.FlkBalance = a.FlkBalance.Clone()
	c.StablesBalance = a.StablesBalance.Clone()
	return c
}

func zeroAccount() Account {
	return Account{FlkBalance: ZeroHpFixed(18), StablesBalance: ZeroHpFixed(6)}
}

// Node holds a staked participant's registration and stake state (spec §3).
type Node struct {
	Owner            AccountAddress
	ConsensusPk      NodeId
	WorkerPk         NodeId
	Domain           string
	Ports            []uint16
	Staked           *HpFixed // scale 18
	Locked           *HpFixed // scale 18
	LockedUntil      Epoch
	StakeLockedUntil Epoch
	Nonce            uint64
	Participation    Participation
	Reputation       *uint32 // nil until first score is computed
	Served           []uint64
	Index            NodeIndex
}

func (n Node) clone() Node {
	c := n
	c.Staked = n.Staked.Clone()
	c.Locked = n.Locked.Clone()
	if n.Ports != nil {
		c.Ports = append([]uint16(nil), n.Ports...)
	}
	if n.Reputation != nil {
		v := *n.Reputation
		c.Reputation = &v
	}
	if n.Served != nil {
		c.Served = append([]uint64(nil), n.Served...)
	}
	return c
}

// IsValid reports whether n is a "valid node" per the glossary: staked,
// participating and meeting the minimum stake requirement.
func (n Node) IsValid(minStake *HpFixed) bool {
	if n.Participation != ParticipationTrue {
		return false
	}
	cmp, err := n.Staked.Cmp(minStake)
	return err == nil && cmp >= 0
}

// Committee is the per-epoch signalling/membership table (spec §3).
type Committee struct {
	Members    []NodeIndex
	Signalled  map[NodeIndex]struct{}
	Ready      bool
	EpochEndMs uint64
}

func (c Committee) clone() Committee {
	cl := Committee{Members: append([]NodeIndex(nil), c.Members...), Ready: c.Ready, EpochEndMs: c.EpochEndMs}
	cl.Signalled = make(map[NodeIndex]struct{}, len(c.Signalled))
	for k := range c.Signalled {
		cl.Signalled[k] = struct{}{}
	}
	return cl
}

func (c Committee) isMember(idx NodeIndex) bool {
	for _, m := range c.Members {
		if m == idx {
			return true
		}
	}
	return false
}

// Service is a registered commodity provider (spec §3).
type Service struct {
	Owner           AccountAddress
	CommodityPrices map[ServiceId]*HpFixed
}

func (s Service) clone() Service {
	c := Service{Owner: s.Owner, CommodityPrices: make(map[ServiceId]*HpFixed, len(s.CommodityPrices))}
	for k, v := range s.CommodityPrices {
		c.CommodityPrices[k] = v.Clone()
	}
	return c
}

// TotalServed accumulates per-epoch commodity usage and revenue across all
// services and reporting nodes (spec §3, enriched per §4.3.3's "r_i, its
// portion of R_usd" — the distilled spec names only an aggregate reward pool,
// so this core also tracks the per-service and per-node revenue splits that
// feed the service-builder and boosted node reward rules).
type TotalServed struct {
	Served         map[ServiceId]uint64
	ServiceRevenue map[ServiceId]*HpFixed // USD, scale 6
	NodeRevenue    map[NodeIndex]*HpFixed // USD, scale 6; r_i in spec §4.3.3
	RewardPool     *HpFixed                // USD, scale 6; R_usd in spec §4.3.3
}

func zeroTotalServed() TotalServed {
	return TotalServed{
		Served:         make(map[ServiceId]uint64),
		ServiceRevenue: make(map[ServiceId]*HpFixed),
		NodeRevenue:    make(map[NodeIndex]*HpFixed),
		RewardPool:     ZeroHpFixed(6),
	}
}

func (t TotalServed) clone() TotalServed {
	c := TotalServed{
		Served:         make(map[ServiceId]uint64, len(t.Served)),
		ServiceRevenue: make(map[ServiceId]*HpFixed, len(t.ServiceRevenue)),
		NodeRevenue:    make(map[NodeIndex]*HpFixed, len(t.NodeRevenue)),
		RewardPool:     t.RewardPool.Clone(),
	}
	for k, v := range t.Served {
		c.Served[k] = v
	}
	for k, v := range t.ServiceRevenue {
		c.ServiceRevenue[k] = v.Clone()
	}
	for k, v := range t.NodeRevenue {
		c.NodeRevenue[k] = v.Clone()
	}
	return c
}

// ReputationMeasurement is a single reporter's opinion of a subject node for
// the current epoch (spec §4.8, enriched per original_source's richer
// measurement shape: SPEC_FULL.md §S).
type ReputationMeasurement struct {
	Reporter    NodeIndex
	LatencyMs   uint32
	UptimePct   uint32
	BytesServed uint64
	Hops        uint32
}

// tables is the full, deeply-copyable application state. A new tables value
// is produced for every committed block and swapped in atomically so that
// readers never observe a mid-block state (spec §4.4).
type tables struct {
	Metadata        Metadata
	Accounts        map[AccountAddress]Account
	Nodes           map[NodeId]Node
	NodeIndex       map[NodeId]NodeIndex
	IndexToNode     map[NodeIndex]NodeId
	NextIndex       NodeIndex
	Committee       Committee
	Services        map[ServiceId]Service
	TotalServed     TotalServed
	RepMeasurements map[NodeIndex][]ReputationMeasurement
	RepReporters    map[NodeIndex]map[NodeIndex]struct{} // subject -> set of reporters already submitted
	RepScores       map[NodeIndex]uint32
	Params          ProtocolParams
	ExecutedDigests map[Digest]struct{}
}

func newTables() *tables {
	return &tables{
		Accounts:        make(map[AccountAddress]Account),
		Nodes:           make(map[NodeId]Node),
		NodeIndex:       make(map[NodeId]NodeIndex),
		IndexToNode:     make(map[NodeIndex]NodeId),
		Committee:       Committee{Signalled: make(map[NodeIndex]struct{})},
		Services:        make(map[ServiceId]Service),
		TotalServed:     zeroTotalServed(),
		RepMeasurements: make(map[NodeIndex][]ReputationMeasurement),
		RepReporters:    make(map[NodeIndex]map[NodeIndex]struct{}),
		RepScores:       make(map[NodeIndex]uint32),
		ExecutedDigests: make(map[Digest]struct{}),
	}
}

// clone deep-copies t so it can be mutated as a working set without
// affecting any snapshot concurrently held by a reader.
func (t *tables) clone() *tables {
	c := &tables{
		Metadata:        t.Metadata.clone(),
		Accounts:        make(map[AccountAddress]Account, len(t.Accounts)),
		Nodes:           make(map[NodeId]Node, len(t.Nodes)),
		NodeIndex:       make(map[NodeId]NodeIndex, len(t.NodeIndex)),
		IndexToNode:     make(map[NodeIndex]NodeId, len(t.IndexToNode)),
		NextIndex:       t.NextIndex,
		Committee:       t.Committee.clone(),
		Services:        make(map[ServiceId]Service, len(t.Services)),
		TotalServed:     t.TotalServed.clone(),
		RepMeasurements: make(map[NodeIndex][]ReputationMeasurement, len(t.RepMeasurements)),
		RepReporters:    make(map[NodeIndex]map[NodeIndex]struct{}, len(t.RepReporters)),
		RepScores:       make(map[NodeIndex]uint32, len(t.RepScores)),
		Params:          t.Params,
		ExecutedDigests: make(map[Digest]struct{}, len(t.ExecutedDigests)),
	}
	for k, v := range t.Accounts {
		c.Accounts[k] = v.clone()
	}
	for k, v := range t.Nodes {
		c.Nodes[k] = v.clone()
	}
	for k, v := range t.NodeIndex {
		c.NodeIndex[k] = v
	}
	for k, v := range t.IndexToNode {
		c.IndexToNode[k] = v
	}
	for k, v := range t.Services {
		c.Services[k] = v.clone()
	}
	for k, v := range t.RepMeasurements {
		c.RepMeasurements[k] = append([]ReputationMeasurement(nil), v...)
	}
	for subj, reporters := range t.RepReporters {
		m := make(map[NodeIndex]struct{}, len(reporters))
		for r := range reporters {
			m[r] = struct{}{}
		}
		c.RepReporters[subj] = m
	}
	for k, v := range t.RepScores {
		c.RepScores[k] = v
	}
	for k := range t.ExecutedDigests {
		c.ExecutedDigests[k] = struct{}{}
	}
	return c
}

func u32Bytes(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func u64Bytes(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// hpString renders v's decimal form, or "" for a field that was never
// populated (a bare tables value built outside genesis loading).
func hpString(v *HpFixed) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// stateRoot derives a cryptographic root from the tables' contents. It is
// deterministic across runs for identical table contents, matching spec
// §4.1's "cryptographic state root derivable from the contents after each
// commit"; map iteration order is never itself observable (every folded map
// is walked in a sorted key order before hashing). Metadata, Accounts, Nodes,
// Committee, Services, TotalServed, RepScores, ExecutedDigests and Params are
// folded in; RepMeasurements, RepReporters, NodeIndex, IndexToNode and
// NextIndex are not, so tables differing only in those hash identically. This core does not depend on
// the (out of scope, per spec §1) Merklized storage provider; a production
// deployment backs State with that library instead of computing the root by
// re-hashing the whole table set.
func (t *tables) stateRoot() Digest {
	metaBuf := append([]byte{}, t.Metadata.LastBlockDigest[:]...)
	metaBuf = append(metaBuf, u64Bytes(uint64(t.Metadata.CurrentEpoch))...)
	metaBuf = append(metaBuf, u64Bytes(t.Metadata.EpochStartMs)...)
	metaBuf = append(metaBuf, u64Bytes(t.Metadata.EpochLengthMs)...)
	metaBuf = append(metaBuf, []byte(hpString(t.Metadata.Supply))...)
	metaBuf = append(metaBuf, []byte(hpString(t.Metadata.SupplyAtYearStart))...)
	metaBuf = append(metaBuf, t.Metadata.GovernanceAddress[:]...)
	metaBuf = append(metaBuf, t.Metadata.ProtocolFundAddress[:]...)
	metaBuf = append(metaBuf, u64Bytes(t.Metadata.EpochChangesThisYear)...)

	addrs := make([]AccountAddress, 0, len(t.Accounts))
	for addr := range t.Accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })
	var acctBuf []byte
	for _, addr := range addrs {
		a := t.Accounts[addr]
		acctBuf = append(acctBuf, addr[:]...)
		acctBuf = append(acctBuf, []byte(hpString(a.FlkBalance))...)
		acctBuf = append(acctBuf, []byte(hpString(a.StablesBalance))...)
		acctBuf = append(acctBuf, u64Bytes(a.Nonce)...)
		acctBuf = append(acctBuf, u64Bytes(a.BandwidthBalance)...)
	}

	nodeIDs := make([]NodeId, 0, len(t.Nodes))
	for id := range t.Nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return bytes.Compare(nodeIDs[i][:], nodeIDs[j][:]) < 0 })
	var nodeBuf []byte
	for _, id := range nodeIDs {
		n := t.Nodes[id]
		nodeBuf = append(nodeBuf, id[:]...)
		nodeBuf = append(nodeBuf, n.Owner[:]...)
		nodeBuf = append(nodeBuf, n.ConsensusPk[:]...)
		nodeBuf = append(nodeBuf, n.WorkerPk[:]...)
		nodeBuf = append(nodeBuf, []byte(n.Domain)...)
		for _, port := range n.Ports {
			nodeBuf = append(nodeBuf, u32Bytes(uint32(port))...)
		}
		nodeBuf = append(nodeBuf, []byte(hpString(n.Staked))...)
		nodeBuf = append(nodeBuf, []byte(hpString(n.Locked))...)
		nodeBuf = append(nodeBuf, u64Bytes(uint64(n.LockedUntil))...)
		nodeBuf = append(nodeBuf, u64Bytes(uint64(n.StakeLockedUntil))...)
		nodeBuf = append(nodeBuf, u64Bytes(n.Nonce)...)
		if n.Participation {
			nodeBuf = append(nodeBuf, 1)
		} else {
			nodeBuf = append(nodeBuf, 0)
		}
		if n.Reputation != nil {
			nodeBuf = append(nodeBuf, 1)
			nodeBuf = append(nodeBuf, u32Bytes(*n.Reputation)...)
		} else {
			nodeBuf = append(nodeBuf, 0)
		}
		for _, s := range n.Served {
			nodeBuf = append(nodeBuf, u64Bytes(s)...)
		}
		nodeBuf = append(nodeBuf, u32Bytes(uint32(n.Index))...)
	}

	committeeBuf := append([]byte{}, u32Bytes(uint32(len(t.Committee.Members)))...)
	for _, m := range t.Committee.Members {
		committeeBuf = append(committeeBuf, u32Bytes(uint32(m))...)
	}
	signalled := make([]NodeIndex, 0, len(t.Committee.Signalled))
	for idx := range t.Committee.Signalled {
		signalled = append(signalled, idx)
	}
	sort.Slice(signalled, func(i, j int) bool { return signalled[i] < signalled[j] })
	for _, idx := range signalled {
		committeeBuf = append(committeeBuf, u32Bytes(uint32(idx))...)
	}
	if t.Committee.Ready {
		committeeBuf = append(committeeBuf, 1)
	} else {
		committeeBuf = append(committeeBuf, 0)
	}
	committeeBuf = append(committeeBuf, u64Bytes(t.Committee.EpochEndMs)...)

	svcIDsAll := make([]ServiceId, 0, len(t.Services))
	for id := range t.Services {
		svcIDsAll = append(svcIDsAll, id)
	}
	sort.Slice(svcIDsAll, func(i, j int) bool { return svcIDsAll[i] < svcIDsAll[j] })
	var svcBuf []byte
	for _, id := range svcIDsAll {
		svc := t.Services[id]
		svcBuf = append(svcBuf, u32Bytes(uint32(id))...)
		svcBuf = append(svcBuf, svc.Owner[:]...)
		priceIDs := make([]ServiceId, 0, len(svc.CommodityPrices))
		for pid := range svc.CommodityPrices {
			priceIDs = append(priceIDs, pid)
		}
		sort.Slice(priceIDs, func(i, j int) bool { return priceIDs[i] < priceIDs[j] })
		for _, pid := range priceIDs {
			svcBuf = append(svcBuf, u32Bytes(uint32(pid))...)
			svcBuf = append(svcBuf, []byte(hpString(svc.CommodityPrices[pid]))...)
		}
	}

	servedIDs := make([]ServiceId, 0, len(t.TotalServed.Served))
	for id := range t.TotalServed.Served {
		servedIDs = append(servedIDs, id)
	}
	sort.Slice(servedIDs, func(i, j int) bool { return servedIDs[i] < servedIDs[j] })
	var servedBuf []byte
	for _, id := range servedIDs {
		servedBuf = append(servedBuf, u32Bytes(uint32(id))...)
		servedBuf = append(servedBuf, u64Bytes(t.TotalServed.Served[id])...)
	}

	svcIDs := make([]ServiceId, 0, len(t.TotalServed.ServiceRevenue))
	for id := range t.TotalServed.ServiceRevenue {
		svcIDs = append(svcIDs, id)
	}
	sort.Slice(svcIDs, func(i, j int) bool { return svcIDs[i] < svcIDs[j] })
	var svcRevBuf []byte
	for _, id := range svcIDs {
		svcRevBuf = append(svcRevBuf, u32Bytes(uint32(id))...)
		svcRevBuf = append(svcRevBuf, []byte(hpString(t.TotalServed.ServiceRevenue[id]))...)
	}

	nodeIdxs := make([]NodeIndex, 0, len(t.TotalServed.NodeRevenue))
	for idx := range t.TotalServed.NodeRevenue {
		nodeIdxs = append(nodeIdxs, idx)
	}
	sort.Slice(nodeIdxs, func(i, j int) bool { return nodeIdxs[i] < nodeIdxs[j] })
	var nodeRevBuf []byte
	for _, idx := range nodeIdxs {
		nodeRevBuf = append(nodeRevBuf, u32Bytes(uint32(idx))...)
		nodeRevBuf = append(nodeRevBuf, []byte(hpString(t.TotalServed.NodeRevenue[idx]))...)
	}

	repScoreIdxs := make([]NodeIndex, 0, len(t.RepScores))
	for idx := range t.RepScores {
		repScoreIdxs = append(repScoreIdxs, idx)
	}
	sort.Slice(repScoreIdxs, func(i, j int) bool { return repScoreIdxs[i] < repScoreIdxs[j] })
	var repScoreBuf []byte
	for _, idx := range repScoreIdxs {
		repScoreBuf = append(repScoreBuf, u32Bytes(uint32(idx))...)
		repScoreBuf = append(repScoreBuf, u32Bytes(t.RepScores[idx])...)
	}

	digests := make([]Digest, 0, len(t.ExecutedDigests))
	for d := range t.ExecutedDigests {
		digests = append(digests, d)
	}
	sort.Slice(digests, func(i, j int) bool { return bytes.Compare(digests[i][:], digests[j][:]) < 0 })
	var digestBuf []byte
	for _, d := range digests {
		digestBuf = append(digestBuf, d[:]...)
	}

	paramsBuf := []byte(fmt.Sprintf("%d|%d|%d|%d|%d|%d|%d|%s|%d|%d|%d|%d|%d|%d|%d|%d|%d|%d|%d|%d",
		t.Params.LockTimeEpochs, t.Params.MaxBoost, t.Params.MaxInflationBps, t.Params.EpochTimeMs,
		t.Params.NodeShareBps, t.Params.ProtocolShareBps, t.Params.ServiceBuilderShareBps,
		hpString(t.Params.MinimumStake), t.Params.CommitteeSize, t.Params.MaxLockEpochs,
		t.Params.MinUptimeParticipate, t.Params.MaxUptimeParticipate, t.Params.MinReportsForScore,
		t.Params.Rings.Consensus, t.Params.Rings.DHT, t.Params.Rings.Debug,
		t.Params.RepWeights.Latency, t.Params.RepWeights.Uptime, t.Params.RepWeights.BytesServed, t.Params.RepWeights.Hops))

	return Blake3Sum(
		metaBuf,
		acctBuf,
		nodeBuf,
		committeeBuf,
		svcBuf,
		servedBuf,
		[]byte(hpString(t.TotalServed.RewardPool)),
		svcRevBuf,
		nodeRevBuf,
		repScoreBuf,
		digestBuf,
		paramsBuf,
	)
}

// State is the versioned key/value store described in spec §4.1. It
// serializes writers (the executor is the sole writer per spec §5) and
// publishes committed snapshots via an atomic pointer so queries never
// block on, or observe a partial view of, an in-flight block.
type State struct {
	mu      sync.Mutex
	current atomic.Pointer[tables]
}

// NewState constructs an empty State. Genesis loading (C2) populates it.
func NewState() *State {
	s := &State{}
	s.current.Store(newTables())
	return s
}

// Snapshot is a read-only, point-in-time view of the state, safe for
// concurrent use by any number of readers while the executor keeps writing.
type Snapshot struct {
	t *tables
}

// Snapshot returns the most recently committed view. Cheap: it is a single
// atomic pointer load, never contending with the writer (spec §5).
func (s *State) Snapshot() *Snapshot {
	return &Snapshot{t: s.current.Load()}
}

// WriteBatch is the executor's mutable working copy for a single block.
// Either Commit is called after every transaction in the block has been
// applied, or the batch is discarded and no change is ever observed —
// giving the crash-atomicity spec §4.1 requires without a real WAL, since
// the only publish point is the final atomic pointer swap.
type WriteBatch struct {
	state *State
	t     *tables
}

// Begin starts a new write batch cloned from the current snapshot. Only one
// batch may be open at a time; callers must Commit or Discard before
// starting another (enforced by holding state.mu for the batch's lifetime).
func (s *State) Begin() *WriteBatch {
	s.mu.Lock()
	return &WriteBatch{state: s, t: s.current.Load().clone()}
}

// Commit publishes the batch's working copy as the new snapshot and returns
// the resulting state root.
func (b *WriteBatch) Commit() Digest {
	root := b.t.stateRoot()
	b.state.current.Store(b.t)
	b.state.mu.Unlock()
	return root
}

// Discard abandons all mutations made on this batch.
func (b *WriteBatch) Discard() {
	b.state.mu.Unlock()
}
