package core

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// AuthenticStampedParcel is what a committee member publishes for edge nodes
// to execute without running consensus themselves (spec §4.6).
type AuthenticStampedParcel struct {
	Transactions []TransactionRequest
	LastExecuted Digest
	Epoch        Epoch
}

// ToDigest computes H(u32_le(tx_count) || batch_digest || last_executed) per
// spec §4.6. batch_digest is the consensus engine's canonical digest of the
// transaction batch; this core derives it the same way it derives a block
// digest elsewhere, by blake3-hashing each transaction's own digest in
// order, since no external consensus engine is wired in this repo's scope
// (spec §1 treats the consensus engine itself as an external collaborator).
func (p AuthenticStampedParcel) ToDigest() Digest {
	parts := make([][]byte, 0, len(p.Transactions))
	for _, tx := range p.Transactions {
		d, err := TransactionDigest(tx.SenderPk, tx.Payload.Nonce, tx.Payload.Tag, tx.Payload.Method)
		if err != nil {
			continue
		}
		parts = append(parts, d[:])
	}
	batchDigest := Blake3Sum(parts...)
	return ParcelDigest(uint32(len(p.Transactions)), batchDigest, p.LastExecuted)
}

// CommitteeAttestation is one committee member's vouch for a parcel digest
// (spec §4.6).
type CommitteeAttestation struct {
	Digest Digest
	Node   NodeIndex
	Epoch  Epoch
}

// attestationQuorumThreshold computes f = ⌊(committee_size-1)/3⌋ and returns
// the required 2f+1 distinct attestations (spec §4.6).
func attestationQuorumThreshold(committeeSize int) int {
	if committeeSize == 0 {
		return 0
	}
	f := (committeeSize - 1) / 3
	return 2*f + 1
}

// pendingParcel tracks a parcel awaiting either enough attestations or its
// chain-linked predecessor.
type pendingParcel struct {
	parcel     AuthenticStampedParcel
	attestedBy map[NodeIndex]struct{}
}

// ParcelAttestor is the edge-node-side consumer of C6: it accumulates
// attestations, enforces the 2f+1 quorum and the committee-membership and
// epoch checks, and buffers parcels whose predecessor has not yet applied
// (chain linking).
type ParcelAttestor struct {
	query *QueryRunner

	mu       sync.Mutex
	pending  map[Digest]*pendingParcel
	buffered map[Digest]AuthenticStampedParcel        // keyed by LastExecuted, awaiting that predecessor
	cache    *lru.LRU[Digest, map[NodeIndex]struct{}] // attesters of a not-yet-submitted parcel, bounded

	onReady func(AuthenticStampedParcel)
}

// NewParcelAttestor constructs a ParcelAttestor. onReady is invoked
// (synchronously, under no lock) whenever a parcel clears quorum and its
// chain-link predecessor has already applied.
func NewParcelAttestor(query *QueryRunner, onReady func(AuthenticStampedParcel)) *ParcelAttestor {
	return &ParcelAttestor{
		query:    query,
		pending:  make(map[Digest]*pendingParcel),
		buffered: make(map[Digest]AuthenticStampedParcel),
		cache:    lru.NewLRU[Digest, map[NodeIndex]struct{}](4096, nil, 0),
		onReady:  onReady,
	}
}

// SubmitParcel registers a parcel a committee member published, so its
// attestations have somewhere to accumulate against. Any attestations that
// arrived for this digest before the parcel itself did are replayed out of
// the cache into the fresh pendingParcel's attestedBy set (spec §4.6: a
// parcel's attestations are "cached bounded" while it is unknown, not
// discarded, so they must still count once it shows up).
func (a *ParcelAttestor) SubmitParcel(p AuthenticStampedParcel) {
	digest := p.ToDigest()
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.pending[digest]; !ok {
		pp := &pendingParcel{parcel: p, attestedBy: make(map[NodeIndex]struct{})}
		if cached, ok := a.cache.Get(digest); ok {
			for node := range cached {
				pp.attestedBy[node] = struct{}{}
			}
			a.cache.Remove(digest)
		}
		a.pending[digest] = pp
	}
	a.tryAdvanceLocked(digest)
}

// SubmitAttestation records a committee member's attestation of a parcel
// digest (spec §4.6). Attestations from nodes outside the committee of the
// named epoch are discarded; attestations for an unknown parcel are cached
// bounded, keyed by node, until the parcel itself is submitted.
func (a *ParcelAttestor) SubmitAttestation(att CommitteeAttestation) {
	epochInfo := a.query.CurrentEpoch()
	if att.Epoch != epochInfo.Epoch {
		return
	}
	if _, inCommittee := epochInfo.CommitteeSet[att.Node]; !inCommittee {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	pp, ok := a.pending[att.Digest]
	if !ok {
		attesters, ok := a.cache.Get(att.Digest)
		if !ok {
			attesters = make(map[NodeIndex]struct{})
			a.cache.Add(att.Digest, attesters)
		}
		attesters[att.Node] = struct{}{}
		return
	}
	pp.attestedBy[att.Node] = struct{}{}
	a.tryAdvanceLocked(att.Digest)
}

// tryAdvanceLocked fires onReady once quorum is met and the predecessor has
// already applied; otherwise it buffers the parcel for later chain-linking.
// Must be called with a.mu held.
func (a *ParcelAttestor) tryAdvanceLocked(digest Digest) {
	pp, ok := a.pending[digest]
	if !ok {
		return
	}
	epochInfo := a.query.CurrentEpoch()
	threshold := attestationQuorumThreshold(len(epochInfo.Committee))
	if len(pp.attestedBy) < threshold {
		return
	}

	currentDigest := a.currentLastBlockDigest()
	if pp.parcel.LastExecuted != currentDigest {
		a.buffered[pp.parcel.LastExecuted] = pp.parcel
		delete(a.pending, digest)
		return
	}
	delete(a.pending, digest)
	a.deliverChainLocked(pp.parcel)
}

func (a *ParcelAttestor) currentLastBlockDigest() Digest {
	return a.query.state.Snapshot().t.Metadata.LastBlockDigest
}

// deliverChainLocked invokes onReady for p and then walks the buffered map
// forward through any successor parcels chain-linked on p's digest, since
// applying p may be exactly what unblocks them (spec §4.6 "buffered until
// the predecessor is applied"). Must be called with a.mu held; onReady runs
// with the lock released so a slow consumer can't stall attestation intake.
func (a *ParcelAttestor) deliverChainLocked(p AuthenticStampedParcel) {
	for {
		a.mu.Unlock()
		if a.onReady != nil {
			a.onReady(p)
		}
		a.mu.Lock()

		digest := p.ToDigest()
		next, ok := a.buffered[digest]
		if !ok {
			return
		}
		delete(a.buffered, digest)
		p = next
	}
}
