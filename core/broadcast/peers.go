package broadcast

import (
	"sync/atomic"

	"github.com/lumennet/lumen-core/core"
)

// Stream is a typed bidirectional connection to a peer. The concrete
// transport (QUIC, a pool-managed TCP stream, ...) is an external
// collaborator per spec §1; this package only needs to send and receive
// frames over whatever implements it.
type Stream interface {
	Send(Frame) error
	Close() error
}

// PeerStats are the lock-free-read counters spec §5 requires ("shared stats
// counters use lock-free atomic updates"). They are not exported to
// Prometheus; core/broadcast/stats.go keeps its own counters.
type PeerStats struct {
	InvalidMessagesReceived atomic.Uint64
	MessagesSent            atomic.Uint64
	MessagesReceived        atomic.Uint64
}

// Peer is one entry of the Peers table: a node's stream plus its stats.
type Peer struct {
	Node   core.NodeIndex
	Stream Stream
	Stats  *PeerStats
}

// Peers is the event loop's table of active bidirectional streams (spec
// §4.7). The event loop is documented as its single writer; Peers itself
// does not lock because nothing but that one goroutine ever mutates it;
// only the PeerStats fields are atomic.
type Peers struct {
	byNode map[core.NodeIndex]*Peer
}

// NewPeers constructs an empty Peers table.
func NewPeers() *Peers {
	return &Peers{byNode: make(map[core.NodeIndex]*Peer)}
}

// Add registers a peer's stream, replacing any prior stream for the same
// node (the old one is closed).
func (p *Peers) Add(node core.NodeIndex, stream Stream) *Peer {
	if old, ok := p.byNode[node]; ok {
		_ = old.Stream.Close()
	}
	peer := &Peer{Node: node, Stream: stream, Stats: &PeerStats{}}
	p.byNode[node] = peer
	return peer
}

// Remove closes and drops the peer's stream, if present.
func (p *Peers) Remove(node core.NodeIndex) {
	if peer, ok := p.byNode[node]; ok {
		_ = peer.Stream.Close()
		delete(p.byNode, node)
	}
}

// Get returns the peer for node, if connected.
func (p *Peers) Get(node core.NodeIndex) (*Peer, bool) {
	peer, ok := p.byNode[node]
	return peer, ok
}

// All returns every connected peer. The returned slice is a fresh copy safe
// to range over while the table is subsequently mutated.
func (p *Peers) All() []*Peer {
	out := make([]*Peer, 0, len(p.byNode))
	for _, peer := range p.byNode {
		out = append(out, peer)
	}
	return out
}

// Nodes returns the set of currently connected node indices.
func (p *Peers) Nodes() map[core.NodeIndex]struct{} {
	out := make(map[core.NodeIndex]struct{}, len(p.byNode))
	for n := range p.byNode {
		out[n] = struct{}{}
	}
	return out
}
