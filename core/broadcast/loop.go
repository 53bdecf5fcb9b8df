package broadcast

import (
	"time"

	"github.com/lumennet/lumen-core/core"
)

// inboundFrame pairs a frame with the peer it arrived from. Per-peer stream
// readers (owned by the Dialer/Stream implementation, outside this package)
// push into a Loop's shared inbox; the loop itself is the only goroutine
// that ever reads from it or mutates loop state, matching spec §4.7's
// single-threaded cooperative task model.
type inboundFrame struct {
	from  core.NodeIndex
	frame Frame
}

// Loop is the single-threaded broadcast event loop (C7).
type Loop struct {
	query    *core.QueryRunner
	peers    *Peers
	dialer   Dialer
	topology TopologyProvider
	stats    *Stats
	ringCaps core.RingCapacities

	rings        map[Topic]*Ring
	seen         *seenDB
	held         map[core.Digest]Message        // full message content kept for Want requests
	pendingWants map[core.Digest]core.NodeIndex // digest -> first advertiser we sent a Want to

	inbox       chan inboundFrame
	submit      chan Message
	planResults chan Plan
	epochChange chan core.Epoch
	shutdown    chan struct{}
	done        chan struct{}
}

// NewLoop constructs a Loop. query resolves origin NodeIndex -> public key
// (spec §4.7); peers is the table of active streams this loop owns
// exclusively once Run starts.
func NewLoop(query *core.QueryRunner, peers *Peers, dialer Dialer, topology TopologyProvider, stats *Stats, ringCaps core.RingCapacities, seenTTL time.Duration) *Loop {
	l := &Loop{
		query:        query,
		peers:        peers,
		dialer:       dialer,
		topology:     topology,
		stats:        stats,
		ringCaps:     ringCaps,
		held:         make(map[core.Digest]Message),
		pendingWants: make(map[core.Digest]core.NodeIndex),
		inbox:        make(chan inboundFrame, 256),
		submit:       make(chan Message, 64),
		planResults:  make(chan Plan, 1),
		epochChange:  make(chan core.Epoch, 1),
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
	}
	l.rings = map[Topic]*Ring{
		TopicConsensus: NewRing(ringCapacitiesForTopic(ringCaps, TopicConsensus)),
		TopicDHT:       NewRing(ringCapacitiesForTopic(ringCaps, TopicDHT)),
		TopicDebug:     NewRing(ringCapacitiesForTopic(ringCaps, TopicDebug)),
	}
	l.seen = newSeenDB(seenTTL, func(d core.Digest) { delete(l.held, d) })
	return l
}

// Deliver is how an external stream reader hands the loop an inbound frame.
// Safe to call concurrently from many peer-reader goroutines; the loop
// itself drains the channel single-threaded.
func (l *Loop) Deliver(from core.NodeIndex, f Frame) {
	select {
	case l.inbox <- inboundFrame{from: from, frame: f}:
	case <-l.shutdown:
	}
}

// Submit queues a locally-originated message for gossip.
func (l *Loop) Submit(m Message) {
	select {
	case l.submit <- m:
	case <-l.shutdown:
	}
}

// NotifyEpochChange requests a fresh topology plan for the new epoch (spec
// §4.7: "on epoch-change notification, request a new connection plan").
func (l *Loop) NotifyEpochChange(epoch core.Epoch) {
	select {
	case l.epochChange <- epoch:
	case <-l.shutdown:
	}
}

// Shutdown drains the loop via a single oneshot signal (spec §4.7: "A single
// oneshot shutdown drains the loop, which then releases the peers table on
// exit"). It blocks until Run has returned.
func (l *Loop) Shutdown() {
	close(l.shutdown)
	<-l.done
}

// Run is the select loop itself. The loop biases nothing between its cases;
// callers must not assume any ordering across them (spec §4.7).
func (l *Loop) Run() {
	defer close(l.done)
	for {
		select {
		case in := <-l.inbox:
			l.handleInbound(in)
		case m := <-l.submit:
			l.handleLocal(m)
		case plan := <-l.planResults:
			l.applyTopology(plan)
		case epoch := <-l.epochChange:
			go l.computeTopology(epoch)
		case <-l.shutdown:
			l.releasePeers()
			return
		}
	}
}

func (l *Loop) handleInbound(in inboundFrame) {
	switch {
	case in.frame.Advr != nil:
		l.onAdvr(in.from, *in.frame.Advr)
	case in.frame.Want != nil:
		l.onWant(in.from, *in.frame.Want)
	case in.frame.Message != nil:
		l.onMessage(in.from, *in.frame.Message)
	}
}

// onAdvr implements rule 1: request the message if its digest is unseen,
// coalescing concurrent advertisers into a single Want to the first one.
func (l *Loop) onAdvr(from core.NodeIndex, a Advr) {
	if l.seen.Seen(a.Digest) {
		return
	}
	if _, pending := l.pendingWants[a.Digest]; pending {
		return
	}
	l.pendingWants[a.Digest] = from
	peer, ok := l.peers.Get(from)
	if !ok {
		delete(l.pendingWants, a.Digest)
		return
	}
	_ = peer.Stream.Send(Frame{Want: &Want{InternedID: a.InternedID}})
}

// onWant implements rule 2: send the full message if we still hold it,
// otherwise silently drop.
func (l *Loop) onWant(from core.NodeIndex, w Want) {
	digest, ok := l.seen.Lookup(w.InternedID)
	if !ok {
		return
	}
	msg, ok := l.held[digest]
	if !ok {
		return
	}
	peer, ok := l.peers.Get(from)
	if !ok {
		return
	}
	if peer.Stream.Send(Frame{Message: &msg}) == nil {
		peer.Stats.MessagesSent.Add(1)
		if l.stats != nil {
			l.stats.recordSent(from.String())
		}
	}
}

// onMessage implements rule 3: verify authenticity, then accept and relay.
func (l *Loop) onMessage(from core.NodeIndex, m Message) {
	originID, ok := l.query.NodePubKey(m.Origin)
	verified := ok && core.VerifySignature(originID, m.Digest(), m.Signature)
	if !verified {
		if peer, ok := l.peers.Get(from); ok {
			peer.Stats.InvalidMessagesReceived.Add(1)
		}
		if l.stats != nil {
			l.stats.recordInvalid(from.String())
		}
		return
	}
	if peer, ok := l.peers.Get(from); ok {
		peer.Stats.MessagesReceived.Add(1)
	}
	if l.stats != nil {
		l.stats.recordReceived(from.String())
	}

	digest := m.Digest()
	delete(l.pendingWants, digest)
	if l.seen.Seen(digest) {
		return
	}
	l.seen.Record(digest)
	l.held[digest] = m
	ring := l.rings[m.Topic]
	if ring != nil {
		ring.Push(m)
		if l.stats != nil {
			l.stats.setRingOccupancy(m.Topic, ring.Len())
		}
	}
	l.advertiseToOthers(m, from, m.Origin)
}

// handleLocal gossips a message this node originated: marks it seen/held and
// advertises to every connected peer.
func (l *Loop) handleLocal(m Message) {
	digest := m.Digest()
	if l.seen.Seen(digest) {
		return
	}
	l.seen.Record(digest)
	l.held[digest] = m
	l.advertise(m, nil)
}

// advertiseToOthers sends Advr to every connected peer except the relaying
// sender and the message's origin (spec §4.7 rule 3).
func (l *Loop) advertiseToOthers(m Message, sender, origin core.NodeIndex) {
	l.advertise(m, func(n core.NodeIndex) bool { return n == sender || n == origin })
}

// advertise sends Advr to every connected peer not excluded by skip (skip
// may be nil to advertise to all, used for locally-originated messages where
// only the origin itself needs no notification).
func (l *Loop) advertise(m Message, skip func(core.NodeIndex) bool) {
	digest := m.Digest()
	id := l.seen.Record(digest)
	for _, peer := range l.peers.All() {
		if peer.Node == m.Origin {
			continue
		}
		if skip != nil && skip(peer.Node) {
			continue
		}
		if peer.Stream.Send(Frame{Advr: &Advr{InternedID: id, Digest: digest}}) == nil {
			peer.Stats.MessagesSent.Add(1)
		}
	}
}

func (l *Loop) computeTopology(epoch core.Epoch) {
	if l.topology == nil {
		return
	}
	plan, err := l.topology.ComputePlan(epoch)
	if err != nil {
		return
	}
	select {
	case l.planResults <- plan:
	case <-l.shutdown:
	}
}

// applyTopology diffs the current peer set against plan and dials/drops
// accordingly (spec §4.7, §9 open question resolved in topology.go).
func (l *Loop) applyTopology(plan Plan) {
	toDial, toDrop := diffTopology(l.peers.Nodes(), plan)
	for _, n := range toDrop {
		l.peers.Remove(n)
	}
	if l.dialer == nil {
		return
	}
	for _, n := range toDial {
		stream, err := l.dialer.Dial(n)
		if err != nil {
			continue
		}
		l.peers.Add(n, stream)
	}
}

func (l *Loop) releasePeers() {
	for _, peer := range l.peers.All() {
		l.peers.Remove(peer.Node)
	}
}
