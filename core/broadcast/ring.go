package broadcast

import "github.com/lumennet/lumen-core/core"

// Ring is a fixed-capacity, size-bounded receive buffer that drops the
// oldest entry on overflow (spec §4.7: "Rings drop oldest on overflow").
type Ring struct {
	buf   []Message
	head  int // index of the oldest element
	count int
}

// NewRing constructs a Ring with the given capacity. Capacity must be at
// least 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]Message, capacity)}
}

// Push appends m, evicting the oldest entry first if the ring is full.
func (r *Ring) Push(m Message) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = m
		r.count++
		return
	}
	r.buf[r.head] = m
	r.head = (r.head + 1) % len(r.buf)
}

// Len returns the number of messages currently held.
func (r *Ring) Len() int { return r.count }

// Cap returns the ring's fixed capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Snapshot returns the ring's contents, oldest first.
func (r *Ring) Snapshot() []Message {
	out := make([]Message, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// ringCapacitiesForTopic picks the configured capacity for t out of the
// shared core.RingCapacities protocol param (spec §4.7, §9 open question
// resolved in favor of policy-tunability: these are a param, not literals).
func ringCapacitiesForTopic(c core.RingCapacities, t Topic) int {
	switch t {
	case TopicConsensus:
		return c.Consensus
	case TopicDHT:
		return c.DHT
	default:
		return c.Debug
	}
}
