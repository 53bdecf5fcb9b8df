// Package broadcast implements the single-threaded cooperative gossip event
// loop (spec §4.7): a three-phase advertise/want/message protocol running
// over a fixed set of bidirectional peer streams, with bounded dedup and
// per-topic receive rings.
package broadcast

import "github.com/lumennet/lumen-core/core"

// Topic discriminates a broadcast message's destination ring.
type Topic uint8

const (
	TopicConsensus Topic = iota
	TopicDHT
	TopicDebug
)

func (t Topic) String() string {
	switch t {
	case TopicConsensus:
		return "consensus"
	case TopicDHT:
		return "dht"
	case TopicDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// InternedID is the 16-bit id the seen-message interner assigns to a digest
// (spec §4.7: "u16::MAX capacity").
type InternedID uint16

// Advr announces that the sender holds a message with the given digest.
type Advr struct {
	InternedID InternedID
	Digest     core.Digest
}

// Want requests the full message behind a previously-advertised id.
type Want struct {
	InternedID InternedID
}

// Message is the gossiped payload itself, carrying its own origin and
// signature so any recipient can verify authenticity independent of which
// peer relayed it.
type Message struct {
	Topic     Topic
	Origin    core.NodeIndex
	Signature core.Signature
	Payload   []byte
}

// Digest returns the content digest Advr/Want frames refer to: H(payload,
// topic, origin) per spec §4.7's verification clause.
func (m Message) Digest() core.Digest {
	var topicByte [1]byte
	topicByte[0] = byte(m.Topic)
	var originBuf [4]byte
	originBuf[0] = byte(m.Origin)
	originBuf[1] = byte(m.Origin >> 8)
	originBuf[2] = byte(m.Origin >> 16)
	originBuf[3] = byte(m.Origin >> 24)
	return core.Blake3Sum(m.Payload, topicByte[:], originBuf[:])
}

// Frame is the tagged union carried over a peer stream.
type Frame struct {
	Advr    *Advr
	Want    *Want
	Message *Message
}
