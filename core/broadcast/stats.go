package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Stats exposes the event loop's Prometheus gauges/counters. The loop updates
// these vectors directly as it handles frames; they are kept separately from
// the per-peer PeerStats atomics, which this collector does not read.
type Stats struct {
	invalidMessages *prometheus.CounterVec
	messagesSent    *prometheus.CounterVec
	messagesRecv    *prometheus.CounterVec
	ringOccupancy   *prometheus.GaugeVec
}

// NewStats registers the broadcast loop's metrics against reg.
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		invalidMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "broadcast",
			Name:      "invalid_messages_received_from_peer",
			Help:      "Messages dropped for failing origin signature verification, by peer node index.",
		}, []string{"peer"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "broadcast",
			Name:      "messages_sent_total",
			Help:      "Messages sent to a peer, by peer node index.",
		}, []string{"peer"}),
		messagesRecv: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "broadcast",
			Name:      "messages_received_total",
			Help:      "Messages accepted from a peer, by peer node index.",
		}, []string{"peer"}),
		ringOccupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lumen",
			Subsystem: "broadcast",
			Name:      "ring_occupancy",
			Help:      "Current number of buffered messages per topic ring.",
		}, []string{"topic"}),
	}
	reg.MustRegister(s.invalidMessages, s.messagesSent, s.messagesRecv, s.ringOccupancy)
	return s
}

func (s *Stats) recordInvalid(peer string)  { s.invalidMessages.WithLabelValues(peer).Inc() }
func (s *Stats) recordSent(peer string)     { s.messagesSent.WithLabelValues(peer).Inc() }
func (s *Stats) recordReceived(peer string) { s.messagesRecv.WithLabelValues(peer).Inc() }
func (s *Stats) setRingOccupancy(topic Topic, n int) {
	s.ringOccupancy.WithLabelValues(topic.String()).Set(float64(n))
}
