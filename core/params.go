package core

import (
	"fmt"
	"strconv"
)

// ProtocolParamKey enumerates the tunable protocol knobs (spec §3 "Protocol
// params"). Grounded on the teacher's core/consensus_params.go /
// core/consensus_weights.go, which carry an equivalent flat set of named
// consensus knobs.
type ProtocolParamKey string

const (
	ParamLockTime              ProtocolParamKey = "LockTime"
	ParamMaxBoost              ProtocolParamKey = "MaxBoost"
	ParamMaxInflation          ProtocolParamKey = "MaxInflation"
	ParamEpochTime             ProtocolParamKey = "EpochTime"
	ParamNodeShare             ProtocolParamKey = "NodeShare"
	ParamProtocolShare         ProtocolParamKey = "ProtocolShare"
	ParamServiceBuilderShare   ProtocolParamKey = "ServiceBuilderShare"
	ParamMinimumStake          ProtocolParamKey = "MinimumStake"
	ParamCommitteeSize         ProtocolParamKey = "CommitteeSize"
	ParamMaxLockEpochs         ProtocolParamKey = "MaxLockEpochs"
	ParamMinUptimeParticipate  ProtocolParamKey = "MinUptimeParticipate"
	ParamMaxUptimeParticipate  ProtocolParamKey = "MaxUptimeParticipate"
	ParamMinReportsForScore    ProtocolParamKey = "MinReportsForScore"
)

// RingCapacities holds the per-topic bounded-ring sizes for the broadcast
// layer (spec §4.7, §9 open question: literals moved here so they can be
// surfaced as protocol params instead of hardcoded constants).
type RingCapacities struct {
	Consensus int
	DHT       int
	Debug     int
}

// DefaultRingCapacities matches the literals spec §4.7 names.
func DefaultRingCapacities() RingCapacities {
	return RingCapacities{Consensus: 2048, DHT: 512, Debug: 1}
}

// RepWeights are the published per-metric weights used by the reputation
// aggregator's weighted sum (spec §4.8). Kept as data rather than constants
// so governance can retune them via ChangeProtocolParam-style flows in a
// production deployment; this core exposes them through ProtocolParams.
type RepWeights struct {
	Latency     uint32
	Uptime      uint32
	BytesServed uint32
	Hops        uint32
}

// DefaultRepWeights gives uptime the dominant weight, since uptime alone
// gates participation thresholds per spec §4.8.
func DefaultRepWeights() RepWeights {
	return RepWeights{Latency: 20, Uptime: 50, BytesServed: 20, Hops: 10}
}

// ProtocolParams is the full set of tunable knobs plus the non-governance
// structures (ring capacities, reputation weights) a deployment may want to
// retune without a binary change.
type ProtocolParams struct {
	LockTimeEpochs          uint64
	MaxBoost                uint64 // integer multiplier, e.g. 4 means up to 4x
	MaxInflationBps         uint32 // basis points, e.g. 1000 = 10%
	EpochTimeMs             uint64
	NodeShareBps            uint32
	ProtocolShareBps        uint32
	ServiceBuilderShareBps  uint32
	MinimumStake            *HpFixed
	CommitteeSize           uint32
	MaxLockEpochs           uint64
	MinUptimeParticipate    uint32 // below this: Participation = False
	MaxUptimeParticipate    uint32 // at/above this: Participation = True
	MinReportsForScore      int
	Rings                   RingCapacities
	RepWeights              RepWeights
}

// applyProtocolParam overwrites a single named field of p, parsing raw from
// its wire string form (spec §4.3 "ChangeProtocolParam"). HpFixed-valued
// params use the 18-decimal genesis parser since MinimumStake is the only
// HpFixed param currently named.
func applyProtocolParam(p *ProtocolParams, key ProtocolParamKey, raw string) error {
	switch key {
	case ParamLockTime:
		return parseUintInto(raw, &p.LockTimeEpochs)
	case ParamMaxBoost:
		return parseUintInto(raw, &p.MaxBoost)
	case ParamMaxInflation:
		return parseUint32Into(raw, &p.MaxInflationBps)
	case ParamEpochTime:
		return parseUintInto(raw, &p.EpochTimeMs)
	case ParamNodeShare:
		return parseUint32Into(raw, &p.NodeShareBps)
	case ParamProtocolShare:
		return parseUint32Into(raw, &p.ProtocolShareBps)
	case ParamServiceBuilderShare:
		return parseUint32Into(raw, &p.ServiceBuilderShareBps)
	case ParamMinimumStake:
		hp, err := parseHp18(raw)
		if err != nil {
			return err
		}
		p.MinimumStake = hp
		return nil
	case ParamCommitteeSize:
		return parseUint32Into(raw, &p.CommitteeSize)
	case ParamMaxLockEpochs:
		return parseUintInto(raw, &p.MaxLockEpochs)
	case ParamMinUptimeParticipate:
		return parseUint32Into(raw, &p.MinUptimeParticipate)
	case ParamMaxUptimeParticipate:
		return parseUint32Into(raw, &p.MaxUptimeParticipate)
	case ParamMinReportsForScore:
		var v uint32
		if err := parseUint32Into(raw, &v); err != nil {
			return err
		}
		p.MinReportsForScore = int(v)
		return nil
	default:
		return fmt.Errorf("core: unknown protocol param %q", key)
	}
}

func parseUintInto(raw string, dst *uint64) error {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("core: invalid uint value %q: %w", raw, err)
	}
	*dst = v
	return nil
}

func parseUint32Into(raw string, dst *uint32) error {
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return fmt.Errorf("core: invalid uint32 value %q: %w", raw, err)
	}
	*dst = uint32(v)
	return nil
}

// DefaultProtocolParams returns the genesis defaults used by the in-memory
// and on-disk loaders unless overridden by the genesis document.
func DefaultProtocolParams() ProtocolParams {
	return ProtocolParams{
		LockTimeEpochs:         2,
		MaxBoost:               4,
		MaxInflationBps:        1000, // 10%
		EpochTimeMs:            24 * 60 * 60 * 1000,
		NodeShareBps:           8000,
		ProtocolShareBps:       1000,
		ServiceBuilderShareBps: 1000,
		MinimumStake:           NewHpFixedFromInt(1000, 18),
		CommitteeSize:          4,
		MaxLockEpochs:          1460,
		MinUptimeParticipate:   10,
		MaxUptimeParticipate:   20,
		MinReportsForScore:     3,
		Rings:                  DefaultRingCapacities(),
		RepWeights:             DefaultRepWeights(),
	}
}
