package core

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
)

// GenesisNode is one seed committee member as declared in a genesis document
// (spec §6 "node_info: [GenesisNode]").
type GenesisNode struct {
	Owner       AccountAddress `json:"owner"`
	ConsensusPk NodeId         `json:"consensus_pk"`
	WorkerPk    NodeId         `json:"worker_pk"`
	Domain      string         `json:"domain"`
	Ports       []uint16       `json:"ports"`
	Staked      string         `json:"staked"` // decimal string, parsed at HpFixed<18>
}

// GenesisService is a default commodity-serving service record (spec §6
// "service_info: [Service]").
type GenesisService struct {
	ID     ServiceId         `json:"id"`
	Owner  AccountAddress    `json:"owner"`
	Prices map[ServiceId]string `json:"commodity_prices"`
}

// GenesisDoc is the declarative genesis document spec §6 enumerates. Its
// on-disk form (TOML or JSON) is an external CLI/config concern per spec
// §1; this core only needs to decode the already-narrowed document shape,
// the way go-ethereum's core.Genesis is a plain decoded struct independent
// of whichever tool produced the JSON on disk.
type GenesisDoc struct {
	EpochStartMs           uint64           `json:"epoch_start"`
	EpochTimeMs            uint64           `json:"epoch_time"`
	CommitteeSize          uint32           `json:"committee_size"`
	MaxInflationBps        uint32           `json:"max_inflation"`
	ProtocolShareBps       uint32           `json:"protocol_share"`
	NodeShareBps           uint32           `json:"node_share"`
	ServiceBuilderShareBps uint32           `json:"service_builder_share"`
	MaxBoost               uint64           `json:"max_boost"`
	SupplyAtGenesis        string           `json:"supply_at_genesis"`
	GovernanceAddress      AccountAddress   `json:"governance_address"`
	ProtocolFundAddress    AccountAddress   `json:"protocol_fund_address"`
	LockTimeEpochs         uint64           `json:"lock_time"`
	MinimumStake           string           `json:"minimum_stake"`
	NodeInfo               []GenesisNode    `json:"node_info"`
	ServiceInfo            []GenesisService `json:"service_info"`
}

func parseHp18(s string) (*HpFixed, error) {
	if s == "" {
		return ZeroHpFixed(18), nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("core: invalid decimal %q", s)
	}
	return FromRat(r, 18), nil
}

// LoadGenesisInMemory builds the initial State entirely in memory from a
// decoded GenesisDoc. This is the "in-memory test" mode spec §4.2 requires.
func LoadGenesisInMemory(doc GenesisDoc) (*State, error) {
	if len(doc.NodeInfo) == 0 {
		return nil, fmt.Errorf("core: genesis requires at least one seed committee member")
	}
	seen := make(map[NodeId]struct{}, len(doc.NodeInfo))
	for _, n := range doc.NodeInfo {
		if _, err := n.ConsensusPk.PubKey(); err != nil {
			return nil, fmt.Errorf("core: genesis node has malformed consensus key: %w", err)
		}
		if _, dup := seen[n.ConsensusPk]; dup {
			return nil, fmt.Errorf("core: genesis node id %s duplicated", n.ConsensusPk)
		}
		seen[n.ConsensusPk] = struct{}{}
	}

	state := NewState()
	b := state.Begin()

	supply, err := parseHp18(doc.SupplyAtGenesis)
	if err != nil {
		b.Discard()
		return nil, err
	}
	minStake, err := parseHp18(doc.MinimumStake)
	if err != nil {
		b.Discard()
		return nil, err
	}

	params := DefaultProtocolParams()
	if doc.CommitteeSize > 0 {
		params.CommitteeSize = doc.CommitteeSize
	}
	if doc.MaxInflationBps > 0 {
		params.MaxInflationBps = doc.MaxInflationBps
	}
	if doc.ProtocolShareBps > 0 {
		params.ProtocolShareBps = doc.ProtocolShareBps
	}
	if doc.NodeShareBps > 0 {
		params.NodeShareBps = doc.NodeShareBps
	}
	if doc.ServiceBuilderShareBps > 0 {
		params.ServiceBuilderShareBps = doc.ServiceBuilderShareBps
	}
	if doc.MaxBoost > 0 {
		params.MaxBoost = doc.MaxBoost
	}
	if doc.LockTimeEpochs > 0 {
		params.LockTimeEpochs = doc.LockTimeEpochs
	}
	if doc.EpochTimeMs > 0 {
		params.EpochTimeMs = doc.EpochTimeMs
	}
	params.MinimumStake = minStake
	b.t.Params = params

	b.t.Metadata = Metadata{
		CurrentEpoch:        0,
		EpochStartMs:        doc.EpochStartMs,
		EpochLengthMs:       params.EpochTimeMs,
		Supply:              supply,
		SupplyAtYearStart:   supply.Clone(),
		GovernanceAddress:   doc.GovernanceAddress,
		ProtocolFundAddress: doc.ProtocolFundAddress,
	}

	members := make([]NodeIndex, 0, len(doc.NodeInfo))
	for _, gn := range doc.NodeInfo {
		staked, err := parseHp18(gn.Staked)
		if err != nil {
			b.Discard()
			return nil, err
		}
		idx := b.t.NextIndex
		b.t.NextIndex++
		node := Node{
			Owner:            gn.Owner,
			ConsensusPk:      gn.ConsensusPk,
			WorkerPk:         gn.WorkerPk,
			Domain:           gn.Domain,
			Ports:            gn.Ports,
			Staked:           staked,
			Locked:           ZeroHpFixed(18),
			Participation:    ParticipationTrue,
			Index:            idx,
			StakeLockedUntil: 0,
		}
		b.t.Nodes[gn.ConsensusPk] = node
		b.t.NodeIndex[gn.ConsensusPk] = idx
		b.t.IndexToNode[idx] = gn.ConsensusPk
		members = append(members, idx)
	}
	b.t.Committee = Committee{
		Members:    members,
		Signalled:  make(map[NodeIndex]struct{}),
		Ready:      true,
		EpochEndMs: doc.EpochStartMs + params.EpochTimeMs,
	}

	for _, gs := range doc.ServiceInfo {
		svc := Service{Owner: gs.Owner, CommodityPrices: make(map[ServiceId]*HpFixed, len(gs.Prices))}
		for sid, p := range gs.Prices {
			hp, err := parseHp18(p)
			if err != nil {
				b.Discard()
				return nil, err
			}
			svc.CommodityPrices[sid] = hp
		}
		b.t.Services[gs.ID] = svc
	}

	b.Commit()
	return state, nil
}

// LoadGenesisFile decodes a JSON genesis document from disk and delegates
// to LoadGenesisInMemory, matching the "on-disk" mode spec §4.2 names.
func LoadGenesisFile(path string) (*State, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("core: read genesis file: %w", err)
	}
	var doc GenesisDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("core: decode genesis file: %w", err)
	}
	return LoadGenesisInMemory(doc)
}
