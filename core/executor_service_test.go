package core

import "testing"

// TestChangeProtocolParamRequiresGovernance checks spec §4.3's "only the
// governance account may submit ChangeProtocolParam" rule.
func TestChangeProtocolParamRequiresGovernance(t *testing.T) {
	state, _ := newGenesisState(t, 1)
	executor := NewExecutor(state, nil)

	intruder := newTestKeypair(t)
	tx := buildAccountTx(t, intruder, 1, MethodChangeProtocolParam, ChangeProtocolParamMethod{Param: ParamMaxBoost, RawValue: "8"})
	resp, err := executor.Execute(blockOf(Digest{}, tx))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert == nil || resp.TxnReceipts[0].Response.Revert.Kind != RevertOnlyGovernance {
		t.Fatalf("expected OnlyGovernance revert, got %+v", resp.TxnReceipts[0].Response)
	}

	snap := state.Snapshot()
	if snap.t.Params.MaxBoost != 2 {
		t.Fatalf("MaxBoost was mutated by a non-governance sender: %d", snap.t.Params.MaxBoost)
	}
}

// TestChangeProtocolParamAppliesFromGovernance checks the accepting path:
// the governance account's ChangeProtocolParam actually lands.
func TestChangeProtocolParamAppliesFromGovernance(t *testing.T) {
	gov := newTestKeypair(t)
	node := newTestKeypair(t)
	doc := GenesisDoc{
		EpochTimeMs:         3_600_000,
		CommitteeSize:       1,
		SupplyAtGenesis:     "0",
		MinimumStake:        "0",
		GovernanceAddress:   gov.addr,
		ProtocolFundAddress: gov.addr,
		NodeInfo: []GenesisNode{
			{Owner: node.addr, ConsensusPk: node.node, WorkerPk: node.node, Domain: "n.example.com", Ports: []uint16{4000}, Staked: "0"},
		},
	}
	state, err := LoadGenesisInMemory(doc)
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	executor := NewExecutor(state, nil)

	tx := buildAccountTx(t, gov, 1, MethodChangeProtocolParam, ChangeProtocolParamMethod{Param: ParamMaxBoost, RawValue: "8"})
	resp, err := executor.Execute(blockOf(Digest{}, tx))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert != nil {
		t.Fatalf("governance ChangeProtocolParam reverted: %+v", resp.TxnReceipts[0].Response.Revert)
	}

	snap := state.Snapshot()
	if snap.t.Params.MaxBoost != 8 {
		t.Fatalf("MaxBoost = %d, want 8", snap.t.Params.MaxBoost)
	}
}

// TestSubmitDeliveryAckUnknownServiceReverts checks that a delivery ack
// against a service id absent from the genesis/service table reverts
// instead of silently minting revenue for nothing.
func TestSubmitDeliveryAckUnknownServiceReverts(t *testing.T) {
	state, kps := newGenesisState(t, 1)
	executor := NewExecutor(state, nil)

	tx := buildNodeTx(t, kps[0], 1, MethodSubmitDeliveryAck, SubmitDeliveryAckMethod{Service: 999, Commodity: 1, RevenueUSD: NewHpFixedFromInt(1, 6)})
	resp, err := executor.Execute(blockOf(Digest{}, tx))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert == nil || resp.TxnReceipts[0].Response.Revert.Kind != RevertNodeDoesNotExist {
		t.Fatalf("expected a revert for an unknown service id, got %+v", resp.TxnReceipts[0].Response)
	}
}

// TestOptOutThenOptIn checks that participation flips both ways and that a
// node opted out fails IsValid even with ample stake.
func TestOptOutThenOptIn(t *testing.T) {
	state, kps := newGenesisState(t, 1)
	executor := NewExecutor(state, nil)
	nodeID := kps[0].node

	optOut := buildNodeTx(t, kps[0], 1, MethodOptOut, OptOutMethod{})
	resp, err := executor.Execute(blockOf(Digest{}, optOut))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert != nil {
		t.Fatalf("OptOut reverted: %+v", resp.TxnReceipts[0].Response.Revert)
	}

	snap := state.Snapshot()
	node := snap.t.Nodes[nodeID]
	if node.IsValid(snap.t.Params.MinimumStake) {
		t.Fatalf("opted-out node reports valid despite Participation=false")
	}

	optIn := buildNodeTx(t, kps[0], 2, MethodOptIn, OptInMethod{})
	resp, err = executor.Execute(blockOf(Digest{}, optIn))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert != nil {
		t.Fatalf("OptIn reverted: %+v", resp.TxnReceipts[0].Response.Revert)
	}
	snap = state.Snapshot()
	node = snap.t.Nodes[nodeID]
	if !node.IsValid(snap.t.Params.MinimumStake) {
		t.Fatalf("opted-back-in node still reports invalid")
	}
}
