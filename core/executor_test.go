package core

import "testing"

func TestNonceMustBeSequential(t *testing.T) {
	state, kps := newGenesisState(t, 1)
	executor := NewExecutor(state, nil)

	stake := StakeMethod{NodeId: kps[0].node, Amount: NewHpFixedFromInt(0, 18)}

	// The node already has a nonce of 0 from genesis; nonce 2 skips ahead.
	skip := buildNodeTx(t, kps[0], 2, MethodStake, stake)
	resp, err := executor.Execute(blockOf(Digest{}, skip))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert == nil || resp.TxnReceipts[0].Response.Revert.Kind != RevertInvalidNonce {
		t.Fatalf("expected InvalidNonce revert for skipped nonce, got %+v", resp.TxnReceipts[0].Response)
	}

	valid := buildNodeTx(t, kps[0], 1, MethodStake, stake)
	resp, err = executor.Execute(blockOf(Digest{}, valid))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert != nil {
		t.Fatalf("expected nonce-1 tx to succeed, got revert %+v", resp.TxnReceipts[0].Response.Revert)
	}

	replay := buildNodeTx(t, kps[0], 1, MethodStake, stake)
	resp, err = executor.Execute(blockOf(Digest{}, replay))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert == nil || resp.TxnReceipts[0].Response.Revert.Kind != RevertInvalidNonce {
		t.Fatalf("expected InvalidNonce revert for replayed nonce, got %+v", resp.TxnReceipts[0].Response)
	}
}

func TestValidateTxnAgreesWithExecute(t *testing.T) {
	state, kps := newGenesisState(t, 1)
	executor := NewExecutor(state, nil)
	query := NewQueryRunner(state, executor)

	recipient := newTestKeypair(t)
	transfer := TransferMethod{To: recipient.addr, Token: TokenFLK, Amount: NewHpFixedFromInt(1, 18)}

	acct := newTestKeypair(t)
	// Seed acct with a balance via Deposit first so the transfer can succeed.
	deposit := buildAccountTx(t, acct, 1, MethodDeposit, DepositMethod{Token: TokenFLK, Amount: NewHpFixedFromInt(10, 18), Proof: nil})
	if _, err := executor.Execute(blockOf(Digest{}, deposit)); err != nil {
		t.Fatalf("seed deposit failed: %v", err)
	}

	tx := buildAccountTx(t, acct, 2, MethodTransfer, transfer)

	simulated, err := query.ValidateTxn(tx)
	if err != nil {
		t.Fatalf("ValidateTxn failed: %v", err)
	}
	if simulated.Revert != nil {
		t.Fatalf("ValidateTxn reverted unexpectedly: %+v", simulated.Revert)
	}

	// ValidateTxn must never touch the committed state: the recipient
	// account it projected into existence during simulation must not be
	// observable until the real Execute call below actually runs.
	preExecute := state.Snapshot()
	if _, exists := preExecute.t.Accounts[recipient.addr]; exists {
		t.Fatalf("ValidateTxn mutated committed state: recipient account materialized before Execute ran")
	}

	resp, err := executor.Execute(blockOf(Digest{}, tx))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	executed := resp.TxnReceipts[0].Response
	if executed.Revert != nil {
		t.Fatalf("Execute reverted unexpectedly: %+v", executed.Revert)
	}
	if (*executed.Success)["to"] != (*simulated.Success)["to"] {
		t.Fatalf("validate/execute disagree: validate=%v execute=%v", simulated.Success, executed.Success)
	}

	postExecute := state.Snapshot()
	if _, exists := postExecute.t.Accounts[recipient.addr]; !exists {
		t.Fatalf("Execute did not materialize the recipient account")
	}
}

func TestTransferRejectsSelfSend(t *testing.T) {
	seed := newTestKeypair(t)
	acct := newTestKeypair(t)
	state, err := LoadGenesisInMemory(GenesisDoc{
		EpochTimeMs:     3_600_000,
		CommitteeSize:   1,
		SupplyAtGenesis: "0",
		MinimumStake:    "0",
		NodeInfo: []GenesisNode{{
			Owner: seed.addr, ConsensusPk: seed.node, WorkerPk: seed.node,
			Domain: "n.example.com", Ports: []uint16{1}, Staked: "0",
		}},
	})
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	executor := NewExecutor(state, nil)

	tx := buildAccountTx(t, acct, 1, MethodTransfer, TransferMethod{To: acct.addr, Token: TokenFLK, Amount: NewHpFixedFromInt(1, 18)})
	resp, err := executor.Execute(blockOf(Digest{}, tx))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert == nil || resp.TxnReceipts[0].Response.Revert.Kind != RevertCantSendToYourself {
		t.Fatalf("expected CantSendToYourself revert, got %+v", resp.TxnReceipts[0].Response)
	}
}

func TestStakeUnstakeWithdrawCycle(t *testing.T) {
	state, kps := newGenesisState(t, 1)
	executor := NewExecutor(state, nil)
	nodeID := kps[0].node

	// Genesis already staked 1000; unstaking is forbidden while stake_locked_until
	// has not elapsed, but genesis leaves it at epoch 0 so it's immediately unstakeable.
	unstake := buildAccountTx(t, kps[0], 1, MethodUnstake, UnstakeMethod{NodeId: nodeID, Amount: NewHpFixedFromInt(200, 18)})
	resp, err := executor.Execute(blockOf(Digest{}, unstake))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert != nil {
		t.Fatalf("unstake reverted: %+v", resp.TxnReceipts[0].Response.Revert)
	}

	snap := state.Snapshot()
	node := snap.t.Nodes[nodeID]
	if node.Locked.String() != "200.000000000000000000" {
		t.Fatalf("locked = %s, want 200", node.Locked.String())
	}
	if node.LockedUntil == 0 {
		t.Fatalf("expected a positive lock_until epoch from genesis's lock_time_epochs=1")
	}

	withdrawTooSoon := buildAccountTx(t, kps[0], 2, MethodWithdrawUnstaked, WithdrawUnstakedMethod{NodeId: nodeID})
	resp, err = executor.Execute(blockOf(Digest{}, withdrawTooSoon))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert == nil || resp.TxnReceipts[0].Response.Revert.Kind != RevertTokensLocked {
		t.Fatalf("expected TokensLocked revert before lock matures, got %+v", resp.TxnReceipts[0].Response)
	}
}

// TestUnstakeRejectsNonOwner checks that Unstake/StakeLock/WithdrawUnstaked
// reject an account sender who isn't the target node's owner, whether that
// sender is an unrelated account or the owner of another node.
func TestUnstakeRejectsNonOwner(t *testing.T) {
	state, kps := newGenesisState(t, 2)
	executor := NewExecutor(state, nil)
	victim := kps[0].node

	attacker := newTestKeypair(t)
	forgedUnstake := buildAccountTx(t, attacker, 1, MethodUnstake, UnstakeMethod{NodeId: victim, Amount: NewHpFixedFromInt(200, 18)})
	resp, err := executor.Execute(blockOf(Digest{}, forgedUnstake))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert == nil || resp.TxnReceipts[0].Response.Revert.Kind != RevertInsufficientNodeDetails {
		t.Fatalf("expected InsufficientNodeDetails for a non-owner Unstake, got %+v", resp.TxnReceipts[0].Response)
	}

	forgedStakeLock := buildAccountTx(t, kps[1], 1, MethodStakeLock, StakeLockMethod{NodeId: victim, LockEpochs: 1460})
	resp, err = executor.Execute(blockOf(Digest{}, forgedStakeLock))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert == nil || resp.TxnReceipts[0].Response.Revert.Kind != RevertInsufficientNodeDetails {
		t.Fatalf("expected InsufficientNodeDetails for a non-owner StakeLock, got %+v", resp.TxnReceipts[0].Response)
	}

	forgedWithdraw := buildAccountTx(t, kps[1], 2, MethodWithdrawUnstaked, WithdrawUnstakedMethod{NodeId: victim})
	resp, err = executor.Execute(blockOf(Digest{}, forgedWithdraw))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert == nil || resp.TxnReceipts[0].Response.Revert.Kind != RevertInsufficientNodeDetails {
		t.Fatalf("expected InsufficientNodeDetails for a non-owner WithdrawUnstaked, got %+v", resp.TxnReceipts[0].Response)
	}

	snap := state.Snapshot()
	if snap.t.Nodes[victim].Staked.String() != "1000.000000000000000000" {
		t.Fatalf("victim's stake was mutated by a non-owner sender: %s", snap.t.Nodes[victim].Staked.String())
	}
}

// TestUnstakeRejectsNodeSignedTransaction checks that Unstake is rejected
// when signed via a node's consensus key instead of its owner's account
// key, even when the signing node is the node being unstaked — these three
// methods are account-sender class per spec §4.3's method table.
func TestUnstakeRejectsNodeSignedTransaction(t *testing.T) {
	state, kps := newGenesisState(t, 1)
	executor := NewExecutor(state, nil)

	tx := buildNodeTx(t, kps[0], 1, MethodUnstake, UnstakeMethod{NodeId: kps[0].node, Amount: NewHpFixedFromInt(200, 18)})
	resp, err := executor.Execute(blockOf(Digest{}, tx))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert == nil || resp.TxnReceipts[0].Response.Revert.Kind != RevertInsufficientNodeDetails {
		t.Fatalf("expected a node-signed Unstake to be rejected, got %+v", resp.TxnReceipts[0].Response)
	}
}
