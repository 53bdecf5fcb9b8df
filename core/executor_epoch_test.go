package core

import "testing"

func TestCommitteeThreshold(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 3, 4: 3, 5: 4, 6: 5, 7: 5}
	for n, want := range cases {
		if got := committeeThreshold(n); got != want {
			t.Fatalf("committeeThreshold(%d) = %d, want %d", n, got, want)
		}
	}
}

// TestChangeEpochRequiresQuorum drives four committee members through
// ChangeEpoch one at a time and checks that the epoch only actually
// advances once the third signal crosses the 2N/3+1 = 3 threshold.
func TestChangeEpochRequiresQuorum(t *testing.T) {
	state, kps := newGenesisState(t, 4)
	executor := NewExecutor(state, nil)

	for i := 0; i < 2; i++ {
		tx := buildNodeTx(t, kps[i], 1, MethodChangeEpoch, ChangeEpochMethod{Epoch: 0})
		resp, err := executor.Execute(blockOf(Digest{}, tx))
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		r := resp.TxnReceipts[0].Response
		if r.Revert != nil {
			t.Fatalf("signal %d reverted: %+v", i, r.Revert)
		}
		if (*r.Success)["change_epoch"] == true {
			t.Fatalf("epoch advanced after only %d signals, quorum is 3", i+1)
		}
	}

	snap := state.Snapshot()
	if snap.t.Metadata.CurrentEpoch != 0 {
		t.Fatalf("epoch advanced early: %d", snap.t.Metadata.CurrentEpoch)
	}

	tx := buildNodeTx(t, kps[2], 1, MethodChangeEpoch, ChangeEpochMethod{Epoch: 0})
	resp, err := executor.Execute(blockOf(Digest{}, tx))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	r := resp.TxnReceipts[0].Response
	if r.Revert != nil {
		t.Fatalf("quorum-crossing signal reverted: %+v", r.Revert)
	}
	if (*r.Success)["change_epoch"] != true {
		t.Fatalf("expected change_epoch=true on the quorum-crossing signal, got %v", r.Success)
	}

	snap = state.Snapshot()
	if snap.t.Metadata.CurrentEpoch != 1 {
		t.Fatalf("CurrentEpoch = %d, want 1", snap.t.Metadata.CurrentEpoch)
	}
	if len(snap.t.Committee.Signalled) != 0 {
		t.Fatalf("Signalled not cleared after transition: %v", snap.t.Committee.Signalled)
	}
	if !snap.t.Committee.Ready {
		t.Fatalf("Committee.Ready = false after transition")
	}
}

// TestChangeEpochWrongEpochReverts checks that a premature (future) epoch
// number reverts rather than being silently accepted.
func TestChangeEpochWrongEpochReverts(t *testing.T) {
	state, kps := newGenesisState(t, 1)
	executor := NewExecutor(state, nil)

	tooLate := buildNodeTx(t, kps[0], 1, MethodChangeEpoch, ChangeEpochMethod{Epoch: 5})
	resp, err := executor.Execute(blockOf(Digest{}, tooLate))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.TxnReceipts[0].Response.Revert == nil || resp.TxnReceipts[0].Response.Revert.Kind != RevertEpochAlreadyStarted {
		t.Fatalf("expected EpochAlreadyStarted for a future epoch number, got %+v", resp.TxnReceipts[0].Response)
	}
}

// TestChangeEpochFromNonCommitteeMemberIsNoOp verifies that a node outside
// the committee can submit ChangeEpoch without reverting and without
// contributing to quorum.
func TestChangeEpochFromNonCommitteeMemberIsNoOp(t *testing.T) {
	state, _ := newGenesisState(t, 1)
	executor := NewExecutor(state, nil)
	outsider := newTestKeypair(t)

	outsiderStake := buildAccountTx(t, outsider, 1, MethodStake,
		StakeMethod{NodeId: outsider.node, Amount: NewHpFixedFromInt(0, 18), ConsensusPk: outsider.node, WorkerPk: outsider.node, Domain: "outsider.example.com", Ports: []uint16{4000}})
	if _, err := executor.Execute(blockOf(Digest{}, outsiderStake)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	tx := buildNodeTx(t, outsider, 1, MethodChangeEpoch, ChangeEpochMethod{Epoch: 0})
	resp, err := executor.Execute(blockOf(Digest{}, tx))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	r := resp.TxnReceipts[0].Response
	if r.Revert != nil {
		t.Fatalf("non-committee ChangeEpoch reverted: %+v", r.Revert)
	}
	if (*r.Success)["signalled"] != false {
		t.Fatalf("expected signalled=false for a non-committee sender, got %v", r.Success)
	}

	snap := state.Snapshot()
	if len(snap.t.Committee.Signalled) != 0 {
		t.Fatalf("non-committee signal counted toward quorum: %v", snap.t.Committee.Signalled)
	}
}
