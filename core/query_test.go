package core

import "testing"

func TestListNodesPaginatesAndFiltersStake(t *testing.T) {
	state, kps := newGenesisState(t, 3)
	executor := NewExecutor(state, nil)
	query := NewQueryRunner(state, executor)

	// Unstake node 1 below the 100 FLK minimum so it drops out of the
	// filtered listing but still shows up with IgnoreStake set.
	unstake := buildAccountTx(t, kps[1], 1, MethodUnstake, UnstakeMethod{NodeId: kps[1].node, Amount: NewHpFixedFromInt(950, 18)})
	if _, err := executor.Execute(blockOf(Digest{}, unstake)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	all := query.ListNodes(PagingParams{IgnoreStake: true})
	if len(all) != 3 {
		t.Fatalf("ListNodes(IgnoreStake=true) returned %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Index >= all[i].Index {
			t.Fatalf("ListNodes did not return ascending NodeIndex order: %v", all)
		}
	}

	valid := query.ListNodes(PagingParams{})
	if len(valid) != 2 {
		t.Fatalf("ListNodes() (stake-filtered) returned %d, want 2, got %+v", len(valid), valid)
	}
	for _, n := range valid {
		if n.Id == kps[1].node {
			t.Fatalf("under-staked node leaked into the filtered listing")
		}
	}

	page := query.ListNodes(PagingParams{IgnoreStake: true, Start: 1, Limit: 1})
	if len(page) != 1 || page[0].Index != 1 {
		t.Fatalf("ListNodes(Start=1,Limit=1) = %+v, want a single entry at index 1", page)
	}
}

func TestRepScoreAndServiceInfoLookup(t *testing.T) {
	state, _ := newGenesisState(t, 1)
	executor := NewExecutor(state, nil)
	query := NewQueryRunner(state, executor)

	if _, ok := query.RepScore(0); ok {
		t.Fatalf("RepScore reported a score before any was computed")
	}
	if _, ok := query.ServiceInfoByID(1); ok {
		t.Fatalf("ServiceInfoByID reported a service that was never registered")
	}
}

func TestCurrentEpochAndNodePubKey(t *testing.T) {
	state, kps := newGenesisState(t, 2)
	executor := NewExecutor(state, nil)
	query := NewQueryRunner(state, executor)

	info := query.CurrentEpoch()
	if info.Epoch != 0 {
		t.Fatalf("Epoch = %d, want 0", info.Epoch)
	}
	if len(info.Committee) != 2 {
		t.Fatalf("Committee = %v, want 2 members", info.Committee)
	}
	for _, idx := range info.Committee {
		if _, ok := info.CommitteeSet[idx]; !ok {
			t.Fatalf("CommitteeSet missing committee member %d", idx)
		}
	}

	for i, kp := range kps {
		id, ok := query.NodePubKey(NodeIndex(i))
		if !ok || id != kp.node {
			t.Fatalf("NodePubKey(%d) = %v,%v want %v,true", i, id, ok, kp.node)
		}
	}
	if _, ok := query.NodePubKey(999); ok {
		t.Fatalf("NodePubKey reported success for an unregistered index")
	}
}
