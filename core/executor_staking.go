package core

// handleStake moves FLK from the sending account into a node's staked
// balance (spec §4.3 "Stake"). A brand new NodeId requires full metadata;
// an existing one accepts partial (zero-value = "leave unchanged") updates,
// and only the node's owner may add to its stake.
func (ex *Executor) handleStake(b *WriteBatch, from AccountAddress, m StakeMethod) (ExecutionData, *ExecutionError) {
	sender := loadAccount(b, from)
	newSenderBal, err := sender.FlkBalance.Sub(m.Amount)
	if err != nil || newSenderBal.Sign() < 0 {
		return nil, revert(RevertInsufficientBalance, "balance %s < %s", sender.FlkBalance, m.Amount)
	}

	node, exists := b.t.Nodes[m.NodeId]
	if !exists {
		if m.ConsensusPk == (NodeId{}) || m.Domain == "" || len(m.Ports) == 0 {
			return nil, revert(RevertInsufficientNodeDetails, "new node requires consensus_pk, domain and ports")
		}
		idx := b.t.NextIndex
		b.t.NextIndex++
		node = Node{
			Owner:         from,
			ConsensusPk:   m.ConsensusPk,
			WorkerPk:      m.WorkerPk,
			Domain:        m.Domain,
			Ports:         m.Ports,
			Staked:        ZeroHpFixed(18),
			Locked:        ZeroHpFixed(18),
			Participation: ParticipationTrue,
			Index:         idx,
		}
		b.t.NodeIndex[m.NodeId] = idx
		b.t.IndexToNode[idx] = m.NodeId
	} else {
		if node.Owner != from {
			return nil, revert(RevertInsufficientNodeDetails, "only the node owner may add stake")
		}
		if m.ConsensusPk != (NodeId{}) {
			node.ConsensusPk = m.ConsensusPk
		}
		if m.WorkerPk != (NodeId{}) {
			node.WorkerPk = m.WorkerPk
		}
		if m.Domain != "" {
			node.Domain = m.Domain
		}
		if len(m.Ports) > 0 {
			node.Ports = m.Ports
		}
	}

	newStaked, err := node.Staked.Add(m.Amount)
	if err != nil {
		return nil, revert(RevertInsufficientStake, "%v", err)
	}
	node.Staked = newStaked
	sender.FlkBalance = newSenderBal
	b.t.Accounts[from] = sender
	b.t.Nodes[m.NodeId] = node
	return ExecutionData{"staked": node.Staked.String(), "index": node.Index}, nil
}

// handleUnstake moves staked tokens into the locked bucket (spec §4.3
// "Unstake"), forbidden while stake_locked_until has not yet elapsed. Only
// the node's owner may unstake it.
func (ex *Executor) handleUnstake(b *WriteBatch, from AccountAddress, m UnstakeMethod) (ExecutionData, *ExecutionError) {
	node, ok := b.t.Nodes[m.NodeId]
	if !ok {
		return nil, revert(RevertNodeDoesNotExist, "%s", m.NodeId)
	}
	if node.Owner != from {
		return nil, revert(RevertInsufficientNodeDetails, "only the node owner may unstake")
	}
	if node.StakeLockedUntil > b.t.Metadata.CurrentEpoch {
		return nil, revert(RevertLockedTokensUnstakeForbidden, "locked until epoch %d", node.StakeLockedUntil)
	}
	newStaked, err := node.Staked.Sub(m.Amount)
	if err != nil || newStaked.Sign() < 0 {
		return nil, revert(RevertInsufficientStake, "staked %s < %s", node.Staked, m.Amount)
	}
	newLocked, err := node.Locked.Add(m.Amount)
	if err != nil {
		return nil, revert(RevertInsufficientStake, "%v", err)
	}
	node.Staked = newStaked
	node.Locked = newLocked
	node.LockedUntil = b.t.Metadata.CurrentEpoch + Epoch(b.t.Params.LockTimeEpochs)
	b.t.Nodes[m.NodeId] = node
	return ExecutionData{"locked": node.Locked.String(), "locked_until": node.LockedUntil}, nil
}

// handleStakeLock extends a node's stake_locked_until (spec §4.3
// "StakeLock"), which also feeds the boosted reward weight in §4.3.3. Only
// the node's owner may extend its own lock.
func (ex *Executor) handleStakeLock(b *WriteBatch, from AccountAddress, m StakeLockMethod) (ExecutionData, *ExecutionError) {
	node, ok := b.t.Nodes[m.NodeId]
	if !ok {
		return nil, revert(RevertNodeDoesNotExist, "%s", m.NodeId)
	}
	if node.Owner != from {
		return nil, revert(RevertInsufficientNodeDetails, "only the node owner may extend its stake lock")
	}
	target := b.t.Metadata.CurrentEpoch + Epoch(m.LockEpochs)
	if target > node.StakeLockedUntil {
		node.StakeLockedUntil = target
	}
	b.t.Nodes[m.NodeId] = node
	return ExecutionData{"stake_locked_until": node.StakeLockedUntil}, nil
}

// handleWithdrawUnstaked moves matured locked tokens back to the owner's
// balance (spec §4.3 "WithdrawUnstaked"). Only the node's owner may trigger
// its own withdrawal.
func (ex *Executor) handleWithdrawUnstaked(b *WriteBatch, from AccountAddress, m WithdrawUnstakedMethod) (ExecutionData, *ExecutionError) {
	node, ok := b.t.Nodes[m.NodeId]
	if !ok {
		return nil, revert(RevertNodeDoesNotExist, "%s", m.NodeId)
	}
	if node.Owner != from {
		return nil, revert(RevertInsufficientNodeDetails, "only the node owner may withdraw its unstaked balance")
	}
	if node.LockedUntil > b.t.Metadata.CurrentEpoch {
		return nil, revert(RevertTokensLocked, "locked until epoch %d", node.LockedUntil)
	}
	if node.Locked.Sign() == 0 {
		return ExecutionData{"withdrawn": "0"}, nil
	}
	owner := loadAccount(b, node.Owner)
	newOwnerBal, err := owner.FlkBalance.Add(node.Locked)
	if err != nil {
		return nil, revert(RevertInsufficientStake, "%v", err)
	}
	withdrawn := node.Locked.String()
	owner.FlkBalance = newOwnerBal
	node.Locked = ZeroHpFixed(18)
	b.t.Accounts[node.Owner] = owner
	b.t.Nodes[m.NodeId] = node
	return ExecutionData{"withdrawn": withdrawn}, nil
}
