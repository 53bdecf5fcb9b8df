package core

// handleSubmitDeliveryAck records commodity served for a service and its
// USD contribution to the current epoch's reward pool (spec §4.3
// "SubmitDeliveryAck", feeding §4.3.3's R_usd).
func (ex *Executor) handleSubmitDeliveryAck(b *WriteBatch, signerNode *NodeId, m SubmitDeliveryAckMethod) (ExecutionData, *ExecutionError) {
	if signerNode == nil {
		return nil, revert(RevertNodeDoesNotExist, "SubmitDeliveryAck must be sent by a node")
	}
	if _, ok := b.t.Services[m.Service]; !ok {
		return nil, revert(RevertNodeDoesNotExist, "unknown service %d", m.Service)
	}
	reporterIdx, ok := b.t.NodeIndex[*signerNode]
	if !ok {
		return nil, revert(RevertNodeDoesNotExist, "%s", signerNode)
	}

	ts := &b.t.TotalServed
	ts.Served[m.Service] += m.Commodity

	svcRevenue := ts.ServiceRevenue[m.Service]
	if svcRevenue == nil {
		svcRevenue = ZeroHpFixed(6)
	}
	newSvcRevenue, err := svcRevenue.Add(m.RevenueUSD)
	if err != nil {
		return nil, revert(RevertInsufficientBalance, "%v", err)
	}
	ts.ServiceRevenue[m.Service] = newSvcRevenue

	nodeRevenue := ts.NodeRevenue[reporterIdx]
	if nodeRevenue == nil {
		nodeRevenue = ZeroHpFixed(6)
	}
	newNodeRevenue, err := nodeRevenue.Add(m.RevenueUSD)
	if err != nil {
		return nil, revert(RevertInsufficientBalance, "%v", err)
	}
	ts.NodeRevenue[reporterIdx] = newNodeRevenue

	newPool, err := ts.RewardPool.Add(m.RevenueUSD)
	if err != nil {
		return nil, revert(RevertInsufficientBalance, "%v", err)
	}
	ts.RewardPool = newPool
	return ExecutionData{"service": m.Service, "commodity": m.Commodity}, nil
}

// reporterAlreadySubmitted reports whether reporter has already recorded a
// measurement for any subject this epoch — spec §4.8: "each reporter may
// submit at most one measurement map" per epoch, not per subject.
func reporterAlreadySubmitted(b *WriteBatch, reporter NodeIndex) bool {
	for _, reporters := range b.t.RepReporters {
		if _, ok := reporters[reporter]; ok {
			return true
		}
	}
	return false
}

// handleSubmitReputationMeasurements appends one reporter's measurement map
// for the current epoch (spec §4.3 "SubmitReputationMeasurements", §4.8).
func (ex *Executor) handleSubmitReputationMeasurements(b *WriteBatch, signerNode *NodeId, m SubmitReputationMeasurementsMethod) (ExecutionData, *ExecutionError) {
	if signerNode == nil {
		return nil, revert(RevertNodeDoesNotExist, "SubmitReputationMeasurements must be sent by a node")
	}
	reporterIdx, ok := b.t.NodeIndex[*signerNode]
	if !ok {
		return nil, revert(RevertNodeDoesNotExist, "%s", signerNode)
	}
	if reporterAlreadySubmitted(b, reporterIdx) {
		return nil, revert(RevertAlreadySubmittedMeasurements, "reporter %d already submitted this epoch", reporterIdx)
	}

	for _, sm := range m.Measurements {
		measurement := sm.Measurement
		measurement.Reporter = reporterIdx
		b.t.RepMeasurements[sm.Subject] = append(b.t.RepMeasurements[sm.Subject], measurement)
		if b.t.RepReporters[sm.Subject] == nil {
			b.t.RepReporters[sm.Subject] = make(map[NodeIndex]struct{})
		}
		b.t.RepReporters[sm.Subject][reporterIdx] = struct{}{}
	}
	return ExecutionData{"reporter": reporterIdx, "count": len(m.Measurements)}, nil
}

// handleChangeProtocolParam overwrites a single protocol parameter; only the
// governance account may submit one (spec §4.3 "ChangeProtocolParam").
func (ex *Executor) handleChangeProtocolParam(b *WriteBatch, from AccountAddress, m ChangeProtocolParamMethod) (ExecutionData, *ExecutionError) {
	if from != b.t.Metadata.GovernanceAddress {
		return nil, revert(RevertOnlyGovernance, "%s is not the governance account", from)
	}
	if err := applyProtocolParam(&b.t.Params, m.Param, m.RawValue); err != nil {
		return nil, revert(RevertInsufficientNodeDetails, "%v", err)
	}
	return ExecutionData{"param": string(m.Param), "value": m.RawValue}, nil
}

// handleOptInOut sets a node's participation flag for the next epoch (spec
// §4.3 "OptIn / OptOut").
func (ex *Executor) handleOptInOut(b *WriteBatch, signerNode *NodeId, in bool) (ExecutionData, *ExecutionError) {
	if signerNode == nil {
		return nil, revert(RevertNodeDoesNotExist, "OptIn/OptOut must be sent by a node")
	}
	node, ok := b.t.Nodes[*signerNode]
	if !ok {
		return nil, revert(RevertNodeDoesNotExist, "%s", signerNode)
	}
	if in {
		node.Participation = ParticipationTrue
	} else {
		node.Participation = ParticipationFalse
	}
	b.t.Nodes[*signerNode] = node
	return ExecutionData{"participation": bool(node.Participation)}, nil
}
