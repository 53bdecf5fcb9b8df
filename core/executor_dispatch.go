package core

// dispatch routes a transaction's method to its handler (spec §4.3's method
// table). Handlers never touch the nonce: applyOne already advanced it
// before calling dispatch, per spec's replay-defense rule that a revert
// still consumes the nonce.
func (ex *Executor) dispatch(b *WriteBatch, tx TransactionRequest, signerNode *NodeId) (ExecutionData, bool, *ExecutionError) {
	from := tx.Payload.Sender

	switch m := tx.Payload.Method.(type) {
	case DepositMethod:
		data, err := ex.handleDeposit(b, from, m)
		return data, false, err
	case WithdrawMethod:
		data, err := ex.handleWithdraw(b, from, m)
		return data, false, err
	case TransferMethod:
		data, err := ex.handleTransfer(b, from, m)
		return data, false, err
	case StakeMethod:
		data, err := ex.handleStake(b, from, m)
		return data, false, err
	case UnstakeMethod:
		if signerNode != nil {
			return nil, false, revert(RevertInsufficientNodeDetails, "Unstake must be signed by the node owner's account key")
		}
		data, err := ex.handleUnstake(b, from, m)
		return data, false, err
	case StakeLockMethod:
		if signerNode != nil {
			return nil, false, revert(RevertInsufficientNodeDetails, "StakeLock must be signed by the node owner's account key")
		}
		data, err := ex.handleStakeLock(b, from, m)
		return data, false, err
	case WithdrawUnstakedMethod:
		if signerNode != nil {
			return nil, false, revert(RevertInsufficientNodeDetails, "WithdrawUnstaked must be signed by the node owner's account key")
		}
		data, err := ex.handleWithdrawUnstaked(b, from, m)
		return data, false, err
	case ChangeEpochMethod:
		return ex.handleChangeEpoch(b, signerNode, m)
	case SubmitDeliveryAckMethod:
		data, err := ex.handleSubmitDeliveryAck(b, signerNode, m)
		return data, false, err
	case SubmitReputationMeasurementsMethod:
		data, err := ex.handleSubmitReputationMeasurements(b, signerNode, m)
		return data, false, err
	case ChangeProtocolParamMethod:
		data, err := ex.handleChangeProtocolParam(b, from, m)
		return data, false, err
	case OptInMethod:
		data, err := ex.handleOptInOut(b, signerNode, true)
		return data, false, err
	case OptOutMethod:
		data, err := ex.handleOptInOut(b, signerNode, false)
		return data, false, err
	default:
		return nil, false, revert(RevertInvalidNonce, "unknown method type %T", m)
	}
}
