package core

// TokenKind distinguishes FLK (the native token) from the USDC-pegged
// stablecoin balance (spec §3 "stables_balance").
type TokenKind uint8

const (
	TokenFLK TokenKind = iota
	TokenUSDC
)

// DepositMethod credits an account after an external consensus proof of a
// deposit (spec §4.3 "Deposit").
type DepositMethod struct {
	Token  TokenKind
	Amount *HpFixed
	Proof  []byte
}

// WithdrawMethod debits a balance and emits a withdrawal intent (spec §4.3
// "Withdraw"). The intent itself is consumed by an external bridge/relayer;
// this core only needs to record that the balance left the chain.
type WithdrawMethod struct {
	Token  TokenKind
	Amount *HpFixed
}

// TransferMethod moves tokens between two accounts (spec §4.3 "Transfer").
type TransferMethod struct {
	To     AccountAddress
	Token  TokenKind
	Amount *HpFixed
}

// StakeMethod moves FLK from an account's balance into a node's staked
// amount. For a brand new NodeId every metadata field must be populated;
// for an existing one they are optional (left zero-value, meaning
// "unchanged") per spec §4.3.
type StakeMethod struct {
	NodeId      NodeId
	Amount      *HpFixed
	ConsensusPk NodeId
	WorkerPk    NodeId
	Domain      string
	Ports       []uint16
}

// UnstakeMethod moves staked tokens into the locked bucket (spec §4.3
// "Unstake").
type UnstakeMethod struct {
	NodeId NodeId
	Amount *HpFixed
}

// StakeLockMethod extends a node's stake_locked_until epoch (spec §4.3
// "StakeLock").
type StakeLockMethod struct {
	NodeId     NodeId
	LockEpochs uint64
}

// WithdrawUnstakedMethod moves matured locked tokens back to the owner's
// balance (spec §4.3 "WithdrawUnstaked").
type WithdrawUnstakedMethod struct {
	NodeId NodeId
}

// ChangeEpochMethod signals that a committee member believes the named
// epoch should end (spec §4.3.2).
type ChangeEpochMethod struct {
	Epoch Epoch
}

// SubmitDeliveryAckMethod records commodity served for a service (spec
// §4.3 "SubmitDeliveryAck").
type SubmitDeliveryAckMethod struct {
	Service   ServiceId
	Commodity uint64
	RevenueUSD *HpFixed
}

// SubmitReputationMeasurementsMethod appends one reporter's opinion of a set
// of subjects for the current epoch (spec §4.3 "SubmitReputationMeasurements").
type SubmitReputationMeasurementsMethod struct {
	Measurements []SubjectMeasurement
}

// SubjectMeasurement pairs a subject node with the reporter's measurement
// of it; SubjectMeasurement.Measurement.Reporter is filled in by the
// executor from the signing node, not trusted from the wire.
type SubjectMeasurement struct {
	Subject     NodeIndex
	Measurement ReputationMeasurement
}

// ChangeProtocolParamMethod overwrites a single protocol parameter (spec
// §4.3 "ChangeProtocolParam"); only the governance account may submit one.
type ChangeProtocolParamMethod struct {
	Param    ProtocolParamKey
	RawValue string
}

// OptInMethod / OptOutMethod set a node's participation flag for the next
// epoch (spec §4.3 "OptIn / OptOut").
type OptInMethod struct{}
type OptOutMethod struct{}
