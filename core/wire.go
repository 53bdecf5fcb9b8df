package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// txWire is TransactionRequest's canonical wire shape (spec §6). The method
// body travels as an opaque RLP blob tagged by MethodTag, since RLP's
// reflective decoder needs a concrete type to decode into and
// UpdatePayload.Method is carried as interface{} in memory.
type txWire struct {
	SenderPk    []byte
	Sender      AccountAddress
	Nonce       uint64
	Tag         byte
	MethodBytes []byte
	Signature   []byte
	SignerID    NodeId
}

// EncodeTransactionRequest serializes tx to the wire form consensus batches
// carry (spec §4.5 "batches of raw transaction bytes").
func EncodeTransactionRequest(tx TransactionRequest) ([]byte, error) {
	methodBytes, err := canonicalMethodBody(tx.Payload.Method)
	if err != nil {
		return nil, fmt.Errorf("core: encode method body: %w", err)
	}
	w := txWire{
		SenderPk:    tx.SenderPk,
		Sender:      tx.Payload.Sender,
		Nonce:       tx.Payload.Nonce,
		Tag:         byte(tx.Payload.Tag),
		MethodBytes: methodBytes,
		Signature:   tx.Signature[:],
		SignerID:    tx.SignerID,
	}
	return rlp.EncodeToBytes(w)
}

// DecodeTransactionRequest is the inverse of EncodeTransactionRequest. It
// reconstructs the typed Method value from MethodTag for every method spec
// §4.3 enumerates.
func DecodeTransactionRequest(raw []byte) (TransactionRequest, error) {
	var w txWire
	if err := rlp.DecodeBytes(raw, &w); err != nil {
		return TransactionRequest{}, fmt.Errorf("core: decode transaction wire: %w", err)
	}
	method, err := decodeMethodBody(MethodTag(w.Tag), w.MethodBytes)
	if err != nil {
		return TransactionRequest{}, err
	}
	var sig Signature
	if len(w.Signature) != len(sig) {
		return TransactionRequest{}, fmt.Errorf("core: invalid signature length %d", len(w.Signature))
	}
	copy(sig[:], w.Signature)

	return TransactionRequest{
		SenderPk: w.SenderPk,
		Payload: UpdatePayload{
			Sender: w.Sender,
			Nonce:  w.Nonce,
			Tag:    MethodTag(w.Tag),
			Method: method,
		},
		Signature: sig,
		SignerID:  w.SignerID,
	}, nil
}

// decodeMethodBody decodes an RLP-encoded method body according to its tag.
func decodeMethodBody(tag MethodTag, body []byte) (interface{}, error) {
	var dst interface{}
	switch tag {
	case MethodDeposit:
		dst = new(DepositMethod)
	case MethodWithdraw:
		dst = new(WithdrawMethod)
	case MethodTransfer:
		dst = new(TransferMethod)
	case MethodStake:
		dst = new(StakeMethod)
	case MethodUnstake:
		dst = new(UnstakeMethod)
	case MethodStakeLock:
		dst = new(StakeLockMethod)
	case MethodWithdrawUnstaked:
		dst = new(WithdrawUnstakedMethod)
	case MethodChangeEpoch:
		dst = new(ChangeEpochMethod)
	case MethodSubmitDeliveryAck:
		dst = new(SubmitDeliveryAckMethod)
	case MethodSubmitReputationMeasurements:
		dst = new(SubmitReputationMeasurementsMethod)
	case MethodChangeProtocolParam:
		dst = new(ChangeProtocolParamMethod)
	case MethodOptIn:
		dst = new(OptInMethod)
	case MethodOptOut:
		dst = new(OptOutMethod)
	default:
		return nil, fmt.Errorf("core: unknown method tag %d", tag)
	}
	if err := rlp.DecodeBytes(body, dst); err != nil {
		return nil, fmt.Errorf("core: decode method body (tag %d): %w", tag, err)
	}
	return derefMethod(dst), nil
}

// derefMethod unwraps a pointer-to-method-struct back to the value type
// dispatch's type switch expects.
func derefMethod(dst interface{}) interface{} {
	switch v := dst.(type) {
	case *DepositMethod:
		return *v
	case *WithdrawMethod:
		return *v
	case *TransferMethod:
		return *v
	case *StakeMethod:
		return *v
	case *UnstakeMethod:
		return *v
	case *StakeLockMethod:
		return *v
	case *WithdrawUnstakedMethod:
		return *v
	case *ChangeEpochMethod:
		return *v
	case *SubmitDeliveryAckMethod:
		return *v
	case *SubmitReputationMeasurementsMethod:
		return *v
	case *ChangeProtocolParamMethod:
		return *v
	case *OptInMethod:
		return *v
	case *OptOutMethod:
		return *v
	default:
		return dst
	}
}
