package core

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// MethodTag discriminates an UpdatePayload's method for digest/signature
// purposes (spec §6: "method_tag"). Values are stable across versions since
// they feed into the transaction digest.
type MethodTag byte

const (
	MethodDeposit MethodTag = iota + 1
	MethodWithdraw
	MethodTransfer
	MethodStake
	MethodUnstake
	MethodStakeLock
	MethodWithdrawUnstaked
	MethodChangeEpoch
	MethodSubmitDeliveryAck
	MethodSubmitReputationMeasurements
	MethodChangeProtocolParam
	MethodOptIn
	MethodOptOut
)

// UpdatePayload is the signed body of a transaction request (spec §4.3).
type UpdatePayload struct {
	Sender AccountAddress
	Nonce  uint64
	Tag    MethodTag
	Method interface{}
}

// TransactionRequest carries a signed UpdatePayload plus the declared
// sender's public key, so the executor can verify the signature without a
// separate key-lookup round trip (spec §4.3 step 1).
type TransactionRequest struct {
	SenderPk  []byte
	Payload   UpdatePayload
	Signature Signature
	SignerID  NodeId // used when Sender is a node rather than an account (spec §4.3 "Sender: Node")
}

// Block is an ordered batch of transactions plus a parent digest (spec §4.3,
// §6).
type Block struct {
	Transactions []TransactionRequest
	ParentDigest Digest
	Digest       Digest
}

// ExecutionData is the success payload of a receipt; its shape depends on
// the method (spec §4.3 "Success(data)").
type ExecutionData map[string]interface{}

// TransactionResponse is the discriminated outcome of executing (or
// validating) a single transaction (spec §4.3.1: validate and execute must
// return identical discriminated results).
type TransactionResponse struct {
	Success *ExecutionData
	Revert  *ExecutionError
}

// Receipt is the per-transaction record appended to a BlockExecutionResponse
// (spec §6).
type Receipt struct {
	Hash     Digest
	Response TransactionResponse
	From     AccountAddress
	To       AccountAddress
}

// BlockExecutionResponse is what the executor returns for a submitted block
// (spec §6).
type BlockExecutionResponse struct {
	TxnReceipts []Receipt
	ChangeEpoch bool
}

// Executor is the deterministic transaction processor (C3). It is the sole
// writer of State; all its dependencies are passed by value at construction
// per spec §9's dependency-injection guidance.
type Executor struct {
	state *State
	log   *logrus.Logger
}

// NewExecutor constructs an Executor bound to state, logging through log.
func NewExecutor(state *State, log *logrus.Logger) *Executor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Executor{state: state, log: log}
}

// Execute applies block to state and returns the resulting receipts. Either
// every receipt's effects are committed, or (on a fatal, non-deterministic
// failure before commit) none are: there is no partially-applied block.
func (ex *Executor) Execute(block Block) (BlockExecutionResponse, error) {
	b := ex.state.Begin()
	resp := BlockExecutionResponse{TxnReceipts: make([]Receipt, 0, len(block.Transactions))}

	for _, tx := range block.Transactions {
		receipt, changeEpoch, err := ex.applyOne(b, tx)
		if err != nil {
			b.Discard()
			return BlockExecutionResponse{}, fatalf("core: apply transaction: %w", err)
		}
		if changeEpoch {
			resp.ChangeEpoch = true
		}
		resp.TxnReceipts = append(resp.TxnReceipts, receipt)
	}

	b.t.Metadata.LastBlockDigest = block.Digest
	b.Commit()
	return resp, nil
}

// applyOne runs the four execution steps of spec §4.3 for a single
// transaction against the open batch b.
func (ex *Executor) applyOne(b *WriteBatch, tx TransactionRequest) (Receipt, bool, error) {
	digest, err := TransactionDigest(tx.SenderPk, tx.Payload.Nonce, tx.Payload.Tag, tx.Payload.Method)
	if err != nil {
		return Receipt{}, false, fmt.Errorf("digest: %w", err)
	}

	if _, already := b.t.ExecutedDigests[digest]; already {
		return Receipt{Hash: digest, Response: TransactionResponse{Revert: revert(RevertInvalidNonce, "digest already executed")}}, false, nil
	}

	verified, signerNode := verifyTxSignature(tx, digest)
	if !verified {
		return Receipt{Hash: digest, Response: TransactionResponse{Revert: revert(RevertInvalidNonce, "signature verification failed")}}, false, nil
	}

	from := tx.Payload.Sender
	var currentNonce uint64
	isNodeSender := signerNode != nil
	if isNodeSender {
		node, ok := b.t.Nodes[*signerNode]
		if !ok {
			return Receipt{Hash: digest, Response: TransactionResponse{Revert: revert(RevertNodeDoesNotExist, "%s", signerNode)}}, false, nil
		}
		currentNonce = node.Nonce
	} else {
		acct := b.t.Accounts[from]
		currentNonce = acct.Nonce
	}

	if tx.Payload.Nonce != currentNonce+1 {
		return Receipt{Hash: digest, Response: TransactionResponse{Revert: revert(RevertInvalidNonce, "want %d got %d", currentNonce+1, tx.Payload.Nonce)}}, false, nil
	}

	// Step 3: nonce is incremented whether or not the method reverts.
	if isNodeSender {
		node := b.t.Nodes[*signerNode]
		node.Nonce++
		b.t.Nodes[*signerNode] = node
	} else {
		acct := loadAccount(b, from)
		acct.Nonce++
		b.t.Accounts[from] = acct
	}
	b.t.ExecutedDigests[digest] = struct{}{}

	data, changeEpoch, xerr := ex.dispatch(b, tx, signerNode)
	resp := TransactionResponse{}
	if xerr != nil {
		resp.Revert = xerr
	} else {
		resp.Success = &data
	}

	to := AccountAddress{}
	if v, ok := data["to"]; ok {
		if addr, ok := v.(AccountAddress); ok {
			to = addr
		}
	}
	return Receipt{Hash: digest, Response: resp, From: from, To: to}, changeEpoch, nil
}

// verifyTxSignature checks the declared signer's signature over digest and
// returns the node identity when the sender is a node (method dispatch
// needs to know which table to load the nonce/record from).
func verifyTxSignature(tx TransactionRequest, digest Digest) (bool, *NodeId) {
	if tx.SignerID != (NodeId{}) {
		ok := VerifySignature(tx.SignerID, digest, tx.Signature)
		if !ok {
			return false, nil
		}
		id := tx.SignerID
		return true, &id
	}
	pk, err := parseAccountPubKey(tx.SenderPk)
	if err != nil {
		return false, nil
	}
	expected := AccountAddressFromPubKey(pk)
	if expected != tx.Payload.Sender {
		return false, nil
	}
	nodeID := NodeIdFromPubKey(pk)
	return VerifySignature(nodeID, digest, tx.Signature), nil
}
