package core

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ConsensusCertificate carries the epoch tag a batch of transactions was
// ordered under (spec §4.5).
type ConsensusCertificate struct {
	Epoch   Epoch
	Batches [][]byte // RLP wire form from EncodeTransactionRequest; each decodes to a TransactionRequest
}

// ConsensusOutput is what the consensus engine hands to the bridge for each
// round (spec §4.5).
type ConsensusOutput struct {
	Certificates []ConsensusCertificate
}

// ArchiveSink receives a best-effort clone of every assembled block. A send
// failure is logged, never fatal (spec §4.5 step 4).
type ArchiveSink interface {
	Archive(correlationID uuid.UUID, block Block) error
}

// ReconfigureNotifier is signalled whenever the executor flags
// change_epoch=true, so the consensus engine can reinitialize committee
// membership for the new epoch (spec §4.5 step 5).
type ReconfigureNotifier interface {
	ReconfigureNotify(newEpoch Epoch)
}

// ConsensusBridge wires ConsensusOutput batches into the executor (C5).
type ConsensusBridge struct {
	executor *Executor
	query    *QueryRunner
	archive  ArchiveSink // optional
	notify   ReconfigureNotifier
	log      *logrus.Logger
}

// NewConsensusBridge constructs a ConsensusBridge. archive may be nil (no
// local archive sink configured).
func NewConsensusBridge(executor *Executor, query *QueryRunner, archive ArchiveSink, notify ReconfigureNotifier, log *logrus.Logger) *ConsensusBridge {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ConsensusBridge{executor: executor, query: query, archive: archive, notify: notify, log: log}
}

// HandleConsensusOutput runs spec §4.5's per-certificate pipeline: epoch-tag
// filtering, batch decode/dedup, block assembly, archival and submission.
func (cb *ConsensusBridge) HandleConsensusOutput(out ConsensusOutput) error {
	for _, cert := range out.Certificates {
		if err := cb.handleCertificate(cert); err != nil {
			return err
		}
	}
	return nil
}

func (cb *ConsensusBridge) handleCertificate(cert ConsensusCertificate) error {
	epochInfo := cb.query.CurrentEpoch()
	if cert.Epoch != epochInfo.Epoch {
		cb.log.WithFields(logrus.Fields{"cert_epoch": cert.Epoch, "current_epoch": epochInfo.Epoch}).
			Debug("core: dropping straggler certificate at epoch boundary")
		return nil
	}

	txs := cb.decodeBatches(cert.Batches)
	if len(txs) == 0 {
		return nil
	}

	lastExecuted := cb.currentLastBlockDigest()
	parcel := AuthenticStampedParcel{Transactions: txs, LastExecuted: lastExecuted, Epoch: cert.Epoch}
	block := Block{
		Transactions: txs,
		ParentDigest: lastExecuted,
		Digest:       parcel.ToDigest(),
	}

	if cb.archive != nil {
		if err := cb.archive.Archive(uuid.New(), block); err != nil {
			cb.log.WithError(err).Warn("core: archive sink forward failed")
		}
	}

	resp, err := cb.executor.Execute(block)
	if err != nil {
		return err
	}
	if resp.ChangeEpoch && cb.notify != nil {
		cb.notify.ReconfigureNotify(cb.query.CurrentEpoch().Epoch)
	}
	return nil
}

// decodeBatches decodes each batch's transactions, dropping undecodable
// entries and any whose digest is already in executed_digests (spec §4.5
// step 2).
func (cb *ConsensusBridge) decodeBatches(batches [][]byte) []TransactionRequest {
	snap := cb.executor.state.Snapshot()
	out := make([]TransactionRequest, 0, len(batches))
	for _, raw := range batches {
		tx, err := DecodeTransactionRequest(raw)
		if err != nil {
			cb.log.WithError(err).Debug("core: dropping undecodable transaction batch entry")
			continue
		}
		digest, err := TransactionDigest(tx.SenderPk, tx.Payload.Nonce, tx.Payload.Tag, tx.Payload.Method)
		if err != nil {
			continue
		}
		if _, already := snap.t.ExecutedDigests[digest]; already {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func (cb *ConsensusBridge) currentLastBlockDigest() Digest {
	return cb.executor.state.Snapshot().t.Metadata.LastBlockDigest
}
