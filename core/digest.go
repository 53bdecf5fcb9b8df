package core

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"
)

// Blake3Sum returns the 32-byte blake3 digest of b.
func Blake3Sum(b ...[]byte) Digest {
	h := blake3.New(32, nil)
	for _, part := range b {
		h.Write(part) //nolint:errcheck // hash.Hash.Write never errors
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// canonicalMethodBody RLP-encodes a method payload deterministically. RLP
// gives a single canonical byte representation for any Go struct made of
// fixed-width integers, byte slices and nested structs/slices, which is
// exactly the "canonical(method_body)" spec §6 requires without mandating a
// specific wire format.
func canonicalMethodBody(method interface{}) ([]byte, error) {
	return rlp.EncodeToBytes(method)
}

// TransactionDigest computes H(sender_pk_bytes || u64_le(nonce) || method_tag
// || canonical(method_body)) per spec §6.
func TransactionDigest(senderPk []byte, nonce uint64, methodTag MethodTag, method interface{}) (Digest, error) {
	body, err := canonicalMethodBody(method)
	if err != nil {
		return Digest{}, err
	}
	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], nonce)
	return Blake3Sum(senderPk, nonceBuf[:], []byte{byte(methodTag)}, body), nil
}

// ParcelDigest computes H(u32_le(tx_count) || batch_digest || last_executed)
// per spec §4.6.
func ParcelDigest(txCount uint32, batchDigest Digest, lastExecuted Digest) Digest {
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], txCount)
	return Blake3Sum(countBuf[:], batchDigest[:], lastExecuted[:])
}
