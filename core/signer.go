package core

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Signature is a verifiable digital signature over a canonical digest. Spec
// §1 leaves the wire encoding unspecified beyond "verifiable digital
// signature"; this core resolves it to a compact secp256k1 ECDSA signature,
// matching the key scheme the teacher's node types already carry.
type Signature [64]byte

// Signer decouples signing from key storage, grounded in original_source's
// SignerInterface (sign_raw_digest): the executor and broadcast loop only
// ever need to sign a 32-byte digest and learn their own public identity,
// never the raw secret material.
type Signer interface {
	Sign(digest Digest) (Signature, error)
	NodeId() NodeId
}

// localSigner is the in-process Signer backed by a secp256k1 private key. A
// production deployment can satisfy the same interface with an HSM-backed
// implementation without touching any caller.
type localSigner struct {
	priv *btcec.PrivateKey
	id   NodeId
}

// NewLocalSigner wraps a raw secp256k1 private key as a Signer.
func NewLocalSigner(priv *btcec.PrivateKey) Signer {
	return &localSigner{priv: priv, id: NodeIdFromPubKey(priv.PubKey())}
}

func (s *localSigner) NodeId() NodeId { return s.id }

func (s *localSigner) Sign(digest Digest) (Signature, error) {
	sig := ecdsa.SignCompact(s.priv, digest[:], true)
	// SignCompact returns a 65-byte [recovery-id || r || s] signature;
	// this core only needs the fixed-size r||s portion since the signer's
	// public key (NodeId) is already known to the verifier out of band.
	var out Signature
	if len(sig) != 65 {
		return Signature{}, fmt.Errorf("core: unexpected signature length %d", len(sig))
	}
	copy(out[:], sig[1:])
	return out, nil
}

// parseAccountPubKey parses raw compressed secp256k1 public key bytes, as
// carried on the wire by an account-sender TransactionRequest.
func parseAccountPubKey(raw []byte) (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(raw)
}

// VerifySignature checks sig against digest using the node's declared public
// key. It reconstructs the 65-byte compact form by probing each of the four
// recovery ids, since the 64-byte wire Signature omits it.
func VerifySignature(id NodeId, digest Digest, sig Signature) bool {
	pk, err := id.PubKey()
	if err != nil {
		return false
	}
	for recID := byte(0); recID < 4; recID++ {
		full := append([]byte{27 + recID}, sig[:]...)
		recovered, _, err := ecdsa.RecoverCompact(full, digest[:])
		if err != nil {
			continue
		}
		if recovered.IsEqual(pk) {
			return true
		}
	}
	return false
}
