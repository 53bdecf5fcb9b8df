// Package core implements the application state machine, consensus bridge and
// attestation protocol described for a Lightning edge-compute node. The
// single-threaded gossip broadcast loop lives in the core/broadcast
// subpackage; everything else is kept flat, matching the teacher's layout.
package core

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Digest is a blake3 content digest used for transactions, parcels, blocks
// and the broadcast layer's message identifiers.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool { return d == Digest{} }

// NodeId is a node's consensus/network identity: the compressed secp256k1
// public key bytes that back its signatures.
type NodeId [33]byte

func (n NodeId) String() string { return hex.EncodeToString(n[:]) }

// PubKey parses the embedded bytes as a secp256k1 public key.
func (n NodeId) PubKey() (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(n[:])
}

// NodeIdFromPubKey encodes a public key's compressed form as a NodeId.
func NodeIdFromPubKey(pk *btcec.PublicKey) NodeId {
	var id NodeId
	copy(id[:], pk.SerializeCompressed())
	return id
}

// NodeIndex is a dense, permanently-assigned index handed out the first time
// a NodeId is staked. It is never reused even after a node withdraws.
type NodeIndex uint32

func (n NodeIndex) String() string { return fmt.Sprintf("%d", uint32(n)) }

// AccountAddress is a 20-byte address derived from an account public key
// (the low 20 bytes of its blake3 digest, following the teacher's
// address-from-pubkey convention in common_structs.go).
type AccountAddress [20]byte

func (a AccountAddress) String() string { return hex.EncodeToString(a[:]) }

// IsZero reports whether a is the zero address.
func (a AccountAddress) IsZero() bool { return a == AccountAddress{} }

// AccountAddressFromPubKey derives the canonical account address for a
// secp256k1 public key.
func AccountAddressFromPubKey(pk *btcec.PublicKey) AccountAddress {
	d := Blake3Sum(pk.SerializeCompressed())
	var addr AccountAddress
	copy(addr[:], d[12:])
	return addr
}

// Epoch is a monotonically increasing epoch counter.
type Epoch uint64

// ServiceId identifies a registered commodity-serving service.
type ServiceId uint32

// Participation is a node's eligibility flag for the next epoch's committee
// selection and reward distribution.
type Participation bool

const (
	ParticipationTrue  Participation = true
	ParticipationFalse Participation = false
)

// parseNodeId is a small helper that validates and normalizes raw key bytes
// into a NodeId.
func parseNodeId(raw []byte) (NodeId, error) {
	if len(raw) != 33 {
		return NodeId{}, fmt.Errorf("core: node id must be 33 bytes, got %d", len(raw))
	}
	var id NodeId
	copy(id[:], raw)
	if _, err := id.PubKey(); err != nil {
		return NodeId{}, fmt.Errorf("core: invalid node public key: %w", err)
	}
	return id, nil
}
