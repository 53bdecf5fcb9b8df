package core

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// testKeypair bundles everything a test needs to act as either an account
// sender or a node sender.
type testKeypair struct {
	priv *btcec.PrivateKey
	pub  []byte // compressed
	addr AccountAddress
	node NodeId
}

func newTestKeypair(t interface{ Fatalf(string, ...interface{}) }) testKeypair {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub := priv.PubKey()
	return testKeypair{
		priv: priv,
		pub:  pub.SerializeCompressed(),
		addr: AccountAddressFromPubKey(pub),
		node: NodeIdFromPubKey(pub),
	}
}

// buildAccountTx signs method as an account-sender transaction at nonce.
func buildAccountTx(t interface{ Fatalf(string, ...interface{}) }, kp testKeypair, nonce uint64, tag MethodTag, method interface{}) TransactionRequest {
	digest, err := TransactionDigest(kp.pub, nonce, tag, method)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	sig, err := NewLocalSigner(kp.priv).Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return TransactionRequest{
		SenderPk:  kp.pub,
		Payload:   UpdatePayload{Sender: kp.addr, Nonce: nonce, Tag: tag, Method: method},
		Signature: sig,
	}
}

// buildNodeTx signs method as a node-sender (consensus key) transaction.
func buildNodeTx(t interface{ Fatalf(string, ...interface{}) }, kp testKeypair, nonce uint64, tag MethodTag, method interface{}) TransactionRequest {
	digest, err := TransactionDigest(kp.pub, nonce, tag, method)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	sig, err := NewLocalSigner(kp.priv).Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return TransactionRequest{
		SenderPk:  kp.pub,
		Payload:   UpdatePayload{Sender: kp.addr, Nonce: nonce, Tag: tag, Method: method},
		Signature: sig,
		SignerID:  kp.node,
	}
}

// blockOf wraps txs into a Block with a freshly derived digest, the way
// consensus_bridge.go assembles one from an attested parcel.
func blockOf(parent Digest, txs ...TransactionRequest) Block {
	parcel := AuthenticStampedParcel{Transactions: txs, LastExecuted: parent, Epoch: 0}
	return Block{Transactions: txs, ParentDigest: parent, Digest: parcel.ToDigest()}
}

// newGenesisState builds a minimal in-memory genesis with n seed committee
// nodes, each staked at 1000 FLK against a 100 FLK minimum, returning the
// state and their keypairs in committee order.
func newGenesisState(t interface{ Fatalf(string, ...interface{}) }, n int) (*State, []testKeypair) {
	kps := make([]testKeypair, n)
	nodeInfos := make([]GenesisNode, n)
	for i := 0; i < n; i++ {
		kps[i] = newTestKeypair(t)
		nodeInfos[i] = GenesisNode{
			Owner:       kps[i].addr,
			ConsensusPk: kps[i].node,
			WorkerPk:    kps[i].node,
			Domain:      fmt.Sprintf("node%d.example.com", i),
			Ports:       []uint16{4000},
			Staked:      "1000",
		}
	}
	govKp := newTestKeypair(t)
	doc := GenesisDoc{
		EpochStartMs:           0,
		EpochTimeMs:            3_600_000,
		CommitteeSize:          uint32(n),
		MaxInflationBps:        500,
		ProtocolShareBps:       1000,
		NodeShareBps:           7000,
		ServiceBuilderShareBps: 2000,
		MaxBoost:               2,
		SupplyAtGenesis:        "1000000",
		GovernanceAddress:      govKp.addr,
		ProtocolFundAddress:    govKp.addr,
		LockTimeEpochs:         1,
		MinimumStake:           "100",
		NodeInfo:               nodeInfos,
	}
	state, err := LoadGenesisInMemory(doc)
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	return state, kps
}
