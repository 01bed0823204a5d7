package messagebus

import (
	"math/big"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
	"github.com/OpenST/mosaic-contracts-sub002/crypto"
)

// messageTypeHash domain-separates message hashing from other keccak uses.
var messageTypeHash = crypto.Keccak256(
	[]byte("Message(bytes32 intentHash,uint256 nonce,uint256 gasPrice,uint256 gasLimit,address sender,bytes32 hashLock)"),
)

// Message identifies one cross-chain intent. It is immutable once declared;
// its hash is the primary key in both boxes on both chains.
type Message struct {
	// IntentHash binds the message to its economic terms (amount,
	// beneficiary, endpoint address).
	IntentHash types.Hash

	// Nonce is the strictly increasing per-sender counter. The first
	// message of a sender carries nonce 1.
	Nonce uint64

	// GasPrice and GasLimit bound the facilitator reward paid on the
	// counter chain.
	GasPrice *big.Int
	GasLimit *big.Int

	// Sender is the initiator (staker or redeemer).
	Sender types.Address

	// HashLock is the keccak256 commitment to the initiator's secret.
	HashLock types.Hash
}

// Validate checks the message fields without touching any state.
func (m *Message) Validate() error {
	if m == nil {
		return ErrNilMessage
	}
	if m.IntentHash.IsZero() {
		return ErrZeroIntentHash
	}
	if m.Sender.IsZero() {
		return ErrZeroSender
	}
	if m.HashLock.IsZero() {
		return ErrZeroHashLock
	}
	if m.GasPrice == nil || m.GasLimit == nil {
		return ErrNilGasFields
	}
	return nil
}

// Hash derives the message's primary key: keccak256 over the type hash and
// all fields encoded as 32-byte words.
func (m *Message) Hash() types.Hash {
	var buf [7 * 32]byte
	copy(buf[0:32], messageTypeHash)
	copy(buf[32:64], m.IntentHash[:])
	putWordUint64(buf[64:96], m.Nonce)
	putWordBig(buf[96:128], m.GasPrice)
	putWordBig(buf[128:160], m.GasLimit)
	copy(buf[160+12:192], m.Sender[:])
	copy(buf[192:224], m.HashLock[:])
	return crypto.Keccak256Hash(buf[:])
}

// clone returns a deep copy so stored messages stay immutable.
func (m *Message) clone() *Message {
	c := *m
	c.GasPrice = new(big.Int).Set(m.GasPrice)
	c.GasLimit = new(big.Int).Set(m.GasLimit)
	return &c
}

// putWordUint64 right-aligns v in a 32-byte word.
func putWordUint64(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[31-i] = byte(v >> (8 * i))
	}
}

// putWordBig right-aligns the big-endian bytes of v in a 32-byte word.
func putWordBig(dst []byte, v *big.Int) {
	if v == nil {
		return
	}
	b := v.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(dst[32-len(b):], b)
}
