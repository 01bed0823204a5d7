// Package messagebus implements the cross-chain message state machine. Each
// chain keeps one MessageBox with two independent status namespaces: the
// outbox for locally declared intents and the inbox for intents confirmed
// from the counter chain. The two sides never share state; they reconcile
// only through Merkle proofs of each other's box or through the reveal of a
// hash-lock secret.
package messagebus

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// MessageStatus is the lifecycle state of a message in one box.
type MessageStatus uint8

// Message lifecycle states. Progressed and Revoked are terminal.
const (
	Undeclared MessageStatus = iota
	Declared
	Progressed
	DeclaredRevocation
	Revoked
)

// String implements fmt.Stringer.
func (s MessageStatus) String() string {
	switch s {
	case Undeclared:
		return "Undeclared"
	case Declared:
		return "Declared"
	case Progressed:
		return "Progressed"
	case DeclaredRevocation:
		return "DeclaredRevocation"
	case Revoked:
		return "Revoked"
	default:
		return fmt.Sprintf("MessageStatus(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition can leave this status.
func (s MessageStatus) Terminal() bool {
	return s == Progressed || s == Revoked
}

// EncodeStatus returns the RLP form a message box stores in its storage
// slot. This is the value Merkle proofs of the counter chain resolve to.
func EncodeStatus(s MessageStatus) []byte {
	enc, err := rlp.EncodeToBytes(uint64(s))
	if err != nil {
		// uint64 encoding cannot fail.
		panic(err)
	}
	return enc
}

// DecodeStatus parses a proven storage slot value. An empty value is a valid
// absence proof and decodes to Undeclared.
func DecodeStatus(value []byte) (MessageStatus, error) {
	if len(value) == 0 {
		return Undeclared, nil
	}
	var v uint64
	if err := rlp.DecodeBytes(value, &v); err != nil {
		return Undeclared, fmt.Errorf("%w: %v", ErrStatusValue, err)
	}
	if v > uint64(Revoked) {
		return Undeclared, fmt.Errorf("%w: unknown status %d", ErrStatusValue, v)
	}
	return MessageStatus(v), nil
}
