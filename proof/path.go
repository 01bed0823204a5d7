package proof

import (
	"github.com/OpenST/mosaic-contracts-sub002/core/types"
	"github.com/OpenST/mosaic-contracts-sub002/crypto"
)

// Message box slot indices inside the counter chain's gateway storage. The
// outbox and inbox are independent namespaces, so their slots differ.
const (
	OutboxOffset uint8 = 1
	InboxOffset  uint8 = 4
)

// StoragePath derives the Merkle-Patricia key under which the counter
// chain's message box records the status of messageHash. It mirrors
// mapping-slot addressing: slot = keccak256(messageHash ++ uint256(offset)),
// and the trie keys slots by their hash, so path = keccak256(slot).
func StoragePath(boxOffset uint8, messageHash types.Hash) []byte {
	var index [32]byte
	index[31] = boxOffset
	slot := crypto.Keccak256(messageHash.Bytes(), index[:])
	return crypto.Keccak256(slot)
}
