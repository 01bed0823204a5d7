package crypto

import "github.com/OpenST/mosaic-contracts-sub002/core/types"

// NewHashLock commits to a secret. The resulting lock is published with the
// declared message; the secret stays with the initiator until reveal.
func NewHashLock(secret []byte) types.Hash {
	return Keccak256Hash(secret)
}

// VerifyHashLock reports whether the revealed secret opens the lock.
func VerifyHashLock(lock types.Hash, secret []byte) bool {
	return Keccak256Hash(secret) == lock
}
