// Package anchor tracks the counter chain's committed storage roots. Each
// gateway consumes an anchored root when verifying proofs of the counter
// side's message box.
package anchor

import (
	"errors"
	"sync"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
)

// Anchor errors.
var (
	ErrZeroRoot   = errors.New("anchor: storage root must not be zero")
	ErrStaleBlock = errors.New("anchor: block height not increasing")
)

// StateRootProvider supplies the counter chain's committed storage root for
// a block height. The second return is false when no root is committed at
// that height; callers must treat that as a hard proof failure.
type StateRootProvider interface {
	StorageRoot(height uint64) (types.Hash, bool)
	LatestHeight() uint64
}

// Anchor records storage roots committed by the counter chain's anchoring
// process. Heights must be anchored in strictly increasing order. Thread-safe.
type Anchor struct {
	mu       sync.RWMutex
	roots    map[uint64]types.Hash
	latest   uint64
	anchored bool
}

// New creates an empty Anchor.
func New() *Anchor {
	return &Anchor{roots: make(map[uint64]types.Hash)}
}

// AnchorStateRoot records the counter chain's storage root at height.
// The height must be strictly greater than the latest anchored height.
func (a *Anchor) AnchorStateRoot(height uint64, root types.Hash) error {
	if root.IsZero() {
		return ErrZeroRoot
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.anchored && height <= a.latest {
		return ErrStaleBlock
	}
	a.roots[height] = root
	a.latest = height
	a.anchored = true
	return nil
}

// StorageRoot returns the root anchored at height, if any.
func (a *Anchor) StorageRoot(height uint64) (types.Hash, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	root, ok := a.roots[height]
	return root, ok
}

// LatestHeight returns the highest anchored counter-chain height.
func (a *Anchor) LatestHeight() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}
