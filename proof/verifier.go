// Package proof provides Merkle-Patricia storage proof verification for
// cross-chain message confirmation. The protocol core depends only on the
// Verifier interface; MerkleVerifier is the production adapter backed by
// go-ethereum's trie proof verification, and MockVerifier serves tests.
package proof

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	ethtrie "github.com/ethereum/go-ethereum/trie"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
	"github.com/OpenST/mosaic-contracts-sub002/crypto"
)

// Proof verification errors.
var (
	ErrProofEmpty     = errors.New("proof: RLP parent nodes must not be zero")
	ErrProofMalformed = errors.New("proof: serialized proof is not an RLP node list")
	ErrProofInvalid   = errors.New("proof: Merkle proof verification failed")
	ErrRootZero       = errors.New("proof: storage root must not be zero")
)

// Verifier checks that a storage path holds a value under a committed root.
// A nil returned value with a nil error is a valid absence proof: the path
// provably holds nothing under the root.
type Verifier interface {
	VerifyStorage(root types.Hash, path []byte, serializedProof []byte) ([]byte, error)
}

// MerkleVerifier verifies Merkle-Patricia storage proofs. Proofs travel as
// an RLP-encoded list of trie nodes from root to leaf.
type MerkleVerifier struct{}

// NewMerkleVerifier creates a MerkleVerifier.
func NewMerkleVerifier() *MerkleVerifier {
	return &MerkleVerifier{}
}

// VerifyStorage decodes the serialized node list, indexes the nodes by their
// Keccak-256 hash, and walks the trie from root to the requested path.
func (v *MerkleVerifier) VerifyStorage(root types.Hash, path []byte, serializedProof []byte) ([]byte, error) {
	if root.IsZero() {
		return nil, ErrRootZero
	}
	if len(serializedProof) == 0 {
		return nil, ErrProofEmpty
	}

	var nodes [][]byte
	if err := rlp.DecodeBytes(serializedProof, &nodes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofMalformed, err)
	}
	if len(nodes) == 0 {
		return nil, ErrProofEmpty
	}

	db := memorydb.New()
	for _, n := range nodes {
		if err := db.Put(crypto.Keccak256(n), n); err != nil {
			return nil, fmt.Errorf("proof: indexing node: %w", err)
		}
	}

	value, err := ethtrie.VerifyProof(common.Hash(root), path, db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofInvalid, err)
	}
	return value, nil
}

// SerializeNodes encodes a list of trie nodes into the wire form accepted by
// VerifyStorage. Facilitators use this when relaying proofs.
func SerializeNodes(nodes [][]byte) ([]byte, error) {
	if len(nodes) == 0 {
		return nil, ErrProofEmpty
	}
	return rlp.EncodeToBytes(nodes)
}
