package proof

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	ethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
)

// buildProof constructs a trie from the given entries and returns its root
// together with a serialized proof for key.
func buildProof(t *testing.T, entries map[string][]byte, key []byte) (types.Hash, []byte) {
	t.Helper()

	db := triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil)
	tr := ethtrie.NewEmpty(db)
	for k, v := range entries {
		tr.MustUpdate([]byte(k), v)
	}
	root := tr.Hash()

	proofDb := memorydb.New()
	if err := tr.Prove(key, proofDb); err != nil {
		t.Fatalf("Prove: %v", err)
	}
	it := proofDb.NewIterator(nil, nil)
	var nodes [][]byte
	for it.Next() {
		nodes = append(nodes, common.CopyBytes(it.Value()))
	}
	it.Release()

	serialized, err := SerializeNodes(nodes)
	if err != nil {
		t.Fatalf("SerializeNodes: %v", err)
	}
	return types.BytesToHash(root.Bytes()), serialized
}

func TestVerifyStorageInclusion(t *testing.T) {
	msgHash := types.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	path := StoragePath(OutboxOffset, msgHash)
	value := []byte{0x01}

	entries := map[string][]byte{
		string(path):   value,
		"other-key-a":  {0x02},
		"other-key-bb": {0x03},
	}
	root, serialized := buildProof(t, entries, path)

	got, err := NewMerkleVerifier().VerifyStorage(root, path, serialized)
	if err != nil {
		t.Fatalf("VerifyStorage: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("value: got %x, want %x", got, value)
	}
}

func TestVerifyStorageAbsence(t *testing.T) {
	msgHash := types.HexToHash("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	absent := StoragePath(InboxOffset, msgHash)

	entries := map[string][]byte{
		"some-key":    {0x01},
		"another-key": {0x02},
	}
	root, serialized := buildProof(t, entries, absent)

	got, err := NewMerkleVerifier().VerifyStorage(root, absent, serialized)
	if err != nil {
		t.Fatalf("absence proof should verify: %v", err)
	}
	if got != nil {
		t.Errorf("absence proof should yield nil value, got %x", got)
	}
}

func TestVerifyStorageWrongRoot(t *testing.T) {
	msgHash := types.HexToHash("0xcccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc")
	path := StoragePath(OutboxOffset, msgHash)
	entries := map[string][]byte{string(path): {0x01}}
	_, serialized := buildProof(t, entries, path)

	badRoot := types.HexToHash("0xdddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd")
	if _, err := NewMerkleVerifier().VerifyStorage(badRoot, path, serialized); !errors.Is(err, ErrProofInvalid) {
		t.Errorf("expected ErrProofInvalid, got %v", err)
	}
}

func TestVerifyStorageEmptyProof(t *testing.T) {
	root := types.HexToHash("0x01")
	if _, err := NewMerkleVerifier().VerifyStorage(root, []byte("k"), nil); !errors.Is(err, ErrProofEmpty) {
		t.Errorf("expected ErrProofEmpty, got %v", err)
	}
}

func TestVerifyStorageZeroRoot(t *testing.T) {
	if _, err := NewMerkleVerifier().VerifyStorage(types.Hash{}, []byte("k"), []byte{0x01}); !errors.Is(err, ErrRootZero) {
		t.Errorf("expected ErrRootZero, got %v", err)
	}
}

func TestVerifyStorageMalformedProof(t *testing.T) {
	root := types.HexToHash("0x01")
	// 0xc2 announces a 2-byte list payload that is missing.
	if _, err := NewMerkleVerifier().VerifyStorage(root, []byte("k"), []byte{0xc2}); !errors.Is(err, ErrProofMalformed) {
		t.Errorf("expected ErrProofMalformed, got %v", err)
	}
}

func TestStoragePathDistinctBoxes(t *testing.T) {
	msgHash := types.HexToHash("0xee")
	outPath := StoragePath(OutboxOffset, msgHash)
	inPath := StoragePath(InboxOffset, msgHash)
	if bytes.Equal(outPath, inPath) {
		t.Error("outbox and inbox paths must differ")
	}
	if len(outPath) != 32 {
		t.Errorf("path length: got %d, want 32", len(outPath))
	}
	if !bytes.Equal(outPath, StoragePath(OutboxOffset, msgHash)) {
		t.Error("path derivation must be deterministic")
	}
}

func TestMockVerifier(t *testing.T) {
	m := NewMockVerifier()
	root := types.HexToHash("0x10")
	path := []byte("path")

	if _, err := m.VerifyStorage(root, path, []byte{0x01}); !errors.Is(err, ErrProofInvalid) {
		t.Errorf("unstubbed pair should fail with ErrProofInvalid, got %v", err)
	}

	m.Stub(root, path, []byte{0x02})
	got, err := m.VerifyStorage(root, path, []byte{0x01})
	if err != nil || !bytes.Equal(got, []byte{0x02}) {
		t.Errorf("stubbed value: got %x, %v", got, err)
	}

	forced := errors.New("boom")
	m.FailWith(forced)
	if _, err := m.VerifyStorage(root, path, []byte{0x01}); !errors.Is(err, forced) {
		t.Errorf("expected forced error, got %v", err)
	}
}
