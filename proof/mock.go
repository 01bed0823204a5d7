package proof

import (
	"sync"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
)

// MockVerifier is a Verifier for tests. Stubbed (root, path) pairs return
// their configured value; everything else fails with ErrProofInvalid, or
// with the forced error if one is set.
type MockVerifier struct {
	mu      sync.Mutex
	results map[string][]byte
	forced  error
}

// NewMockVerifier creates an empty MockVerifier.
func NewMockVerifier() *MockVerifier {
	return &MockVerifier{results: make(map[string][]byte)}
}

// Stub registers the value returned for a (root, path) pair. A nil value
// stubs a valid absence proof.
func (m *MockVerifier) Stub(root types.Hash, path []byte, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[mockKey(root, path)] = value
}

// FailWith forces every verification to return err until reset with nil.
func (m *MockVerifier) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced = err
}

// VerifyStorage implements Verifier.
func (m *MockVerifier) VerifyStorage(root types.Hash, path []byte, serializedProof []byte) ([]byte, error) {
	if root.IsZero() {
		return nil, ErrRootZero
	}
	if len(serializedProof) == 0 {
		return nil, ErrProofEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return nil, m.forced
	}
	value, ok := m.results[mockKey(root, path)]
	if !ok {
		return nil, ErrProofInvalid
	}
	return value, nil
}

func mockKey(root types.Hash, path []byte) string {
	return root.Hex() + "/" + string(path)
}
