package messagebus

import (
	"fmt"
	"sync"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
	"github.com/OpenST/mosaic-contracts-sub002/crypto"
	"github.com/OpenST/mosaic-contracts-sub002/proof"
)

// MessageBox holds one chain's view of the protocol: message records plus
// independent outbox and inbox status maps keyed by messageHash. Entries are
// never deleted; terminal statuses make them permanently inert. All
// transitions run under one lock, so no caller can observe a partially
// updated box.
type MessageBox struct {
	mu       sync.RWMutex
	messages map[types.Hash]*Message
	outbox   map[types.Hash]MessageStatus
	inbox    map[types.Hash]MessageStatus
}

// NewMessageBox creates an empty MessageBox.
func NewMessageBox() *MessageBox {
	return &MessageBox{
		messages: make(map[types.Hash]*Message),
		outbox:   make(map[types.Hash]MessageStatus),
		inbox:    make(map[types.Hash]MessageStatus),
	}
}

// Message returns the stored record for messageHash.
func (b *MessageBox) Message(messageHash types.Hash) (*Message, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.messages[messageHash]
	if !ok {
		return nil, false
	}
	return m.clone(), true
}

// OutboxStatus returns the outbox status for messageHash.
func (b *MessageBox) OutboxStatus(messageHash types.Hash) MessageStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.outbox[messageHash]
}

// InboxStatus returns the inbox status for messageHash.
func (b *MessageBox) InboxStatus(messageHash types.Hash) MessageStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.inbox[messageHash]
}

// DeclareMessage records a new outbox message in Declared status and returns
// its hash. Nonce and active-process ordering are the caller's concern (see
// ProcessRegistry); the box itself only refuses duplicate declarations.
func (b *MessageBox) DeclareMessage(m *Message) (types.Hash, error) {
	if err := m.Validate(); err != nil {
		return types.Hash{}, err
	}
	h := m.Hash()

	b.mu.Lock()
	defer b.mu.Unlock()

	if st := b.outbox[h]; st != Undeclared {
		return types.Hash{}, fmt.Errorf("%w: outbox is %s, want Undeclared", ErrInvalidTransition, st)
	}
	b.storeMessage(h, m)
	b.outbox[h] = Declared
	return h, nil
}

// ConfirmMessage mirrors a counter-chain declaration into the inbox. The
// proof must show the counter chain's outbox holds the message in Declared
// status under the committed root.
func (b *MessageBox) ConfirmMessage(m *Message, verifier proof.Verifier, root types.Hash, serializedProof []byte) (types.Hash, error) {
	if err := m.Validate(); err != nil {
		return types.Hash{}, err
	}
	h := m.Hash()

	b.mu.Lock()
	defer b.mu.Unlock()

	if st := b.inbox[h]; st != Undeclared {
		return types.Hash{}, fmt.Errorf("%w: inbox is %s, want Undeclared", ErrInvalidTransition, st)
	}
	if err := verifyCounterStatus(verifier, root, proof.OutboxOffset, h, serializedProof, Declared); err != nil {
		return types.Hash{}, err
	}
	b.storeMessage(h, m)
	b.inbox[h] = Declared
	return h, nil
}

// ProgressOutbox completes an outbox message by revealing the hash-lock
// secret.
func (b *MessageBox) ProgressOutbox(messageHash types.Hash, unlockSecret []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireSecret(messageHash, unlockSecret); err != nil {
		return err
	}
	if st := b.outbox[messageHash]; st != Declared {
		return fmt.Errorf("%w: outbox is %s, want Declared", ErrInvalidTransition, st)
	}
	b.outbox[messageHash] = Progressed
	return nil
}

// ProgressOutboxWithProof completes an outbox message with a proof that the
// counter chain's inbox already holds it in Declared or Progressed status.
func (b *MessageBox) ProgressOutboxWithProof(messageHash types.Hash, verifier proof.Verifier, root types.Hash, serializedProof []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.messages[messageHash]; !ok {
		return ErrUnknownMessage
	}
	if st := b.outbox[messageHash]; st != Declared {
		return fmt.Errorf("%w: outbox is %s, want Declared", ErrInvalidTransition, st)
	}
	if err := verifyCounterStatus(verifier, root, proof.InboxOffset, messageHash, serializedProof, Declared, Progressed); err != nil {
		return err
	}
	b.outbox[messageHash] = Progressed
	return nil
}

// ProgressInbox completes an inbox message by revealing the hash-lock secret.
func (b *MessageBox) ProgressInbox(messageHash types.Hash, unlockSecret []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireSecret(messageHash, unlockSecret); err != nil {
		return err
	}
	if st := b.inbox[messageHash]; st != Declared {
		return fmt.Errorf("%w: inbox is %s, want Declared", ErrInvalidTransition, st)
	}
	b.inbox[messageHash] = Progressed
	return nil
}

// ProgressInboxWithProof completes an inbox message with a proof that the
// counter chain's outbox holds it in Declared or Progressed status.
func (b *MessageBox) ProgressInboxWithProof(messageHash types.Hash, verifier proof.Verifier, root types.Hash, serializedProof []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.messages[messageHash]; !ok {
		return ErrUnknownMessage
	}
	if st := b.inbox[messageHash]; st != Declared {
		return fmt.Errorf("%w: inbox is %s, want Declared", ErrInvalidTransition, st)
	}
	if err := verifyCounterStatus(verifier, root, proof.OutboxOffset, messageHash, serializedProof, Declared, Progressed); err != nil {
		return err
	}
	b.inbox[messageHash] = Progressed
	return nil
}

// DeclareRevocationMessage abandons a declared outbox message. Irreversible:
// nothing moves a message back from DeclaredRevocation to Declared.
func (b *MessageBox) DeclareRevocationMessage(messageHash types.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.messages[messageHash]; !ok {
		return ErrUnknownMessage
	}
	if st := b.outbox[messageHash]; st != Declared {
		return fmt.Errorf("%w: outbox is %s, want Declared", ErrInvalidTransition, st)
	}
	b.outbox[messageHash] = DeclaredRevocation
	return nil
}

// ConfirmRevocation mirrors a counter-chain revocation declaration into the
// inbox. The proof must show the counter outbox in DeclaredRevocation.
func (b *MessageBox) ConfirmRevocation(messageHash types.Hash, verifier proof.Verifier, root types.Hash, serializedProof []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.messages[messageHash]; !ok {
		return ErrUnknownMessage
	}
	if st := b.inbox[messageHash]; st != Declared {
		return fmt.Errorf("%w: inbox is %s, want Declared", ErrInvalidTransition, st)
	}
	if err := verifyCounterStatus(verifier, root, proof.OutboxOffset, messageHash, serializedProof, DeclaredRevocation); err != nil {
		return err
	}
	b.inbox[messageHash] = DeclaredRevocation
	return nil
}

// ProgressInboxRevocation finishes the inbox side of a revocation. Terminal
// and purely local: the revocation was already confirmed with a proof.
func (b *MessageBox) ProgressInboxRevocation(messageHash types.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st := b.inbox[messageHash]; st != DeclaredRevocation {
		return fmt.Errorf("%w: inbox is %s, want DeclaredRevocation", ErrInvalidTransition, st)
	}
	b.inbox[messageHash] = Revoked
	return nil
}

// ProgressOutboxRevocation finishes the outbox side of a revocation with a
// proof that the counter chain's inbox reached Revoked.
func (b *MessageBox) ProgressOutboxRevocation(messageHash types.Hash, verifier proof.Verifier, root types.Hash, serializedProof []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st := b.outbox[messageHash]; st != DeclaredRevocation {
		return fmt.Errorf("%w: outbox is %s, want DeclaredRevocation", ErrInvalidTransition, st)
	}
	if err := verifyCounterStatus(verifier, root, proof.InboxOffset, messageHash, serializedProof, Revoked); err != nil {
		return err
	}
	b.outbox[messageHash] = Revoked
	return nil
}

// ProgressOutboxRevocationUnilateral finishes a revocation whose message the
// counter chain never confirmed. The proof must show the counter inbox slot
// still Undeclared (an absence proof) under the committed root.
func (b *MessageBox) ProgressOutboxRevocationUnilateral(messageHash types.Hash, verifier proof.Verifier, root types.Hash, serializedProof []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st := b.outbox[messageHash]; st != DeclaredRevocation {
		return fmt.Errorf("%w: outbox is %s, want DeclaredRevocation", ErrInvalidTransition, st)
	}
	if err := verifyCounterStatus(verifier, root, proof.InboxOffset, messageHash, serializedProof, Undeclared); err != nil {
		return err
	}
	b.outbox[messageHash] = Revoked
	return nil
}

// requireSecret checks the message exists and the revealed secret matches
// its hash lock.
func (b *MessageBox) requireSecret(messageHash types.Hash, unlockSecret []byte) error {
	m, ok := b.messages[messageHash]
	if !ok {
		return ErrUnknownMessage
	}
	if crypto.Keccak256Hash(unlockSecret) != m.HashLock {
		return ErrInvalidSecret
	}
	return nil
}

// storeMessage records an immutable copy; callers hold the write lock.
func (b *MessageBox) storeMessage(h types.Hash, m *Message) {
	if _, exists := b.messages[h]; !exists {
		b.messages[h] = m.clone()
	}
}

// verifyCounterStatus proves the counter chain's box status for messageHash
// and checks it against the allowed set.
func verifyCounterStatus(verifier proof.Verifier, root types.Hash, boxOffset uint8, messageHash types.Hash, serializedProof []byte, allowed ...MessageStatus) error {
	path := proof.StoragePath(boxOffset, messageHash)
	value, err := verifier.VerifyStorage(root, path, serializedProof)
	if err != nil {
		return err
	}
	status, err := DecodeStatus(value)
	if err != nil {
		return err
	}
	for _, want := range allowed {
		if status == want {
			return nil
		}
	}
	return fmt.Errorf("%w: counter side is %s", ErrCounterStatus, status)
}
