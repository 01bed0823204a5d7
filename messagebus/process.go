package messagebus

import (
	"sync"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
)

// Direction selects which box a ProcessRegistry serializes: Outbound guards
// locally declared messages, Inbound guards confirmed mirrors.
type Direction uint8

const (
	Outbound Direction = iota
	Inbound
)

// ProcessRegistry enforces the one-active-process-per-account invariant for
// one direction of a MessageBox: an account may not declare (or confirm) a
// new message while its previous one is non-terminal, and nonces must grow
// by exactly one. This is what serializes nonce consumption per sender.
type ProcessRegistry struct {
	mu        sync.Mutex
	box       *MessageBox
	direction Direction
	processes map[types.Address]types.Hash
}

// NewProcessRegistry creates a registry bound to one box direction.
func NewProcessRegistry(box *MessageBox, direction Direction) *ProcessRegistry {
	return &ProcessRegistry{
		box:       box,
		direction: direction,
		processes: make(map[types.Address]types.Hash),
	}
}

// ActiveProcess returns the account's most recent message hash, if any.
func (r *ProcessRegistry) ActiveProcess(account types.Address) (types.Hash, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.processes[account]
	return h, ok
}

// NextNonce returns the nonce the account's next message must carry. The
// first message of an account carries nonce 1.
func (r *ProcessRegistry) NextNonce(account types.Address) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextNonceLocked(account)
}

// CanRegister checks Register's guards without claiming the slot. Callers
// that must keep guards ahead of any mutation (the gateways) check first,
// mutate their own state, then Register.
func (r *ProcessRegistry) CanRegister(account types.Address, nonce uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkLocked(account, nonce)
}

// Register claims the account's process slot for messageHash. It fails when
// the previous message is still in flight or the nonce is out of sequence.
func (r *ProcessRegistry) Register(account types.Address, nonce uint64, messageHash types.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkLocked(account, nonce); err != nil {
		return err
	}
	r.processes[account] = messageHash
	return nil
}

func (r *ProcessRegistry) checkLocked(account types.Address, nonce uint64) error {
	if prev, ok := r.processes[account]; ok {
		if st := r.status(prev); !st.Terminal() {
			return ErrProcessActive
		}
	}
	if nonce != r.nextNonceLocked(account) {
		return ErrInvalidNonce
	}
	return nil
}

func (r *ProcessRegistry) nextNonceLocked(account types.Address) uint64 {
	prev, ok := r.processes[account]
	if !ok {
		return 1
	}
	m, ok := r.box.Message(prev)
	if !ok {
		return 1
	}
	return m.Nonce + 1
}

func (r *ProcessRegistry) status(messageHash types.Hash) MessageStatus {
	if r.direction == Outbound {
		return r.box.OutboxStatus(messageHash)
	}
	return r.box.InboxStatus(messageHash)
}
