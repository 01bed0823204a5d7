package gateway

import (
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
)

// EventType identifies the kind of protocol event.
type EventType string

// Protocol events. Names and payloads are part of the compatibility
// surface: facilitators and monitors key off them.
const (
	EventStakeIntentDeclared          EventType = "gateway.stakeIntentDeclared"
	EventStakeProgressed              EventType = "gateway.stakeProgressed"
	EventStakeIntentConfirmed         EventType = "cogateway.stakeIntentConfirmed"
	EventMintProgressed               EventType = "cogateway.mintProgressed"
	EventRedeemIntentDeclared         EventType = "cogateway.redeemIntentDeclared"
	EventRedeemIntentConfirmed        EventType = "gateway.redeemIntentConfirmed"
	EventRedeemProgressed             EventType = "cogateway.redeemProgressed"
	EventUnstakeProgressed            EventType = "gateway.unstakeProgressed"
	EventRevertStakeIntentDeclared    EventType = "gateway.revertStakeIntentDeclared"
	EventRevertStakeIntentConfirmed   EventType = "cogateway.revertStakeIntentConfirmed"
	EventRevertStakeIntentProgressed  EventType = "cogateway.revertStakeIntentProgressed"
	EventStakeReverted                EventType = "gateway.stakeReverted"
	EventRevertRedeemDeclared         EventType = "cogateway.revertRedeemDeclared"
	EventRevertRedeemIntentConfirmed  EventType = "gateway.revertRedeemIntentConfirmed"
	EventRevertRedeemIntentProgressed EventType = "gateway.revertRedeemIntentProgressed"
	EventRedeemReverted               EventType = "cogateway.redeemReverted"
)

// Event is one entry in the protocol's audit log.
type Event struct {
	Type      EventType
	Data      interface{}
	Timestamp time.Time
}

// Subscription receives events matching its type set.
type Subscription struct {
	id     uint64
	types  map[EventType]struct{}
	ch     chan Event
	feed   *Feed
	closed atomic.Bool
}

// Chan returns the subscription's receive channel.
func (s *Subscription) Chan() <-chan Event {
	return s.ch
}

// Unsubscribe detaches the subscription and closes its channel. Safe to
// call multiple times.
func (s *Subscription) Unsubscribe() {
	if s.closed.CompareAndSwap(false, true) {
		s.feed.remove(s.id)
		close(s.ch)
	}
}

// Feed is the protocol event log: an append-only history (the audit trail)
// plus live fan-out to subscribers. Thread-safe.
type Feed struct {
	mu      sync.Mutex
	history []Event
	subs    map[uint64]*Subscription
	nextID  uint64
}

// NewFeed creates an empty Feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[uint64]*Subscription)}
}

// Emit appends an event and delivers it to matching subscribers. Slow
// subscribers drop events rather than block the protocol.
func (f *Feed) Emit(t EventType, data interface{}) {
	ev := Event{Type: t, Data: data, Timestamp: time.Now()}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, ev)
	for _, s := range f.subs {
		if _, ok := s.types[t]; !ok && len(s.types) > 0 {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Subscribe registers for the given event types; no types means all events.
func (f *Feed) Subscribe(eventTypes ...EventType) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	s := &Subscription{
		id:    f.nextID,
		types: make(map[EventType]struct{}, len(eventTypes)),
		ch:    make(chan Event, 64),
		feed:  f,
	}
	for _, t := range eventTypes {
		s.types[t] = struct{}{}
	}
	f.subs[s.id] = s
	return s
}

// History returns a copy of all emitted events in order.
func (f *Feed) History() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.history))
	copy(out, f.history)
	return out
}

func (f *Feed) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
}

// Event payloads.

// StakeIntentDeclaredEvent is emitted when a stake is declared.
type StakeIntentDeclaredEvent struct {
	MessageHash types.Hash
	Staker      types.Address
	Beneficiary types.Address
	Amount      *big.Int
	Nonce       uint64
	HashLock    types.Hash
}

// StakeProgressedEvent is emitted when the stake outbox progresses.
type StakeProgressedEvent struct {
	MessageHash   types.Hash
	Staker        types.Address
	Amount        *big.Int
	ProofProgress bool
	UnlockSecret  []byte
}

// StakeIntentConfirmedEvent is emitted when the co-gateway mirrors a stake.
type StakeIntentConfirmedEvent struct {
	MessageHash types.Hash
	Staker      types.Address
	Beneficiary types.Address
	Amount      *big.Int
	Nonce       uint64
	HashLock    types.Hash
	BlockHeight uint64
}

// MintProgressedEvent is emitted when the representative token is minted.
type MintProgressedEvent struct {
	MessageHash  types.Hash
	Beneficiary  types.Address
	MintedAmount *big.Int
	RewardAmount *big.Int
	Facilitator  types.Address
}

// RedeemIntentDeclaredEvent is emitted when a redeem is declared.
type RedeemIntentDeclaredEvent struct {
	MessageHash types.Hash
	Redeemer    types.Address
	Beneficiary types.Address
	Amount      *big.Int
	Nonce       uint64
	HashLock    types.Hash
}

// RedeemIntentConfirmedEvent is emitted when the gateway mirrors a redeem.
type RedeemIntentConfirmedEvent struct {
	MessageHash types.Hash
	Redeemer    types.Address
	Beneficiary types.Address
	Amount      *big.Int
	Nonce       uint64
	HashLock    types.Hash
	BlockHeight uint64
}

// RedeemProgressedEvent is emitted when the redeem outbox progresses and
// the escrowed utility tokens burn.
type RedeemProgressedEvent struct {
	MessageHash   types.Hash
	Redeemer      types.Address
	Amount        *big.Int
	ProofProgress bool
	UnlockSecret  []byte
}

// UnstakeProgressedEvent is emitted when locked value is released.
type UnstakeProgressedEvent struct {
	MessageHash   types.Hash
	Redeemer      types.Address
	Beneficiary   types.Address
	RedeemAmount  *big.Int
	UnstakeAmount *big.Int
	RewardAmount  *big.Int
	Facilitator   types.Address
}

// RevertStakeIntentDeclaredEvent is emitted when a staker declares a revert.
type RevertStakeIntentDeclaredEvent struct {
	MessageHash types.Hash
	Staker      types.Address
	Amount      *big.Int
	Penalty     *big.Int
}

// RevertStakeIntentConfirmedEvent mirrors the revert on the utility chain.
type RevertStakeIntentConfirmedEvent struct {
	MessageHash types.Hash
	Staker      types.Address
}

// RevertStakeIntentProgressedEvent closes the utility-chain inbox side.
type RevertStakeIntentProgressedEvent struct {
	MessageHash types.Hash
	Staker      types.Address
}

// StakeRevertedEvent is emitted when the value chain completes the revert.
type StakeRevertedEvent struct {
	MessageHash types.Hash
	Staker      types.Address
	Amount      *big.Int
	Unilateral  bool
}

// RevertRedeemDeclaredEvent is emitted when a redeemer declares a revert.
type RevertRedeemDeclaredEvent struct {
	MessageHash types.Hash
	Redeemer    types.Address
	Amount      *big.Int
	Penalty     *big.Int
}

// RevertRedeemIntentConfirmedEvent mirrors the revert on the value chain.
type RevertRedeemIntentConfirmedEvent struct {
	MessageHash types.Hash
	Redeemer    types.Address
}

// RevertRedeemIntentProgressedEvent closes the value-chain inbox side.
type RevertRedeemIntentProgressedEvent struct {
	MessageHash types.Hash
	Redeemer    types.Address
}

// RedeemRevertedEvent is emitted when the utility chain completes the revert.
type RedeemRevertedEvent struct {
	MessageHash types.Hash
	Redeemer    types.Address
	Amount      *big.Int
	Unilateral  bool
}
