package gateway

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/OpenST/mosaic-contracts-sub002/anchor"
	"github.com/OpenST/mosaic-contracts-sub002/core/types"
	"github.com/OpenST/mosaic-contracts-sub002/log"
	"github.com/OpenST/mosaic-contracts-sub002/messagebus"
	"github.com/OpenST/mosaic-contracts-sub002/metrics"
	"github.com/OpenST/mosaic-contracts-sub002/proof"
	"github.com/OpenST/mosaic-contracts-sub002/token"
)

// endpoint is the state shared by Gateway and CoGateway: the message box,
// per-direction process trackers, anchored counter-chain roots, and the
// economic bookkeeping (bounties, penalties, wait windows) keyed by message
// hash. The concrete endpoints hold their own mutex; endpoint methods assume
// it is held.
type endpoint struct {
	cfg     Config
	address types.Address
	remote  types.Address
	burner  types.Address

	box        *messagebus.MessageBox
	outTracker *messagebus.ProcessRegistry
	inTracker  *messagebus.ProcessRegistry
	roots      anchor.StateRootProvider
	verifier   proof.Verifier

	// Economic bookkeeping per message hash. Entries for a hash are removed
	// once its flow reaches a terminal status; message-box entries persist.
	bounties   map[types.Hash]*big.Int
	penalties  map[types.Hash]*big.Int
	declaredAt map[types.Hash]uint64
	revertedAt map[types.Hash]uint64

	meter   *WorkMeter
	events  *Feed
	logger  *log.Logger
	metrics *metrics.Registry
}

func newEndpoint(cfg Config, address types.Address, roots anchor.StateRootProvider, verifier proof.Verifier, logger *log.Logger, module string) (*endpoint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if address.IsZero() {
		return nil, errors.New("gateway: endpoint address must not be zero")
	}
	if roots == nil || verifier == nil {
		return nil, errors.New("gateway: state root provider and proof verifier are required")
	}
	if logger == nil {
		logger = log.Default()
	}

	box := messagebus.NewMessageBox()
	return &endpoint{
		cfg:        cfg,
		address:    address,
		remote:     cfg.RemoteGatewayAddress(),
		burner:     cfg.BurnerAddress(),
		box:        box,
		outTracker: messagebus.NewProcessRegistry(box, messagebus.Outbound),
		inTracker:  messagebus.NewProcessRegistry(box, messagebus.Inbound),
		roots:      roots,
		verifier:   verifier,
		bounties:   make(map[types.Hash]*big.Int),
		penalties:  make(map[types.Hash]*big.Int),
		declaredAt: make(map[types.Hash]uint64),
		revertedAt: make(map[types.Hash]uint64),
		meter:      NewWorkMeter(),
		events:     NewFeed(),
		logger:     logger.Module(module),
		metrics:    metrics.DefaultRegistry,
	}, nil
}

// Address returns the endpoint's own custody address.
func (e *endpoint) Address() types.Address { return e.address }

// Remote returns the counterpart endpoint's address on the other chain.
func (e *endpoint) Remote() types.Address { return e.remote }

// Events returns the endpoint's event feed.
func (e *endpoint) Events() *Feed { return e.events }

// MessageBox exposes the endpoint's message box for status inspection.
func (e *endpoint) MessageBox() *messagebus.MessageBox { return e.box }

// NextNonce returns the nonce the account's next outbound message must carry.
func (e *endpoint) NextNonce(account types.Address) uint64 {
	return e.outTracker.NextNonce(account)
}

// storageRootAt resolves the counter chain's committed storage root at the
// given block height.
func (e *endpoint) storageRootAt(height uint64) (types.Hash, error) {
	root, ok := e.roots.StorageRoot(height)
	if !ok {
		return types.Hash{}, fmt.Errorf("%w: height %d", ErrRootAbsent, height)
	}
	return root, nil
}

// requireSender returns the stored message and checks the caller is its
// original sender.
func (e *endpoint) requireSender(messageHash types.Hash, caller types.Address) (*messagebus.Message, error) {
	m, ok := e.box.Message(messageHash)
	if !ok {
		return nil, messagebus.ErrUnknownMessage
	}
	if m.Sender != caller {
		return nil, ErrNotMessageSender
	}
	return m, nil
}

// checkRevertWindow requires the counter chain to have advanced WaitBlocks
// past since.
func (e *endpoint) checkRevertWindow(since uint64) error {
	if e.roots.LatestHeight() < since+e.cfg.WaitBlocks {
		return fmt.Errorf("%w: need height >= %d, latest %d", ErrRevertWindow, since+e.cfg.WaitBlocks, e.roots.LatestHeight())
	}
	return nil
}

// checkUnilateralWindow requires blockHeight to lie WaitBlocks past the
// revert declaration before an absence proof may close the flow.
func (e *endpoint) checkUnilateralWindow(messageHash types.Hash, blockHeight uint64) error {
	reverted, ok := e.revertedAt[messageHash]
	if !ok {
		return messagebus.ErrUnknownMessage
	}
	if blockHeight < reverted+e.cfg.WaitBlocks {
		return fmt.Errorf("%w: need height >= %d, got %d", ErrRevertWindow, reverted+e.cfg.WaitBlocks, blockHeight)
	}
	return nil
}

// checkFunds verifies the account can cover a settlement payout. Settlement
// runs after the message box transitions, so every paying balance must be
// checked before the transition.
func checkFunds(tok token.Token, account types.Address, need *big.Int) error {
	if need == nil || need.Sign() <= 0 {
		return nil
	}
	if tok.BalanceOf(account).Cmp(need) < 0 {
		return ErrInsufficientEscrow
	}
	return nil
}

// pay moves settlement funds and surfaces a ledger fault in the log instead
// of dropping it.
func (e *endpoint) pay(tok token.Token, from, to types.Address, amount *big.Int, messageHash types.Hash) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	if err := tok.Transfer(from, to, amount); err != nil {
		e.logger.Error("settlement transfer failed", "messageHash", messageHash.Hex(), "from", from.Hex(), "to", to.Hex(), "amount", amount.String(), "err", err)
	}
}

// clearEconomics drops the per-hash economic bookkeeping once a flow
// terminates.
func (e *endpoint) clearEconomics(messageHash types.Hash) {
	delete(e.bounties, messageHash)
	delete(e.penalties, messageHash)
	delete(e.declaredAt, messageHash)
	delete(e.revertedAt, messageHash)
}
