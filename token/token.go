// Package token defines the fungible-token boundary the gateways depend on
// and an in-memory ledger implementation used for escrow accounting and
// tests. Real deployments substitute adapters to the chains' native token
// contracts.
package token

import (
	"errors"
	"math/big"
	"sync"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
)

// Token errors.
var (
	ErrZeroAddress       = errors.New("token: zero address")
	ErrInvalidAmount     = errors.New("token: amount must be positive")
	ErrInsufficientFunds = errors.New("token: insufficient balance")
)

// Token is the custody surface the value chain exposes: move funds between
// accounts. TransferFrom is the pull used to escrow an initiator's funds.
type Token interface {
	Transfer(from, to types.Address, amount *big.Int) error
	TransferFrom(owner, to types.Address, amount *big.Int) error
	BalanceOf(account types.Address) *big.Int
}

// UtilityToken adds mint/burn authority for the representative token on the
// utility chain.
type UtilityToken interface {
	Token
	Mint(beneficiary types.Address, amount *big.Int) error
	Burn(holder types.Address, amount *big.Int) error
}

// Ledger is an in-memory fungible token. Thread-safe. It deliberately skips
// allowances: the protocol's TransferFrom callers are the gateways, which
// are trusted with escrow custody by construction.
type Ledger struct {
	mu       sync.Mutex
	balances map[types.Address]*big.Int
	supply   *big.Int
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[types.Address]*big.Int),
		supply:   new(big.Int),
	}
}

// Mint credits amount to beneficiary and grows total supply.
func (l *Ledger) Mint(beneficiary types.Address, amount *big.Int) error {
	if beneficiary.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(beneficiary, amount)
	l.supply.Add(l.supply, amount)
	return nil
}

// Burn debits amount from holder and shrinks total supply.
func (l *Ledger) Burn(holder types.Address, amount *big.Int) error {
	if holder.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(holder, amount); err != nil {
		return err
	}
	l.supply.Sub(l.supply, amount)
	return nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to types.Address, amount *big.Int) error {
	return l.move(from, to, amount)
}

// TransferFrom moves amount out of owner. On the in-memory ledger this is
// Transfer under another name; adapters to real tokens spend an allowance.
func (l *Ledger) TransferFrom(owner, to types.Address, amount *big.Int) error {
	return l.move(owner, to, amount)
}

// BalanceOf returns a copy of the account's balance.
func (l *Ledger) BalanceOf(account types.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// TotalSupply returns a copy of the minted supply.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.supply)
}

func (l *Ledger) move(from, to types.Address, amount *big.Int) error {
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, amount)
	return nil
}

// credit and debit assume the lock is held.
func (l *Ledger) credit(account types.Address, amount *big.Int) {
	b, ok := l.balances[account]
	if !ok {
		b = new(big.Int)
		l.balances[account] = b
	}
	b.Add(b, amount)
}

func (l *Ledger) debit(account types.Address, amount *big.Int) error {
	b, ok := l.balances[account]
	if !ok || b.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	b.Sub(b, amount)
	return nil
}
