package gateway

import (
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
)

// Deterministic work-unit costs standing in for host gas metering: a
// confirmation costs a base amount plus a per-proof-byte amount, and each
// progression adds a base amount. The reward stays capped by
// gasPrice × gasLimit regardless.
const (
	ConfirmBaseGas  = 50_000
	GasPerProofByte = 16
	ProgressBaseGas = 21_000
)

// WorkMeter accumulates deterministic work units per message hash. The
// facilitator reward paid on progress is derived from the accumulated total.
type WorkMeter struct {
	mu       sync.Mutex
	consumed map[types.Hash]uint64
}

// NewWorkMeter creates an empty WorkMeter.
func NewWorkMeter() *WorkMeter {
	return &WorkMeter{consumed: make(map[types.Hash]uint64)}
}

// RecordConfirm charges the confirmation cost for a message.
func (w *WorkMeter) RecordConfirm(messageHash types.Hash, proofLen int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.consumed[messageHash] += ConfirmBaseGas + GasPerProofByte*uint64(proofLen)
}

// RecordProgress charges the progression cost and returns the accumulated
// work units for the message.
func (w *WorkMeter) RecordProgress(messageHash types.Hash) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.consumed[messageHash] += ProgressBaseGas
	return w.consumed[messageHash]
}

// Consumed returns the work units accumulated so far.
func (w *WorkMeter) Consumed(messageHash types.Hash) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.consumed[messageHash]
}

// FacilitatorReward computes min(gasPrice × gasConsumed, gasPrice × gasLimit)
// with overflow-checked 256-bit arithmetic.
func FacilitatorReward(gasPrice, gasLimit *big.Int, gasConsumed uint64) (*big.Int, error) {
	price, overflow := uint256.FromBig(gasPrice)
	if overflow {
		return nil, ErrGasOverflow
	}
	limit, overflow := uint256.FromBig(gasLimit)
	if overflow {
		return nil, ErrGasOverflow
	}

	capped := new(uint256.Int)
	if _, overflow := capped.MulOverflow(price, limit); overflow {
		return nil, ErrGasOverflow
	}

	spent := new(uint256.Int)
	if _, overflow := spent.MulOverflow(price, uint256.NewInt(gasConsumed)); overflow {
		// Consumed-side overflow can only exceed the cap; pay the cap.
		return capped.ToBig(), nil
	}
	if spent.Cmp(capped) > 0 {
		return capped.ToBig(), nil
	}
	return spent.ToBig(), nil
}

// checkRewardBounded rejects declares whose worst-case reward could consume
// the whole principal: gasPrice × gasLimit must be strictly below amount.
func checkRewardBounded(gasPrice, gasLimit, amount *big.Int) error {
	price, overflow := uint256.FromBig(gasPrice)
	if overflow {
		return ErrGasOverflow
	}
	limit, overflow := uint256.FromBig(gasLimit)
	if overflow {
		return ErrGasOverflow
	}
	capped := new(uint256.Int)
	if _, overflow := capped.MulOverflow(price, limit); overflow {
		return ErrRewardExceedsAmount
	}
	amt, overflow := uint256.FromBig(amount)
	if overflow {
		// Amount beyond 256 bits cannot be escrowed anyway.
		return ErrGasOverflow
	}
	if capped.Cmp(amt) >= 0 {
		return ErrRewardExceedsAmount
	}
	return nil
}
