package gateway

import "errors"

// Gateway errors, grouped by taxonomy. Guards run before any mutation; a
// returned error means no funds moved and no status changed.
var (
	// Validation.
	ErrInvalidAmount   = errors.New("gateway: amount must be positive")
	ErrZeroBeneficiary = errors.New("gateway: beneficiary must not be zero")
	ErrZeroCaller      = errors.New("gateway: caller must not be zero")
	ErrUnknownRequest  = errors.New("gateway: no pending request for message hash")

	// Proof failure.
	ErrRootAbsent = errors.New("gateway: no storage root committed at block height")

	// Economic guard failure.
	ErrRewardExceedsAmount = errors.New("gateway: facilitator reward must be strictly less than the amount")
	ErrGasOverflow         = errors.New("gateway: gas arithmetic overflow")
	ErrInsufficientEscrow  = errors.New("gateway: escrow cannot cover the settlement")

	// Authorization failure.
	ErrNotMessageSender = errors.New("gateway: caller is not the message sender")
	ErrRestrictedStaker = errors.New("gateway: staking is restricted to the configured account")

	// Ordering failure.
	ErrRevertWindow = errors.New("gateway: counter chain has not advanced past the wait window")
)
