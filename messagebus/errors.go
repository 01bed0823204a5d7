package messagebus

import "errors"

// Message bus errors, grouped by taxonomy. Every guard runs before any
// mutation; a returned error means no state changed.
var (
	// Validation.
	ErrNilMessage     = errors.New("messagebus: message must not be nil")
	ErrZeroIntentHash = errors.New("messagebus: intent hash must not be zero")
	ErrZeroSender     = errors.New("messagebus: sender must not be zero")
	ErrZeroHashLock   = errors.New("messagebus: hash lock must not be zero")
	ErrNilGasFields   = errors.New("messagebus: gas price and gas limit must not be nil")
	ErrUnknownMessage = errors.New("messagebus: message hash not found")
	ErrInvalidSecret  = errors.New("messagebus: unlock secret does not match hash lock")

	// State-machine violation.
	ErrInvalidTransition = errors.New("messagebus: invalid status for requested transition")

	// Proof failure.
	ErrCounterStatus = errors.New("messagebus: counter-side status does not permit transition")
	ErrStatusValue   = errors.New("messagebus: proven slot value is not a message status")

	// Nonce/ordering failure.
	ErrInvalidNonce  = errors.New("messagebus: nonce must be exactly one greater than the sender's last")
	ErrProcessActive = errors.New("messagebus: previous process for sender not yet completed")
)
