package wallet

import "errors"

var (
	// ErrWalletNotFound indicates no wallet exists for the identifier.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInvalidAmount indicates a non-positive amount or one with more than
	// two fraction digits.
	ErrInvalidAmount = errors.New("amount must be positive with at most two decimal places")

	// ErrInsufficientFunds occurs when the effective balance cannot cover a
	// debit or hold and the wallet is not allowed to go negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletFrozen indicates a debit or hold was attempted on a frozen
	// wallet. Credits and refunds still succeed on frozen wallets.
	ErrWalletFrozen = errors.New("wallet frozen")

	// ErrHoldNotFound indicates the referenced hold does not exist.
	ErrHoldNotFound = errors.New("hold not found")

	// ErrHoldNotActive indicates a capture or release on a hold already in a
	// terminal state.
	ErrHoldNotActive = errors.New("hold not active")

	// ErrTopupNotFound indicates the referenced topup does not exist.
	ErrTopupNotFound = errors.New("topup not found")

	// ErrTopupNotPending indicates a confirm or fail on a topup whose terminal
	// state conflicts with the requested outcome.
	ErrTopupNotPending = errors.New("topup not pending")

	// ErrChargeNotFound indicates a refund referenced a charge that produced
	// no debit entry on the wallet.
	ErrChargeNotFound = errors.New("original charge not found")

	// ErrRefundExceedsOriginal indicates the cumulative refunded amount would
	// overdraw the original charge.
	ErrRefundExceedsOriginal = errors.New("refund exceeds original charge")

	// ErrIdempotencyConflict indicates an idempotency key was reused with a
	// different amount or reference than the original request.
	ErrIdempotencyConflict = errors.New("idempotency key reused with different payload")
)
