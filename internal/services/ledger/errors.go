package ledger

import "errors"

// Service errors
var (
	// Terminal: surfaced to the caller with no side effects.
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("invalid amount")

	// Retryable: the conditional balance update lost a race against a
	// concurrent spender. Retry with a fresh snapshot.
	ErrConcurrentModification = errors.New("wallet modified concurrently")

	// Retryable with backoff: the store call itself failed. A failure
	// inside the write set rolled the whole unit back.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Not retryable: the debit committed but post-commit verification
	// found a mismatch. The discrepancy has been recorded for manual
	// repair; the caller should re-check balance and entitlement state
	// instead of retrying.
	ErrInconsistentResult = errors.New("inconsistent result after commit")
)
