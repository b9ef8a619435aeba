package errors

import (
	"errors"
)

// Settlement error taxonomy. The HTTP layer maps each of these to a status
// code and response shape; services wrap them with context via %w.
var (
	// ErrInsufficientBalance means the requested withdrawal exceeds the
	// player's virtual balance. Raised before any record or chain action.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrLedgerLookup means the player ledger entry could not be read.
	ErrLedgerLookup = errors.New("ledger lookup failed")

	// ErrLedgerWrite means a ledger or transaction-log write failed. When
	// raised before the transfer step no chain action was taken.
	ErrLedgerWrite = errors.New("ledger write failed")

	// ErrChainSubmission means the transfer could not be built, signed, or
	// broadcast. Nothing reached the chain; safe to retry.
	ErrChainSubmission = errors.New("chain submission failed")

	// ErrChainExecution means the transaction was mined but aborted with a
	// non-success VM status. The hash is known and no funds moved.
	ErrChainExecution = errors.New("chain execution failed")

	// ErrConfirmationTimeout means the transfer was submitted but its
	// outcome could not be observed within the confirmation window. Neither
	// success nor failure may be assumed.
	ErrConfirmationTimeout = errors.New("confirmation timed out")

	// ErrUnsupportedToken means the token type has no registered metadata.
	ErrUnsupportedToken = errors.New("unsupported token type")

	// ErrWithdrawalInProgress means another withdrawal holds the wallet's
	// settlement lock.
	ErrWithdrawalInProgress = errors.New("withdrawal already in progress for wallet")

	// ErrDuplicateGame means a payout with the same game id was already
	// settled. The earlier record is authoritative; no second credit.
	ErrDuplicateGame = errors.New("game already settled")

	// ErrReferralCodeNotFound means no player owns the submitted code.
	ErrReferralCodeNotFound = errors.New("referral code not found")

	// ErrSelfReferral means a player submitted their own referral code.
	ErrSelfReferral = errors.New("cannot apply own referral code")

	// ErrReferralAlreadyApplied means the player was already referred.
	ErrReferralAlreadyApplied = errors.New("referral already applied")
)
