package core

import "errors"

var (
	// ErrFallbackToSequential reports that a parallel batch exhausted
	// its retry budget and was redone on the sequential path. It never
	// escapes Process; it exists for logging and metrics.
	ErrFallbackToSequential = errors.New("fallback to sequential processor")

	// ErrNonceTooLow is a per-transaction failure, deterministic in
	// the batch position and prior state.
	ErrNonceTooLow = errors.New("nonce too low")

	// ErrNonceTooHigh is a per-transaction failure.
	ErrNonceTooHigh = errors.New("nonce too high")

	// ErrInsufficientFunds is a per-transaction failure: the sender
	// cannot cover gas limit times gas price plus value.
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")

	// ErrIntrinsicGas is a per-transaction failure: the gas limit is
	// below the intrinsic cost of the payload.
	ErrIntrinsicGas = errors.New("intrinsic gas too low")

	// ErrGasLimitReached aborts the whole batch when cumulative gas
	// exceeds the block gas limit.
	ErrGasLimitReached = errors.New("gas limit reached")

	// ErrGasUintOverflow is a per-transaction failure from intrinsic
	// gas computation.
	ErrGasUintOverflow = errors.New("gas uint64 overflow")

	// ErrInvariantViolation reports scheduler or memory state that
	// must not occur; it aborts the batch instead of committing a
	// wrong result.
	ErrInvariantViolation = errors.New("parallel execution invariant violated")
)
