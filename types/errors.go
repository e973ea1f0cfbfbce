package types

import "errors"

var (
	// ErrCollectorTimeout and ErrCollectorFailure never leave the orchestrator; they
	// mark a collector that produced no signal.
	ErrCollectorTimeout = errors.New("collector timed out")
	ErrCollectorFailure = errors.New("collector failed")

	// ErrNoSignal is returned by a collector that ran cleanly but had nothing to score.
	ErrNoSignal = errors.New("no signal")

	ErrOrchestratorFailure = errors.New("signal collection failed")
	ErrDegradedFailure     = errors.New("degraded verification failed")
	ErrVerificationFailed  = errors.New("verification failed")

	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("verification request not found")
	ErrInvalidTransition = errors.New("invalid state transition")
)
