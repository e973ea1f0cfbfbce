// Package persistence stores verification requests and their results.
package persistence

import (
	"context"
	"errors"
	"time"

	"honestlens/types"
)

// ErrResultExists is returned when a second result is saved for one request.
var ErrResultExists = errors.New("verification result already exists")

// Store is the persistence contract the lifecycle manager depends on. Lookups of unknown
// ids return types.ErrNotFound.
type Store interface {
	SaveRequest(ctx context.Context, req *types.VerificationRequest) error
	// UpdateRequestState moves a request to state, rejecting transitions the state
	// machine does not allow with types.ErrInvalidTransition.
	UpdateRequestState(ctx context.Context, id string, state types.State, at time.Time) error
	SaveResult(ctx context.Context, res *types.VerificationResult) error
	// Complete saves res and moves its request from processing to completed as one
	// write. On error neither change is visible.
	Complete(ctx context.Context, res *types.VerificationResult, at time.Time) error
	// FindCompletedByDedupKey returns the most recently completed request for key.
	FindCompletedByDedupKey(ctx context.Context, key string) (*types.VerificationRequest, error)
	GetRequest(ctx context.Context, id string) (*types.VerificationRequest, error)
	GetResult(ctx context.Context, requestID string) (*types.VerificationResult, error)
}
