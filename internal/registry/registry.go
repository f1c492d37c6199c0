// Package registry maps provider call identifiers to internal call records
// and owns call lifecycle transitions.
package registry

import (
	"context"
	"errors"

	"call-translation-service/internal/models"
)

// Errors returned by registry implementations.
var (
	// ErrNotFound means no call record exists for the given identifier.
	// Stray and test webhooks hit this path; callers discard the event.
	ErrNotFound = errors.New("registry: call not found")

	// ErrTerminal means the call already reached a terminal state and can no
	// longer be mutated.
	ErrTerminal = errors.New("registry: call is in a terminal state")
)

// Route is the per-call configuration resolved for every hot-path event.
type Route struct {
	CallID      string
	TenantID    string
	Modulations models.Modulations
}

// Store persists call records. The hot pipeline only reads (Resolve); writes
// happen on lifecycle events and call provisioning.
type Store interface {
	// CreateCall inserts a new call record.
	CreateCall(ctx context.Context, call *models.Call) error

	// Resolve returns the route for a provider call ID, or ErrNotFound.
	Resolve(ctx context.Context, providerCallID string) (Route, error)

	// GetCall returns the call record by internal ID, or ErrNotFound.
	GetCall(ctx context.Context, callID string) (models.Call, error)

	// UpdateStatus applies a lifecycle transition by provider call ID and
	// returns the updated record. Transitions that would move the status
	// backwards are ignored (at-least-once webhook delivery); transitions on
	// a terminal call return ErrTerminal. A non-empty recordingURL is stored
	// on the record.
	UpdateStatus(ctx context.Context, providerCallID string, status models.CallStatus, recordingURL string) (models.Call, error)
}

// statusRank orders lifecycle states so that late or duplicated lifecycle
// webhooks can never regress a call.
func statusRank(s models.CallStatus) int {
	switch s {
	case models.StatusInitiated:
		return 0
	case models.StatusAnswered:
		return 1
	case models.StatusInProgress:
		return 2
	case models.StatusCompleted, models.StatusFailed:
		return 3
	default:
		return -1
	}
}
