package sync

import (
	"context"
	"time"
)

// SyncEngineInterface defines the interface for sync engine operations.
// This interface allows for mocking in tests and alternative implementations.
type SyncEngineInterface interface {
	// Drain delivers queued uploads once. It never returns an error.
	Drain(ctx context.Context) DrainResult

	// SetEventHandler sets the event handler for sync notifications.
	SetEventHandler(handler SyncEventHandler)

	// Status returns the current sync status.
	Status() SyncStatus

	// LastSync returns when the last drain finished, or nil.
	LastSync() *time.Time

	// LastResult returns the last drain result, or nil.
	LastResult() *DrainResult

	// PendingChanges returns the number of queued uploads.
	PendingChanges(ctx context.Context) (int, error)
}

var _ SyncEngineInterface = (*SyncEngine)(nil)
