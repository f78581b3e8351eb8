package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a set or session does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a malformed manifest entry or item.
// It is fatal to session creation and nothing is persisted.
type ValidationError struct {
	Index  int    // Position of the offending entry, -1 if not applicable
	Field  string // Offending field
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid entry %d: %s: %s", e.Index, e.Field, e.Reason)
}

// ProviderError reports an inventory provider failure other than not-found.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// SyncError reports a remote notification that could not be applied.
// It is logged and dropped; local state stays last-known-good.
type SyncError struct {
	ItemID int64
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync item %d: %v", e.ItemID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// PersistenceError reports a failed call to the persistence gateway.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
