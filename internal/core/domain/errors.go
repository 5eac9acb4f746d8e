package domain

import "errors"

// ErrDuplicateTransaction is returned by transaction repositories when a
// unique-key constraint rejects an insert. Services catch it explicitly
// instead of inspecting driver error codes.
var ErrDuplicateTransaction = errors.New("duplicate transaction uuid")

// ErrVersionConflict is returned by ledger repositories when an optimistic
// version check fails; the caller re-reads and retries.
var ErrVersionConflict = errors.New("ledger version conflict")
