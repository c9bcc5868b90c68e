package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, locks and upstream clients
// return these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: row does not exist in store
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrInvalidState: stored data cannot be decoded into the expected shape
//   - ErrUnavailable: backing service temporarily unavailable
//   - ErrLocked: another delivery holds the subject lock
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrLocked       = errors.New("locked")
)
