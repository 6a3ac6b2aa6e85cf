package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and adapters return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: record does not exist in the store
//   - ErrConflict: write collided with an existing record
//   - ErrInvalidState: record is in the wrong state for the requested change
//   - ErrUnavailable: backing service temporarily unavailable
//   - ErrAlreadyUsed: one-shot resource (submit lock, draft) already consumed
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrAlreadyUsed  = errors.New("already used")
)
