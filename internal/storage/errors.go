package storage

import "errors"

// ErrStorageIO is a non-recoverable write failure.
var ErrStorageIO = errors.New("storage: io error")

// ErrNotFound is returned when a requested team/member/orchestrator record
// doesn't exist.
var ErrNotFound = errors.New("storage: not found")
