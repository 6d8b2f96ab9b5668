package ptybackend

import "errors"

// Sentinel errors for the Session Backend contract.
var (
	ErrAlreadyExists = errors.New("ptybackend: session already exists")
	ErrNoSuchSession = errors.New("ptybackend: no such session")
	ErrSpawnFailed   = errors.New("ptybackend: spawn failed")
	ErrWriteFailed   = errors.New("ptybackend: write failed")
)
