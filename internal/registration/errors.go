package registration

import "errors"

// Sentinel errors for the Agent Registration Engine.
var (
	ErrRuntimeNotReady    = errors.New("registration: runtime not ready")
	ErrRegistrationTimedOut = errors.New("registration: escalation budget exhausted")
	ErrAborted            = errors.New("registration: aborted")
	ErrConfigMissing      = errors.New("registration: config missing")
)
