package domain

import "errors"

// Failure classes. Probes translate the first three into an Outcome;
// only ErrStorage is allowed to reach the caller of a round.
var (
	ErrTransport             = errors.New("transport failure")
	ErrAuth                  = errors.New("authentication failed")
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrConfigurationMissing  = errors.New("configuration missing")
	ErrStorage               = errors.New("storage failure")
)
