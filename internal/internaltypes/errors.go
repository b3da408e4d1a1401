package internaltypes

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")

	// ErrAlreadyTransitioned is returned when a status update finds the draft
	// no longer pending; another run got there first.
	ErrAlreadyTransitioned = errors.New("draft already transitioned")

	// ErrNoCredential means the tenant has no stored platform credential.
	ErrNoCredential = errors.New("no platform credential for tenant")
)
