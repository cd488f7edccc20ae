package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, the resolver and the lock
// backends return these (optionally wrapped) so the service can translate them
// into domain errors.
//
// - ErrNotFound: contact does not exist in the store
// - ErrNoMatch: no contact shares an email or phone number with a submission
// - ErrConflict: concurrent writers collided and the transaction gave up
// - ErrUnavailable: store or lock backend temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrNoMatch     = errors.New("no matching contacts")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
