package errors

import "errors"

// Common errors
var (
	ErrInvalidInput = errors.New("invalid input")
)

// Session errors
var (
	ErrSessionNotFound  = errors.New("no call session for this identity")
	ErrSessionClosed    = errors.New("call session closed")
	ErrAlreadyObserving = errors.New("coordinator is already observing")
)

// Call errors
var (
	ErrStoreUnavailable     = errors.New("invitation store unavailable")
	ErrInvitationNotTracked = errors.New("invitation not tracked by this session")
	ErrNoCurrentInvitation  = errors.New("no invitation is ringing")
	ErrNotInCall            = errors.New("not in a call")
)

// Meeting errors
var (
	ErrReunionNotFound = errors.New("meeting not found")
	ErrNotHost         = errors.New("user is not the host")
	ErrNoMembers       = errors.New("at least one member is required")
)
