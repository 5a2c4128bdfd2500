package entities

import "errors"

// Domain errors
var (
	// Not found errors
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrReunionNotFound    = errors.New("reunion not found")
	ErrProfileNotFound    = errors.New("profile not found")

	// Invitation errors
	ErrInvalidInvitation       = errors.New("invalid invitation")
	ErrInvalidInvitationStatus = errors.New("invalid invitation status")
	ErrInvalidTransition       = errors.New("invalid invitation status transition")

	// Meeting errors
	ErrInvalidTitle = errors.New("invalid title")
)
