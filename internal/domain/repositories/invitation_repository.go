package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
)

// UpdateResult is the outcome of a conditional status write
type UpdateResult int

const (
	// UpdateApplied means the row was pending and now holds the new status
	UpdateApplied UpdateResult = iota
	// UpdateStale means another writer resolved the invitation first
	UpdateStale
	// UpdateNotFound means the invitation no longer exists
	UpdateNotFound
)

func (r UpdateResult) String() string {
	switch r {
	case UpdateApplied:
		return "applied"
	case UpdateStale:
		return "stale"
	case UpdateNotFound:
		return "not_found"
	}
	return "unknown"
}

// Extra carries the non-status fields written together with a transition
type Extra struct {
	Debut  *time.Time
	Viewed *bool
}

// Filter selects the invitations a subscription or query observes
type Filter struct {
	CallerID  *uuid.UUID
	ContactID *uuid.UUID
	Statuses  []entities.InvitationStatus
}

// Matches reports whether inv belongs to the filtered set
func (f Filter) Matches(inv *entities.Invitation) bool {
	if f.CallerID != nil && inv.CallerID != *f.CallerID {
		return false
	}
	if f.ContactID != nil && inv.ContactID != *f.ContactID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if inv.Status == s {
			return true
		}
	}
	return false
}

// Snapshot is the complete matching set at one point in time.
// A non-nil Err means the set could not be read and Invitations is empty.
type Snapshot struct {
	Invitations []entities.Invitation
	Err         error
}

// InvitationRepository defines the interface for invitation data access
type InvitationRepository interface {
	// Find returns every invitation matching the filter
	Find(ctx context.Context, filter Filter) ([]entities.Invitation, error)

	// GetByID retrieves an invitation by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Invitation, error)

	// UpdateStatus moves a pending invitation to status. The write only applies
	// while the row is still pending; an error is returned for transient failures only.
	UpdateStatus(ctx context.Context, id uuid.UUID, status entities.InvitationStatus, extra Extra) (UpdateResult, error)

	// Create inserts a new invitation
	Create(ctx context.Context, invitation *entities.Invitation) error

	// ListByReunion retrieves every invitation of a meeting
	ListByReunion(ctx context.Context, reunionID uuid.UUID) ([]entities.Invitation, error)

	// CountActiveByReunion counts pending or accepted invitations, ignoring the given contact
	CountActiveByReunion(ctx context.Context, reunionID, excludeContactID uuid.UUID) (int64, error)

	// ResetForReunion puts every invitation of a meeting back to pending with a new room
	ResetForReunion(ctx context.Context, reunionID uuid.UUID, roomID, url string) error

	// MarkEnded records when the callee left the call
	MarkEnded(ctx context.Context, id uuid.UUID, at time.Time) error
}

// InvitationStore is the repository plus a live change feed
type InvitationStore interface {
	InvitationRepository

	// Subscribe emits the full matching set once immediately and again after
	// every change. The channel is closed when ctx is done.
	Subscribe(ctx context.Context, filter Filter) (<-chan Snapshot, error)
}
