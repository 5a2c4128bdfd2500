package entities

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// InvitationStatus represents where an invitation is in its lifecycle
type InvitationStatus string

const (
	InvitationStatusPending   InvitationStatus = "pending"
	InvitationStatusAccepted  InvitationStatus = "accepted"
	InvitationStatusDeclined  InvitationStatus = "declined"
	InvitationStatusMissed    InvitationStatus = "missed"
	InvitationStatusCancelled InvitationStatus = "cancelled"
)

// ParseInvitationStatus converts a raw store value into a known status
func ParseInvitationStatus(raw string) (InvitationStatus, error) {
	s := InvitationStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidInvitationStatus, raw)
	}
	return s, nil
}

// IsValid checks if the status is one of the known values
func (s InvitationStatus) IsValid() bool {
	switch s {
	case InvitationStatusPending, InvitationStatusAccepted, InvitationStatusDeclined,
		InvitationStatusMissed, InvitationStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status
func (s InvitationStatus) IsTerminal() bool {
	switch s {
	case InvitationStatusAccepted, InvitationStatusDeclined, InvitationStatusMissed, InvitationStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s.
// Only pending has outgoing edges and every edge ends in a terminal status.
func (s InvitationStatus) CanTransitionTo(next InvitationStatus) bool {
	return s == InvitationStatusPending && next.IsTerminal()
}

// String returns the string representation
func (s InvitationStatus) String() string {
	return string(s)
}

// ParticipantRole is the role an invitation grants inside the meeting
type ParticipantRole string

const (
	ParticipantRoleHost        ParticipantRole = "host"
	ParticipantRoleCoHost      ParticipantRole = "co-host"
	ParticipantRoleParticipant ParticipantRole = "participant"
)

// IsValid checks if the role is valid
func (r ParticipantRole) IsValid() bool {
	switch r {
	case ParticipantRoleHost, ParticipantRoleCoHost, ParticipantRoleParticipant:
		return true
	}
	return false
}

// Invitation grants one identity access to a meeting. It is requested by a
// caller and addressed to a callee (ContactID).
type Invitation struct {
	ID        uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CallerID  uuid.UUID        `gorm:"type:uuid;not null;index" json:"caller_id"`
	ContactID uuid.UUID        `gorm:"type:uuid;not null;index" json:"contact_id"`
	ReunionID uuid.UUID        `gorm:"type:uuid;not null;index" json:"reunion_id"`
	Status    InvitationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Role      ParticipantRole  `gorm:"type:varchar(20);not null;default:'participant'" json:"role"`
	URL       string           `gorm:"type:text" json:"url"`
	RoomID    string           `gorm:"type:varchar(255)" json:"room_id"`
	Viewed    bool             `gorm:"default:false" json:"viewed"`
	Debut     *time.Time       `json:"debut,omitempty"`
	DateFin   *time.Time       `json:"date_fin,omitempty"`
	CreatedAt time.Time        `gorm:"default:now();index" json:"created_at"`
	UpdatedAt time.Time        `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for Invitation
func (Invitation) TableName() string {
	return "invitations"
}

// Validate rejects rows that must never reach coordinator logic
func (i *Invitation) Validate() error {
	if i.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidInvitation)
	}
	if i.CallerID == uuid.Nil || i.ContactID == uuid.Nil {
		return fmt.Errorf("%w: missing caller or contact", ErrInvalidInvitation)
	}
	if !i.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidInvitationStatus, i.Status)
	}
	return nil
}

// IsPending checks if the invitation still awaits an outcome
func (i *Invitation) IsPending() bool {
	return i.Status == InvitationStatusPending
}

// IsSelfAddressed reports the caller's own host record for the meeting
func (i *Invitation) IsSelfAddressed() bool {
	return i.CallerID == i.ContactID
}

// JoinTarget returns the transport room to join, falling back to the meeting id
func (i *Invitation) JoinTarget() string {
	if i.RoomID != "" {
		return i.RoomID
	}
	return i.ReunionID.String()
}

// SortNewestFirst orders invitations by creation time, most recent first.
// Equal timestamps fall back to id order so the head is deterministic.
func SortNewestFirst(invitations []Invitation) {
	sort.SliceStable(invitations, func(a, b int) bool {
		ta, tb := invitations[a].CreatedAt, invitations[b].CreatedAt
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return invitations[a].ID.String() < invitations[b].ID.String()
	})
}
