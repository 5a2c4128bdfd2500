package meeting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
)

// Service defines the interface for meeting use case
type Service interface {
	// CreateMeeting creates a meeting, its room and every invitation
	CreateMeeting(ctx context.Context, input CreateMeetingInput) (*CreateMeetingOutput, error)

	// GetMeeting retrieves a meeting by ID
	GetMeeting(ctx context.Context, reunionID uuid.UUID) (*entities.Reunion, error)

	// InviteMembers adds pending invitations to an existing meeting
	InviteMembers(ctx context.Context, input InviteMembersInput) ([]entities.Invitation, error)

	// Reprogram gives a meeting a fresh room and rings everyone again
	Reprogram(ctx context.Context, reunionID, actorID uuid.UUID) (*entities.Reunion, error)

	// Clone starts a new meeting owned by creatorID and invites the same people again
	Clone(ctx context.Context, reunionID, creatorID uuid.UUID) (*CreateMeetingOutput, error)

	// Duration reports how long a meeting and each participant lasted
	Duration(ctx context.Context, reunionID uuid.UUID) (*DurationOutput, error)
}

// Ensure MeetingService implements Service interface
var _ Service = (*MeetingService)(nil)

// MemberInput is one person to invite
type MemberInput struct {
	ContactID uuid.UUID
	Role      entities.ParticipantRole
}

// CreateMeetingInput represents input for creating a meeting
type CreateMeetingInput struct {
	Title       string
	Description string
	CreatorID   uuid.UUID
	Type        entities.ReunionType
	Begin       *time.Time
	Members     []MemberInput
}

// CreateMeetingOutput is the created meeting and its invitations, host record first
type CreateMeetingOutput struct {
	Reunion     *entities.Reunion
	Invitations []entities.Invitation
}

// InviteMembersInput represents input for inviting more people
type InviteMembersInput struct {
	ReunionID uuid.UUID
	CallerID  uuid.UUID
	Members   []MemberInput
}

// ParticipantStay is how long one invitee stayed in the call
type ParticipantStay struct {
	ContactID uuid.UUID
	Label     string
	Status    entities.InvitationStatus
	Minutes   *int
	Formatted string
}

// DurationOutput summarises a meeting's durations
type DurationOutput struct {
	ReunionID    uuid.UUID
	Info         entities.DurationInfo
	Meeting      string
	Average      string
	Participants []ParticipantStay
}
