package meeting

import (
	"time"

	"github.com/johnquangdev/meeting-calls/internal/adapter/dto/call"
)

// MeetingResponse represents a meeting in API responses
type MeetingResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	CreatorID   string     `json:"creator_id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	RoomID      string     `json:"room_id"`
	RoomURL     string     `json:"room_url"`
	Begin       *time.Time `json:"begin,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateMeetingResponse is the new meeting with its invitations, host first
type CreateMeetingResponse struct {
	Meeting     *MeetingResponse           `json:"meeting"`
	Invitations []*call.InvitationResponse `json:"invitations"`
}

// InviteMembersResponse lists the invitations that were created
type InviteMembersResponse struct {
	Invitations []*call.InvitationResponse `json:"invitations"`
}

// ParticipantDurationResponse is how long one invitee stayed
type ParticipantDurationResponse struct {
	ContactID string `json:"contact_id"`
	Label     string `json:"label"`
	Status    string `json:"status"`
	Minutes   *int   `json:"minutes"`
	Formatted string `json:"formatted"`
}

// DurationResponse represents GET /meetings/:id/duration
type DurationResponse struct {
	ReunionID          string                         `json:"reunion_id"`
	MeetingMinutes     *int                           `json:"meeting_minutes"`
	ParticipantMinutes *int                           `json:"participant_minutes"`
	Meeting            string                         `json:"meeting"`
	Average            string                         `json:"average"`
	Participants       []*ParticipantDurationResponse `json:"participants"`
}
