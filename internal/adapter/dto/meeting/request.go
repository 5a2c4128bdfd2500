package meeting

import "time"

// MemberRequest is one person to invite
type MemberRequest struct {
	ContactID string `json:"contact_id" validate:"required,uuid"`
	Role      string `json:"role,omitempty" validate:"omitempty,participant_role"`
}

// CreateMeetingRequest represents the request to create a meeting
type CreateMeetingRequest struct {
	Title       string          `json:"title" validate:"required,min=1,max=255"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type,omitempty" validate:"omitempty,oneof=public private"`
	Begin       *time.Time      `json:"begin,omitempty"`
	Members     []MemberRequest `json:"members" validate:"dive"`
}

// InviteMembersRequest represents the request to invite more people
type InviteMembersRequest struct {
	Members []MemberRequest `json:"members" validate:"required,min=1,dive"`
}
