package call

import "time"

// InvitationResponse is one invitation as the UI sees it
type InvitationResponse struct {
	ID        string     `json:"id"`
	CallerID  string     `json:"caller_id"`
	ContactID string     `json:"contact_id"`
	ReunionID string     `json:"reunion_id"`
	Status    string     `json:"status"`
	Role      string     `json:"role"`
	URL       string     `json:"url"`
	RoomID    string     `json:"room_id"`
	Viewed    bool       `json:"viewed"`
	Debut     *time.Time `json:"debut,omitempty"`
	DateFin   *time.Time `json:"date_fin,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// PartyResponse is the other side of a call
type PartyResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Email string `json:"email,omitempty"`
}

// JoinTicketResponse carries what the client needs to connect to the media server
type JoinTicketResponse struct {
	URL       string    `json:"url"`
	Room      string    `json:"room"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ActiveCallResponse is the call the user is in
type ActiveCallResponse struct {
	Invitation *InvitationResponse `json:"invitation"`
	Ticket     *JoinTicketResponse `json:"ticket,omitempty"`
}

// IncomingResponse represents GET /calls/incoming
type IncomingResponse struct {
	State        string              `json:"state"`
	Current      *InvitationResponse `json:"current,omitempty"`
	Caller       *PartyResponse      `json:"caller,omitempty"`
	RingDeadline *time.Time          `json:"ring_deadline,omitempty"`
	PendingCount int                 `json:"pending_count"`
	Active       *ActiveCallResponse `json:"active,omitempty"`
}

// OutgoingCallResponse is one invitation the user sent
type OutgoingCallResponse struct {
	Invitation   *InvitationResponse `json:"invitation"`
	Callee       *PartyResponse      `json:"callee"`
	MeetingTitle string              `json:"meeting_title"`
	Deadline     *time.Time          `json:"deadline,omitempty"`
}

// OutgoingResponse represents GET /calls/outgoing
type OutgoingResponse struct {
	Calls []*OutgoingCallResponse `json:"calls"`
}

// ActionResponse is the result of accept, decline and cancel.
// A stale outcome means someone else resolved the invitation first.
type ActionResponse struct {
	Outcome      string            `json:"outcome"`
	InvitationID string            `json:"invitation_id,omitempty"`
	Incoming     *IncomingResponse `json:"incoming,omitempty"`
}

// SessionResponse represents POST /sessions
type SessionResponse struct {
	Identity string            `json:"identity"`
	Incoming *IncomingResponse `json:"incoming"`
	Outgoing *OutgoingResponse `json:"outgoing"`
}

// NotificationResponse is one durable advisory record
type NotificationResponse struct {
	ID           string                 `json:"id"`
	Kind         string                 `json:"kind"`
	CallerID     string                 `json:"caller_id"`
	ReunionID    string                 `json:"reunion_id"`
	InvitationID string                 `json:"invitation_id"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Read         bool                   `json:"read"`
	CreatedAt    time.Time              `json:"created_at"`
}
