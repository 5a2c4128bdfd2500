package presenter

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-calls/internal/adapter/dto/call"
	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/external/livekit"
	"github.com/johnquangdev/meeting-calls/internal/usecase/calls"
)

// ToInvitationResponse converts an Invitation entity to InvitationResponse DTO
func ToInvitationResponse(inv *entities.Invitation) *call.InvitationResponse {
	if inv == nil {
		return nil
	}
	return &call.InvitationResponse{
		ID:        inv.ID.String(),
		CallerID:  inv.CallerID.String(),
		ContactID: inv.ContactID.String(),
		ReunionID: inv.ReunionID.String(),
		Status:    string(inv.Status),
		Role:      string(inv.Role),
		URL:       inv.URL,
		RoomID:    inv.RoomID,
		Viewed:    inv.Viewed,
		Debut:     inv.Debut,
		DateFin:   inv.DateFin,
		CreatedAt: inv.CreatedAt,
	}
}

// ToInvitationList converts invitations keeping their order
func ToInvitationList(invitations []entities.Invitation) []*call.InvitationResponse {
	out := make([]*call.InvitationResponse, len(invitations))
	for i := range invitations {
		out[i] = ToInvitationResponse(&invitations[i])
	}
	return out
}

// ToPartyResponse converts resolved display info
func ToPartyResponse(info *entities.DisplayInfo) *call.PartyResponse {
	if info == nil {
		return nil
	}
	return &call.PartyResponse{
		ID:    info.ID.String(),
		Label: info.Label,
		Email: info.Email,
	}
}

// ToJoinTicketResponse converts a media server join ticket
func ToJoinTicketResponse(t *livekit.JoinTicket) *call.JoinTicketResponse {
	if t == nil {
		return nil
	}
	return &call.JoinTicketResponse{
		URL:       t.URL,
		Room:      t.Room,
		Token:     t.Token,
		ExpiresAt: t.ExpiresAt,
	}
}

// ToIncomingResponse converts the incoming side view
func ToIncomingResponse(v calls.IncomingView) *call.IncomingResponse {
	resp := &call.IncomingResponse{
		State:        string(v.State),
		Current:      ToInvitationResponse(v.Current),
		Caller:       ToPartyResponse(v.Caller),
		RingDeadline: v.RingDeadline,
		PendingCount: v.PendingCount,
	}
	if v.Active != nil {
		resp.Active = &call.ActiveCallResponse{
			Invitation: ToInvitationResponse(&v.Active.Invitation),
			Ticket:     ToJoinTicketResponse(v.Active.Ticket),
		}
	}
	return resp
}

// ToOutgoingResponse converts the active outgoing calls
func ToOutgoingResponse(list []calls.OutgoingCall) *call.OutgoingResponse {
	resp := &call.OutgoingResponse{Calls: make([]*call.OutgoingCallResponse, len(list))}
	for i := range list {
		oc := list[i]
		resp.Calls[i] = &call.OutgoingCallResponse{
			Invitation:   ToInvitationResponse(&oc.Invitation),
			Callee:       ToPartyResponse(&oc.Callee),
			MeetingTitle: oc.MeetingTitle,
			Deadline:     oc.Deadline,
		}
	}
	return resp
}

// ToActionResponse reports what an accept, decline or cancel did
func ToActionResponse(outcome calls.Outcome, id uuid.UUID, incoming *calls.IncomingView) *call.ActionResponse {
	resp := &call.ActionResponse{Outcome: string(outcome)}
	if id != uuid.Nil {
		resp.InvitationID = id.String()
	}
	if incoming != nil {
		resp.Incoming = ToIncomingResponse(*incoming)
	}
	return resp
}

// ToSessionResponse converts a freshly opened call session
func ToSessionResponse(sess *calls.Session) *call.SessionResponse {
	return &call.SessionResponse{
		Identity: sess.Identity.String(),
		Incoming: ToIncomingResponse(sess.Incoming.View()),
		Outgoing: ToOutgoingResponse(sess.Outgoing.ActiveOutgoingCalls()),
	}
}

// ToNotificationResponse converts a Notification entity
func ToNotificationResponse(n *entities.Notification) *call.NotificationResponse {
	if n == nil {
		return nil
	}

	var payload map[string]interface{}
	if len(n.Payload) > 0 {
		_ = json.Unmarshal(n.Payload, &payload)
	}

	return &call.NotificationResponse{
		ID:           n.ID.String(),
		Kind:         string(n.Kind),
		CallerID:     n.CallerID.String(),
		ReunionID:    n.ReunionID.String(),
		InvitationID: n.InvitationID.String(),
		Payload:      payload,
		Read:         n.Read,
		CreatedAt:    n.CreatedAt,
	}
}
