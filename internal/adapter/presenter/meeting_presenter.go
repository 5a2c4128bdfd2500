package presenter

import (
	"github.com/johnquangdev/meeting-calls/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	meetingUsecase "github.com/johnquangdev/meeting-calls/internal/usecase/meeting"
)

// ToMeetingResponse converts a Reunion entity to MeetingResponse DTO
func ToMeetingResponse(r *entities.Reunion) *meeting.MeetingResponse {
	if r == nil {
		return nil
	}
	return &meeting.MeetingResponse{
		ID:          r.ID.String(),
		Title:       r.Title,
		Description: r.Description,
		CreatorID:   r.CreatorID.String(),
		Type:        string(r.Type),
		Status:      string(r.Status),
		RoomID:      r.RoomID,
		RoomURL:     r.RoomURL,
		Begin:       r.Begin,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ToCreateMeetingResponse converts the result of creating a meeting
func ToCreateMeetingResponse(out *meetingUsecase.CreateMeetingOutput) *meeting.CreateMeetingResponse {
	return &meeting.CreateMeetingResponse{
		Meeting:     ToMeetingResponse(out.Reunion),
		Invitations: ToInvitationList(out.Invitations),
	}
}

// ToDurationResponse converts a duration summary
func ToDurationResponse(d *meetingUsecase.DurationOutput) *meeting.DurationResponse {
	resp := &meeting.DurationResponse{
		ReunionID:          d.ReunionID.String(),
		MeetingMinutes:     d.Info.MeetingMinutes,
		ParticipantMinutes: d.Info.ParticipantMinutes,
		Meeting:            d.Meeting,
		Average:            d.Average,
		Participants:       make([]*meeting.ParticipantDurationResponse, len(d.Participants)),
	}
	for i, p := range d.Participants {
		resp.Participants[i] = &meeting.ParticipantDurationResponse{
			ContactID: p.ContactID.String(),
			Label:     p.Label,
			Status:    string(p.Status),
			Minutes:   p.Minutes,
			Formatted: p.Formatted,
		}
	}
	return resp
}
