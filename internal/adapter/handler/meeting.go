package handler

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/errors"
	meetingDTO "github.com/johnquangdev/meeting-calls/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meeting-calls/internal/adapter/presenter"
	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	meetingUsecase "github.com/johnquangdev/meeting-calls/internal/usecase/meeting"
)

// Meeting handles meeting HTTP requests
type Meeting struct {
	meetingService meetingUsecase.Service
	logger         *zap.Logger
}

// NewMeetingHandler creates a new meeting handler
func NewMeetingHandler(meetingService meetingUsecase.Service, logger *zap.Logger) *Meeting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Meeting{meetingService: meetingService, logger: logger.Named("meeting.http")}
}

// CreateMeeting handles POST /meetings
// @Summary      Create a meeting
// @Description  Creates the meeting, its room and one pending invitation per member
// @Tags         Meetings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      meeting.CreateMeetingRequest  true  "Meeting creation request"
// @Success      201      {object}  meeting.CreateMeetingResponse
// @Failure      400      {object}  map[string]interface{}  "Invalid request or validation failed"
// @Router       /meetings [post]
func (h *Meeting) CreateMeeting(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req meetingDTO.CreateMeetingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}

	members, err := toMemberInputs(req.Members)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	out, err := h.meetingService.CreateMeeting(c.Request().Context(), meetingUsecase.CreateMeetingInput{
		Title:       req.Title,
		Description: req.Description,
		CreatorID:   userID,
		Type:        entities.ReunionType(req.Type),
		Begin:       req.Begin,
		Members:     members,
	})
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleCreated(h.logger, c, presenter.ToCreateMeetingResponse(out))
}

// GetMeeting handles GET /meetings/:id
// @Summary      Get a meeting
// @Tags         Meetings
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Meeting ID (UUID)"
// @Success      200  {object}  meeting.MeetingResponse
// @Failure      404  {object}  map[string]interface{}  "Meeting not found"
// @Router       /meetings/{id} [get]
func (h *Meeting) GetMeeting(c echo.Context) error {
	reunionID, err := parseIDParam(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	r, err := h.meetingService.GetMeeting(c.Request().Context(), reunionID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToMeetingResponse(r))
}

// InviteMembers handles POST /meetings/:id/invitations
// @Summary      Invite more people
// @Description  Rings each member. People already ringing for this meeting are skipped.
// @Tags         Meetings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Meeting ID (UUID)"
// @Param        request  body      meeting.InviteMembersRequest  true  "Members to invite"
// @Success      201      {object}  meeting.InviteMembersResponse
// @Failure      403      {object}  map[string]interface{}  "Not an organizer"
// @Router       /meetings/{id}/invitations [post]
func (h *Meeting) InviteMembers(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	reunionID, err := parseIDParam(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req meetingDTO.InviteMembersRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}
	members, err := toMemberInputs(req.Members)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	invited, err := h.meetingService.InviteMembers(c.Request().Context(), meetingUsecase.InviteMembersInput{
		ReunionID: reunionID,
		CallerID:  userID,
		Members:   members,
	})
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleCreated(h.logger, c, &meetingDTO.InviteMembersResponse{
		Invitations: presenter.ToInvitationList(invited),
	})
}

// Reprogram handles POST /meetings/:id/reprogram
// @Summary      Reprogram a meeting
// @Description  Gives the meeting a fresh room and rings every invitee again
// @Tags         Meetings
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Meeting ID (UUID)"
// @Success      200  {object}  meeting.MeetingResponse
// @Failure      403  {object}  map[string]interface{}  "Not an organizer"
// @Router       /meetings/{id}/reprogram [post]
func (h *Meeting) Reprogram(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	reunionID, err := parseIDParam(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	r, err := h.meetingService.Reprogram(c.Request().Context(), reunionID, userID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToMeetingResponse(r))
}

// Clone handles POST /meetings/:id/clone
// @Summary      Clone a meeting
// @Description  Starts a new meeting owned by the caller and invites everyone from the source meeting again
// @Tags         Meetings
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Source meeting ID (UUID)"
// @Success      201  {object}  meeting.CreateMeetingResponse
// @Failure      404  {object}  map[string]interface{}  "Meeting not found"
// @Router       /meetings/{id}/clone [post]
func (h *Meeting) Clone(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	reunionID, err := parseIDParam(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	out, err := h.meetingService.Clone(c.Request().Context(), reunionID, userID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleCreated(h.logger, c, presenter.ToCreateMeetingResponse(out))
}

// Duration handles GET /meetings/:id/duration
// @Summary      Meeting duration
// @Description  How long the meeting ran and how long each participant stayed
// @Tags         Meetings
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Meeting ID (UUID)"
// @Success      200  {object}  meeting.DurationResponse
// @Router       /meetings/{id}/duration [get]
func (h *Meeting) Duration(c echo.Context) error {
	reunionID, err := parseIDParam(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	d, err := h.meetingService.Duration(c.Request().Context(), reunionID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToDurationResponse(d))
}

func toMemberInputs(members []meetingDTO.MemberRequest) ([]meetingUsecase.MemberInput, error) {
	out := make([]meetingUsecase.MemberInput, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m.ContactID)
		if err != nil {
			return nil, errors.ErrInvalidArgument("contact_id must be a valid UUID").WithDetail("contact_id", m.ContactID)
		}
		out = append(out, meetingUsecase.MemberInput{
			ContactID: id,
			Role:      entities.ParticipantRole(m.Role),
		})
	}
	return out, nil
}
