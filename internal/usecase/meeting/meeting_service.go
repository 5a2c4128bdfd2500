package meeting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/external/livekit"
	"github.com/johnquangdev/meeting-calls/internal/usecase/calls"
	usecaseErrors "github.com/johnquangdev/meeting-calls/internal/usecase/errors"
)

// MeetingService handles meeting business logic
type MeetingService struct {
	reunions    repositories.ReunionRepository
	invitations repositories.InvitationRepository
	transport   livekit.Transport
	fanout      *calls.FanOut
	directory   calls.Directory
	baseURL     string
	clock       clock.Clock
	logger      *zap.Logger
}

// Config holds what the meeting service needs besides its collaborators
type Config struct {
	BaseURL string
	Clock   clock.Clock
	Logger  *zap.Logger
}

// NewMeetingService creates a new meeting service
func NewMeetingService(
	reunions repositories.ReunionRepository,
	invitations repositories.InvitationRepository,
	transport livekit.Transport,
	fanout *calls.FanOut,
	directory calls.Directory,
	cfg Config,
) *MeetingService {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if directory == nil {
		directory = calls.RawDirectory{}
	}
	return &MeetingService{
		reunions:    reunions,
		invitations: invitations,
		transport:   transport,
		fanout:      fanout,
		directory:   directory,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		clock:       cfg.Clock,
		logger:      cfg.Logger.Named("meeting"),
	}
}

// CreateMeeting creates a new meeting
func (s *MeetingService) CreateMeeting(ctx context.Context, input CreateMeetingInput) (*CreateMeetingOutput, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: %w", usecaseErrors.ErrInvalidInput, entities.ErrInvalidTitle)
	}
	if input.CreatorID == uuid.Nil {
		return nil, usecaseErrors.ErrInvalidInput
	}
	members, err := normalizeMembers(input.Members, input.CreatorID)
	if err != nil {
		return nil, err
	}

	reunionType := input.Type
	if reunionType == "" {
		reunionType = entities.ReunionTypePrivate
	}

	now := s.clock.Now()
	roomID, roomURL := entities.NewRoom(s.baseURL, input.CreatorID, now)
	begin := input.Begin
	if begin == nil {
		begin = &now
	}

	reunion := &entities.Reunion{
		ID:          uuid.New(),
		Title:       title,
		Description: input.Description,
		CreatorID:   input.CreatorID,
		Type:        reunionType,
		Status:      entities.ReunionStatusScheduled,
		RoomID:      roomID,
		RoomURL:     roomURL,
		Begin:       begin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.reunions.Create(ctx, reunion); err != nil {
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}

	s.ensureRoom(ctx, roomID)

	// the host's own record joins immediately
	debut := now
	host := entities.Invitation{
		CallerID:  input.CreatorID,
		ContactID: input.CreatorID,
		ReunionID: reunion.ID,
		Status:    entities.InvitationStatusAccepted,
		Role:      entities.ParticipantRoleHost,
		URL:       roomURL,
		RoomID:    roomID,
		Viewed:    true,
		Debut:     &debut,
		CreatedAt: now,
	}
	if err := s.invitations.Create(ctx, &host); err != nil {
		return nil, fmt.Errorf("failed to add host invitation: %w", err)
	}

	invited, err := s.invite(ctx, reunion, input.CreatorID, members)
	if err != nil {
		return nil, err
	}

	s.logger.Info("meeting created",
		zap.String("reunion_id", reunion.ID.String()),
		zap.String("room_id", roomID),
		zap.Int("invited", len(invited)),
	)

	return &CreateMeetingOutput{
		Reunion:     reunion,
		Invitations: append([]entities.Invitation{host}, invited...),
	}, nil
}

// GetMeeting retrieves a meeting by ID
func (s *MeetingService) GetMeeting(ctx context.Context, reunionID uuid.UUID) (*entities.Reunion, error) {
	reunion, err := s.reunions.FindByID(ctx, reunionID)
	if err != nil {
		if errors.Is(err, entities.ErrReunionNotFound) {
			return nil, usecaseErrors.ErrReunionNotFound
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return reunion, nil
}

// InviteMembers adds pending invitations to an existing meeting
func (s *MeetingService) InviteMembers(ctx context.Context, input InviteMembersInput) ([]entities.Invitation, error) {
	if len(input.Members) == 0 {
		return nil, usecaseErrors.ErrNoMembers
	}
	members, err := normalizeMembers(input.Members, input.CallerID)
	if err != nil {
		return nil, err
	}

	reunion, err := s.GetMeeting(ctx, input.ReunionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOrganizer(ctx, reunion, input.CallerID); err != nil {
		return nil, err
	}

	// people already ringing for this meeting are not rung twice
	existing, err := s.invitations.ListByReunion(ctx, reunion.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	ringing := make(map[uuid.UUID]bool, len(existing))
	for _, inv := range existing {
		if inv.IsPending() {
			ringing[inv.ContactID] = true
		}
	}
	fresh := members[:0]
	for _, m := range members {
		if !ringing[m.ContactID] {
			fresh = append(fresh, m)
		}
	}

	return s.invite(ctx, reunion, input.CallerID, fresh)
}

// invite creates one pending invitation per member and tells each of them
func (s *MeetingService) invite(ctx context.Context, reunion *entities.Reunion, callerID uuid.UUID, members []MemberInput) ([]entities.Invitation, error) {
	if len(members) == 0 {
		return nil, nil
	}

	caller := s.directory.Profile(ctx, callerID)
	now := s.clock.Now()
	invited := make([]entities.Invitation, 0, len(members))

	for _, m := range members {
		inv := entities.Invitation{
			CallerID:  callerID,
			ContactID: m.ContactID,
			ReunionID: reunion.ID,
			Status:    entities.InvitationStatusPending,
			Role:      m.Role,
			URL:       reunion.RoomURL,
			RoomID:    reunion.RoomID,
			CreatedAt: now,
		}
		if err := s.invitations.Create(ctx, &inv); err != nil {
			return invited, fmt.Errorf("failed to invite %s: %w", m.ContactID, err)
		}
		invited = append(invited, inv)
		s.fanout.Received(ctx, inv, caller)
	}
	return invited, nil
}

// Reprogram gives a meeting a fresh room and puts every invitation back to pending
func (s *MeetingService) Reprogram(ctx context.Context, reunionID, actorID uuid.UUID) (*entities.Reunion, error) {
	reunion, err := s.GetMeeting(ctx, reunionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOrganizer(ctx, reunion, actorID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	roomID, roomURL := entities.NewRoom(s.baseURL, actorID, now)

	if err := s.reunions.Reschedule(ctx, reunion.ID, roomID, roomURL); err != nil {
		if errors.Is(err, entities.ErrReunionNotFound) {
			return nil, usecaseErrors.ErrReunionNotFound
		}
		return nil, fmt.Errorf("failed to reschedule meeting: %w", err)
	}
	if err := s.invitations.ResetForReunion(ctx, reunion.ID, roomID, roomURL); err != nil {
		return nil, fmt.Errorf("failed to reset invitations: %w", err)
	}

	s.ensureRoom(ctx, roomID)

	reunion.RoomID = roomID
	reunion.RoomURL = roomURL
	reunion.Status = entities.ReunionStatusScheduled
	reunion.UpdatedAt = now

	s.logger.Info("meeting reprogrammed",
		zap.String("reunion_id", reunion.ID.String()),
		zap.String("room_id", roomID),
	)
	return reunion, nil
}

// Clone creates a new meeting from reunionID with creatorID as its host.
// Everyone invited to the source meeting is invited again with the same
// role; the source's own creator is invited too when someone else clones it.
// Callers who took no part in the source meeting get ErrReunionNotFound.
func (s *MeetingService) Clone(ctx context.Context, reunionID, creatorID uuid.UUID) (*CreateMeetingOutput, error) {
	source, err := s.GetMeeting(ctx, reunionID)
	if err != nil {
		return nil, err
	}

	invitations, err := s.invitations.ListByReunion(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	tookPart := source.CreatorID == creatorID
	members := make([]MemberInput, 0, len(invitations))
	for _, inv := range invitations {
		if inv.ContactID == creatorID {
			tookPart = true
		}
		members = append(members, MemberInput{ContactID: inv.ContactID, Role: inv.Role})
	}
	if !tookPart {
		return nil, usecaseErrors.ErrReunionNotFound
	}

	out, err := s.CreateMeeting(ctx, CreateMeetingInput{
		Title:       source.Title,
		Description: source.Description,
		CreatorID:   creatorID,
		Type:        source.Type,
		Members:     members,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("meeting cloned",
		zap.String("source_id", source.ID.String()),
		zap.String("reunion_id", out.Reunion.ID.String()),
	)
	return out, nil
}

// Duration reports how long a meeting and each participant lasted
func (s *MeetingService) Duration(ctx context.Context, reunionID uuid.UUID) (*DurationOutput, error) {
	if _, err := s.GetMeeting(ctx, reunionID); err != nil {
		return nil, err
	}

	invitations, err := s.invitations.ListByReunion(ctx, reunionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	info := entities.MeetingDuration(invitations)
	out := &DurationOutput{
		ReunionID:    reunionID,
		Info:         info,
		Meeting:      entities.FormatMinutes(info.MeetingMinutes),
		Average:      entities.FormatMinutes(info.ParticipantMinutes),
		Participants: make([]ParticipantStay, 0, len(invitations)),
	}
	for _, inv := range invitations {
		minutes := entities.ParticipantDuration(inv)
		out.Participants = append(out.Participants, ParticipantStay{
			ContactID: inv.ContactID,
			Label:     s.directory.Profile(ctx, inv.ContactID).Label,
			Status:    inv.Status,
			Minutes:   minutes,
			Formatted: entities.FormatMinutes(minutes),
		})
	}
	return out, nil
}

// requireOrganizer allows the creator and anyone invited as host or co-host
func (s *MeetingService) requireOrganizer(ctx context.Context, reunion *entities.Reunion, actorID uuid.UUID) error {
	if reunion.CreatorID == actorID {
		return nil
	}

	invitations, err := s.invitations.ListByReunion(ctx, reunion.ID)
	if err != nil {
		return fmt.Errorf("failed to list invitations: %w", err)
	}
	for _, inv := range invitations {
		if inv.ContactID != actorID {
			continue
		}
		if inv.Role == entities.ParticipantRoleHost || inv.Role == entities.ParticipantRoleCoHost {
			return nil
		}
	}
	return usecaseErrors.ErrNotHost
}

func (s *MeetingService) ensureRoom(ctx context.Context, roomID string) {
	if s.transport == nil {
		return
	}
	if err := s.transport.EnsureRoom(ctx, roomID); err != nil {
		// the room is created again on first join
		s.logger.Warn("failed to create room", zap.String("room_id", roomID), zap.Error(err))
	}
}

// normalizeMembers drops duplicates and the inviter, and defaults roles
func normalizeMembers(members []MemberInput, inviter uuid.UUID) ([]MemberInput, error) {
	seen := make(map[uuid.UUID]bool, len(members))
	out := make([]MemberInput, 0, len(members))
	for _, m := range members {
		if m.ContactID == uuid.Nil {
			return nil, fmt.Errorf("%w: missing contact id", usecaseErrors.ErrInvalidInput)
		}
		if m.ContactID == inviter || seen[m.ContactID] {
			continue
		}
		if m.Role == "" {
			m.Role = entities.ParticipantRoleParticipant
		}
		if !m.Role.IsValid() {
			return nil, fmt.Errorf("%w: unknown role %q", usecaseErrors.ErrInvalidInput, m.Role)
		}
		seen[m.ContactID] = true
		out = append(out, m)
	}
	return out, nil
}
