package meeting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/external/livekit"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/store"
	"github.com/johnquangdev/meeting-calls/internal/usecase/calls"
	usecaseErrors "github.com/johnquangdev/meeting-calls/internal/usecase/errors"
)

type memReunions struct {
	mu   sync.Mutex
	rows map[uuid.UUID]entities.Reunion
}

func (m *memReunions) Create(_ context.Context, r *entities.Reunion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.ID] = *r
	return nil
}

func (m *memReunions) FindByID(_ context.Context, id uuid.UUID) (*entities.Reunion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, entities.ErrReunionNotFound
	}
	return &r, nil
}

func (m *memReunions) UpdateStatus(_ context.Context, id uuid.UUID, status entities.ReunionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rows[id]
	r.Status = status
	m.rows[id] = r
	return nil
}

func (m *memReunions) Reschedule(_ context.Context, id uuid.UUID, roomID, roomURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return entities.ErrReunionNotFound
	}
	r.Status = entities.ReunionStatusScheduled
	r.RoomID = roomID
	r.RoomURL = roomURL
	m.rows[id] = r
	return nil
}

type notified struct {
	kind   entities.NotificationKind
	target uuid.UUID
	name   string
}

type recorder struct {
	mu   sync.Mutex
	sent []notified
}

func (r *recorder) Notify(_ context.Context, kind entities.NotificationKind, target uuid.UUID, payload entities.NotificationPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notified{kind: kind, target: target, name: payload.UserName})
	return nil
}

func (r *recorder) targets() map[uuid.UUID]entities.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]entities.NotificationKind, len(r.sent))
	for _, n := range r.sent {
		out[n.target] = n.kind
	}
	return out
}

type names map[uuid.UUID]string

func (n names) Profile(_ context.Context, id uuid.UUID) entities.DisplayInfo {
	if label, ok := n[id]; ok {
		return entities.DisplayInfo{ID: id, Label: label}
	}
	return entities.FallbackDisplayInfo(id)
}

func (n names) MeetingTitle(context.Context, uuid.UUID) string { return "" }

type fixture struct {
	svc       *MeetingService
	clk       *clock.Mock
	store     *store.MemoryStore
	reunions  *memReunions
	transport *livekit.MockClient
	notifier  *recorder
	host      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC))

	f := &fixture{
		clk:       clk,
		store:     store.NewMemoryStore(clk, nil, nil),
		reunions:  &memReunions{rows: make(map[uuid.UUID]entities.Reunion)},
		transport: livekit.NewMockClient("ws://localhost:7880", "devkey", "devsecret-devsecret-devsecret-00"),
		notifier:  &recorder{},
		host:      uuid.New(),
	}
	f.svc = NewMeetingService(
		f.reunions,
		f.store,
		f.transport,
		calls.NewFanOut(f.notifier, nil, nil),
		names{f.host: "Host"},
		Config{BaseURL: "https://meet.example.com/", Clock: clk},
	)
	return f
}

func TestCreateMeeting(t *testing.T) {
	f := newFixture(t)
	alice, bob := uuid.New(), uuid.New()

	out, err := f.svc.CreateMeeting(context.Background(), CreateMeetingInput{
		Title:     "  Planning  ",
		CreatorID: f.host,
		Members: []MemberInput{
			{ContactID: alice},
			{ContactID: bob, Role: entities.ParticipantRoleCoHost},
			{ContactID: alice},
			{ContactID: f.host},
		},
	})
	require.NoError(t, err)

	r := out.Reunion
	assert.Equal(t, "Planning", r.Title)
	assert.Equal(t, entities.ReunionTypePrivate, r.Type)
	assert.Equal(t, entities.ReunionStatusScheduled, r.Status)
	assert.Equal(t, "room_"+formatMillis(f.clk.Now())+"_"+f.host.String(), r.RoomID)
	assert.Equal(t, "https://meet.example.com/meeting/"+r.RoomID, r.RoomURL)

	require.Len(t, out.Invitations, 3)
	host := out.Invitations[0]
	assert.True(t, host.IsSelfAddressed())
	assert.Equal(t, entities.InvitationStatusAccepted, host.Status)
	assert.Equal(t, entities.ParticipantRoleHost, host.Role)
	require.NotNil(t, host.Debut)
	assert.True(t, host.Debut.Equal(f.clk.Now()))

	roles := map[uuid.UUID]entities.ParticipantRole{}
	for _, inv := range out.Invitations[1:] {
		assert.Equal(t, entities.InvitationStatusPending, inv.Status)
		assert.Equal(t, r.RoomID, inv.RoomID)
		assert.Equal(t, f.host, inv.CallerID)
		roles[inv.ContactID] = inv.Role
	}
	assert.Equal(t, entities.ParticipantRoleParticipant, roles[alice])
	assert.Equal(t, entities.ParticipantRoleCoHost, roles[bob])

	assert.Eventually(t, func() bool { return len(f.notifier.targets()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, entities.NotificationKindReceived, f.notifier.targets()[alice])
	assert.Equal(t, entities.NotificationKindReceived, f.notifier.targets()[bob])
}

func TestCreateMeeting_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateMeeting(context.Background(), CreateMeetingInput{Title: " ", CreatorID: f.host})
	assert.ErrorIs(t, err, usecaseErrors.ErrInvalidInput)

	_, err = f.svc.CreateMeeting(context.Background(), CreateMeetingInput{
		Title:     "Sync",
		CreatorID: f.host,
		Members:   []MemberInput{{ContactID: uuid.New(), Role: "owner"}},
	})
	assert.ErrorIs(t, err, usecaseErrors.ErrInvalidInput)
}

func TestInviteMembers(t *testing.T) {
	f := newFixture(t)
	alice := uuid.New()
	out, err := f.svc.CreateMeeting(context.Background(), CreateMeetingInput{
		Title: "Sync", CreatorID: f.host, Members: []MemberInput{{ContactID: alice}},
	})
	require.NoError(t, err)

	_, err = f.svc.InviteMembers(context.Background(), InviteMembersInput{ReunionID: out.Reunion.ID, CallerID: f.host})
	assert.ErrorIs(t, err, usecaseErrors.ErrNoMembers)

	carol := uuid.New()
	invited, err := f.svc.InviteMembers(context.Background(), InviteMembersInput{
		ReunionID: out.Reunion.ID,
		CallerID:  f.host,
		Members:   []MemberInput{{ContactID: alice}, {ContactID: carol}},
	})
	require.NoError(t, err)
	require.Len(t, invited, 1, "alice is already ringing")
	assert.Equal(t, carol, invited[0].ContactID)

	_, err = f.svc.InviteMembers(context.Background(), InviteMembersInput{
		ReunionID: out.Reunion.ID,
		CallerID:  carol,
		Members:   []MemberInput{{ContactID: uuid.New()}},
	})
	assert.ErrorIs(t, err, usecaseErrors.ErrNotHost)

	_, err = f.svc.InviteMembers(context.Background(), InviteMembersInput{
		ReunionID: uuid.New(),
		CallerID:  f.host,
		Members:   []MemberInput{{ContactID: carol}},
	})
	assert.ErrorIs(t, err, usecaseErrors.ErrReunionNotFound)
}

func TestReprogram(t *testing.T) {
	f := newFixture(t)
	alice := uuid.New()
	out, err := f.svc.CreateMeeting(context.Background(), CreateMeetingInput{
		Title: "Retro", CreatorID: f.host, Members: []MemberInput{{ContactID: alice}},
	})
	require.NoError(t, err)
	ctx := context.Background()

	aliceInv := out.Invitations[1]
	_, err = f.store.UpdateStatus(ctx, aliceInv.ID, entities.InvitationStatusMissed, repositories.Extra{})
	require.NoError(t, err)

	_, err = f.svc.Reprogram(ctx, out.Reunion.ID, alice)
	assert.ErrorIs(t, err, usecaseErrors.ErrNotHost)

	f.clk.Add(time.Hour)
	updated, err := f.svc.Reprogram(ctx, out.Reunion.ID, f.host)
	require.NoError(t, err)
	assert.NotEqual(t, out.Reunion.RoomID, updated.RoomID)
	assert.Equal(t, entities.ReunionStatusScheduled, updated.Status)

	invitations, err := f.store.ListByReunion(ctx, out.Reunion.ID)
	require.NoError(t, err)
	for _, inv := range invitations {
		assert.Equal(t, entities.InvitationStatusPending, inv.Status)
		assert.False(t, inv.Viewed)
		assert.Nil(t, inv.Debut)
		assert.Nil(t, inv.DateFin)
		assert.Equal(t, updated.RoomID, inv.RoomID)
		assert.Equal(t, updated.RoomURL, inv.URL)
	}

	stored, err := f.reunions.FindByID(ctx, out.Reunion.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.RoomID, stored.RoomID)
}

func TestClone(t *testing.T) {
	f := newFixture(t)
	alice, bob := uuid.New(), uuid.New()
	out, err := f.svc.CreateMeeting(context.Background(), CreateMeetingInput{
		Title:       "Sync",
		Description: "weekly",
		CreatorID:   f.host,
		Members:     []MemberInput{{ContactID: alice}, {ContactID: bob, Role: entities.ParticipantRoleCoHost}},
	})
	require.NoError(t, err)
	ctx := context.Background()

	f.clk.Add(time.Hour)
	cloned, err := f.svc.Clone(ctx, out.Reunion.ID, bob)
	require.NoError(t, err)

	r := cloned.Reunion
	assert.NotEqual(t, out.Reunion.ID, r.ID)
	assert.Equal(t, bob, r.CreatorID)
	assert.Equal(t, "Sync", r.Title)
	assert.Equal(t, "weekly", r.Description)
	assert.Equal(t, entities.ReunionStatusScheduled, r.Status)
	assert.Equal(t, "room_"+formatMillis(f.clk.Now())+"_"+bob.String(), r.RoomID)

	require.Len(t, cloned.Invitations, 3)
	host := cloned.Invitations[0]
	assert.Equal(t, bob, host.ContactID)
	assert.True(t, host.IsSelfAddressed())
	assert.Equal(t, entities.InvitationStatusAccepted, host.Status)
	assert.Equal(t, entities.ParticipantRoleHost, host.Role)

	roles := map[uuid.UUID]entities.ParticipantRole{}
	for _, inv := range cloned.Invitations[1:] {
		assert.Equal(t, entities.InvitationStatusPending, inv.Status)
		assert.Equal(t, bob, inv.CallerID)
		assert.Equal(t, r.RoomID, inv.RoomID)
		roles[inv.ContactID] = inv.Role
	}
	assert.Equal(t, entities.ParticipantRoleHost, roles[f.host])
	assert.Equal(t, entities.ParticipantRoleParticipant, roles[alice])

	stored, err := f.store.ListByReunion(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	original, err := f.store.ListByReunion(ctx, out.Reunion.ID)
	require.NoError(t, err)
	assert.Len(t, original, 3)

	assert.Eventually(t, func() bool {
		return f.notifier.targets()[f.host] == entities.NotificationKindReceived
	}, time.Second, 5*time.Millisecond)

	own, err := f.svc.Clone(ctx, out.Reunion.ID, f.host)
	require.NoError(t, err)
	assert.Len(t, own.Invitations, 3)

	_, err = f.svc.Clone(ctx, out.Reunion.ID, uuid.New())
	assert.ErrorIs(t, err, usecaseErrors.ErrReunionNotFound)

	_, err = f.svc.Clone(ctx, uuid.New(), f.host)
	assert.ErrorIs(t, err, usecaseErrors.ErrReunionNotFound)
}

func TestDuration(t *testing.T) {
	f := newFixture(t)
	alice := uuid.New()
	out, err := f.svc.CreateMeeting(context.Background(), CreateMeetingInput{
		Title: "Review", CreatorID: f.host, Members: []MemberInput{{ContactID: alice}},
	})
	require.NoError(t, err)
	ctx := context.Background()
	start := f.clk.Now()

	aliceInv := out.Invitations[1]
	joined := start.Add(5 * time.Minute)
	_, err = f.store.UpdateStatus(ctx, aliceInv.ID, entities.InvitationStatusAccepted, repositories.Extra{Debut: &joined})
	require.NoError(t, err)
	require.NoError(t, f.store.MarkEnded(ctx, aliceInv.ID, start.Add(50*time.Minute)))
	require.NoError(t, f.store.MarkEnded(ctx, out.Invitations[0].ID, start.Add(65*time.Minute)))

	d, err := f.svc.Duration(ctx, out.Reunion.ID)
	require.NoError(t, err)
	require.NotNil(t, d.Info.MeetingMinutes)
	assert.Equal(t, 65, *d.Info.MeetingMinutes)
	assert.Equal(t, "1h 5m", d.Meeting)
	require.NotNil(t, d.Info.ParticipantMinutes)
	assert.Equal(t, 55, *d.Info.ParticipantMinutes)
	assert.Len(t, d.Participants, 2)

	_, err = f.svc.Duration(ctx, uuid.New())
	assert.ErrorIs(t, err, usecaseErrors.ErrReunionNotFound)
}

func formatMillis(t time.Time) string {
	return fmt.Sprintf("%d", t.UnixMilli())
}
