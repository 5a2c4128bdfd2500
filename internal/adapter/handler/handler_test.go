package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-calls/internal/adapter/dto/call"
	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/external/livekit"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/http/middleware"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/metrics"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/store"
	"github.com/johnquangdev/meeting-calls/internal/usecase/calls"
	meetingUsecase "github.com/johnquangdev/meeting-calls/internal/usecase/meeting"
	"github.com/johnquangdev/meeting-calls/pkg/config"
	"github.com/johnquangdev/meeting-calls/pkg/jwt"
	pkgvalidator "github.com/johnquangdev/meeting-calls/pkg/validator"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type envelope struct {
	Code    interface{}     `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Info    string          `json:"info"`
}

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
	r.RoomID, r.RoomURL = roomID, roomURL
	m.rows[id] = r
	return nil
}

type fakeNotifications struct {
	mu        sync.Mutex
	rows      map[uuid.UUID][]entities.Notification
	lastLimit int
}

func (f *fakeNotifications) List(_ context.Context, target uuid.UUID, limit int) ([]entities.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	return f.rows[target], nil
}

type app struct {
	e        *echo.Echo
	store    *store.MemoryStore
	sessions *calls.Service
	tokens   *jwt.Manager
	notes    *fakeNotifications
}

func newApp(t *testing.T) *app {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m := metrics.New("test", prometheus.NewRegistry())
	s := store.NewMemoryStore(clk, nil, m)
	transport := livekit.NewMockClient("ws://localhost:7880", "devkey", "devsecret-devsecret-devsecret-00")
	reunions := &memReunions{rows: make(map[uuid.UUID]entities.Reunion)}
	fanout := calls.NewFanOut(nil, nil, m)

	sessions := calls.NewService(calls.Dependencies{
		Store:     s,
		Reunions:  reunions,
		Transport: transport,
		FanOut:    fanout,
	}, calls.Options{RingWindow: 30 * time.Second, Clock: clk, Metrics: m})
	t.Cleanup(sessions.Shutdown)

	meetings := meetingUsecase.NewMeetingService(reunions, s, transport, fanout, nil, meetingUsecase.Config{
		BaseURL: "https://meet.example.com",
		Clock:   clk,
	})

	tokens := jwt.NewManager("handler-test-secret", time.Hour)
	notes := &fakeNotifications{rows: make(map[uuid.UUID][]entities.Notification)}

	e := echo.New()
	e.Validator = pkgvalidator.New()
	NewRouter(&config.Config{Server: config.ServerConfig{Environment: "test"}}, Handlers{
		Calls:         NewCallsHandler(sessions, nil),
		Sessions:      NewSessionsHandler(sessions, nil),
		Stream:        NewStreamHandler(sessions, nil, nil),
		Meetings:      NewMeetingHandler(meetings, nil),
		Notifications: NewNotificationsHandler(notes, nil),
	}, middleware.EchoAuth(tokens, nil), m.Handler()).Setup(e)

	return &app{e: e, store: s, sessions: sessions, tokens: tokens, notes: notes}
}

func (a *app) token(t *testing.T, id uuid.UUID) string {
	t.Helper()
	token, err := a.tokens.GenerateAccessToken(id, "", "user")
	require.NoError(t, err)
	return token
}

func (a *app) do(t *testing.T, method, path string, as uuid.UUID, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if as != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+a.token(t, as))
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func (a *app) invite(t *testing.T, caller, contact uuid.UUID) entities.Invitation {
	t.Helper()
	inv := &entities.Invitation{CallerID: caller, ContactID: contact, ReunionID: uuid.New()}
	require.NoError(t, a.store.Create(context.Background(), inv))
	return *inv
}

func (a *app) incoming(t *testing.T, as uuid.UUID) call.IncomingResponse {
	t.Helper()
	rec, env := a.do(t, http.MethodGet, "/v1/calls/incoming", as, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view call.IncomingResponse
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)

	rec, _ := a.do(t, http.MethodGet, "/health", uuid.Nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"environment":"test"`)

	rec, _ = a.do(t, http.MethodGet, "/metrics", uuid.Nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutesRequireToken(t *testing.T) {
	a := newApp(t)

	rec, _ := a.do(t, http.MethodGet, "/v1/calls/incoming", uuid.Nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallsWithoutSession(t *testing.T) {
	a := newApp(t)

	rec, env := a.do(t, http.MethodGet, "/v1/calls/incoming", uuid.New(), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CALL_SESSION_NOT_FOUND", env.Code)
}

func TestSessionLifecycle(t *testing.T) {
	a := newApp(t)
	me := uuid.New()

	rec, env := a.do(t, http.MethodPost, "/v1/sessions", me, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess call.SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.Equal(t, me.String(), sess.Identity)
	assert.Equal(t, "idle", sess.Incoming.State)

	rec, _ = a.do(t, http.MethodPost, "/v1/sessions", me, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(t, http.MethodDelete, "/v1/sessions", me, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = a.do(t, http.MethodDelete, "/v1/sessions", me, "")
	assert.Equal(t, http.StatusOK, rec.Code, "closing twice is fine")

	_, err := a.sessions.Session(me)
	assert.Error(t, err)
}

func TestAcceptIncoming(t *testing.T) {
	a := newApp(t)
	me, caller := uuid.New(), uuid.New()
	a.do(t, http.MethodPost, "/v1/sessions", me, "")

	inv := a.invite(t, caller, me)
	assert.Eventually(t, func() bool {
		v := a.incoming(t, me)
		return v.Current != nil && v.Current.ID == inv.ID.String()
	}, waitFor, tick)

	view := a.incoming(t, me)
	assert.Equal(t, "ringing", view.State)
	require.NotNil(t, view.Caller)
	assert.Equal(t, caller.String(), view.Caller.ID)
	assert.NotNil(t, view.RingDeadline)

	rec, env := a.do(t, http.MethodPost, "/v1/calls/incoming/"+inv.ID.String()+"/accept", me, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var action call.ActionResponse
	require.NoError(t, json.Unmarshal(env.Data, &action))
	assert.Equal(t, "applied", action.Outcome)
	require.NotNil(t, action.Incoming)
	assert.Equal(t, "in_call", action.Incoming.State)
	require.NotNil(t, action.Incoming.Active)
	assert.NotEmpty(t, action.Incoming.Active.Ticket.Token)

	rec, env = a.do(t, http.MethodPost, "/v1/calls/incoming/"+inv.ID.String()+"/decline", me, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &action))
	assert.Equal(t, "stale", action.Outcome)

	stored, err := a.store.GetByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.InvitationStatusAccepted, stored.Status)

	rec, _ = a.do(t, http.MethodPost, "/v1/calls/leave", me, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env = a.do(t, http.MethodPost, "/v1/calls/leave", me, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CALL_NOT_IN_CALL", env.Code)
}

func TestQuickDecline(t *testing.T) {
	a := newApp(t)
	me := uuid.New()
	a.do(t, http.MethodPost, "/v1/sessions", me, "")

	rec, env := a.do(t, http.MethodPost, "/v1/calls/incoming/decline", me, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CALL_NOTHING_RINGING", env.Code)

	inv := a.invite(t, uuid.New(), me)
	assert.Eventually(t, func() bool { return a.incoming(t, me).Current != nil }, waitFor, tick)

	rec, env = a.do(t, http.MethodPost, "/v1/calls/incoming/decline", me, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var action call.ActionResponse
	require.NoError(t, json.Unmarshal(env.Data, &action))
	assert.Equal(t, "applied", action.Outcome)
	assert.Equal(t, inv.ID.String(), action.InvitationID)
}

func TestAcceptStoreUnavailable(t *testing.T) {
	a := newApp(t)
	me := uuid.New()
	a.do(t, http.MethodPost, "/v1/sessions", me, "")

	inv := a.invite(t, uuid.New(), me)
	assert.Eventually(t, func() bool { return a.incoming(t, me).Current != nil }, waitFor, tick)

	a.store.FailWrites(errors.New("connection reset"))
	rec, env := a.do(t, http.MethodPost, "/v1/calls/incoming/"+inv.ID.String()+"/accept", me, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "CALL_STORE_UNAVAILABLE", env.Code)
	assert.Contains(t, rec.Body.String(), `"retryable":true`)

	a.store.FailWrites(nil)
	view := a.incoming(t, me)
	assert.Equal(t, "ringing", view.State, "still ringing after a failed write")
}

func TestCancelOutgoing(t *testing.T) {
	a := newApp(t)
	me := uuid.New()
	a.do(t, http.MethodPost, "/v1/sessions", me, "")

	inv := a.invite(t, me, uuid.New())
	assert.Eventually(t, func() bool {
		_, env := a.do(t, http.MethodGet, "/v1/calls/outgoing", me, "")
		var out call.OutgoingResponse
		return json.Unmarshal(env.Data, &out) == nil && len(out.Calls) == 1
	}, waitFor, tick)

	rec, env := a.do(t, http.MethodPost, "/v1/calls/outgoing/"+uuid.NewString()+"/cancel", me, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CALL_NOT_TRACKED", env.Code)

	rec, env = a.do(t, http.MethodPost, "/v1/calls/outgoing/not-a-uuid/cancel", me, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ARGUMENT", env.Code)

	rec, env = a.do(t, http.MethodPost, "/v1/calls/outgoing/"+inv.ID.String()+"/cancel", me, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var action call.ActionResponse
	require.NoError(t, json.Unmarshal(env.Data, &action))
	assert.Equal(t, "applied", action.Outcome)

	stored, err := a.store.GetByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.InvitationStatusCancelled, stored.Status)
}

func TestCreateMeetingRingsMembers(t *testing.T) {
	a := newApp(t)
	host, guest := uuid.New(), uuid.New()
	a.do(t, http.MethodPost, "/v1/sessions", guest, "")

	rec, env := a.do(t, http.MethodPost, "/v1/meetings", host,
		`{"title":"Standup","members":[{"contact_id":"`+guest.String()+`"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Meeting struct {
			ID     string `json:"id"`
			RoomID string `json:"room_id"`
		} `json:"meeting"`
		Invitations []call.InvitationResponse `json:"invitations"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Len(t, created.Invitations, 2)

	assert.Eventually(t, func() bool {
		v := a.incoming(t, guest)
		return v.Current != nil && v.Current.ReunionID == created.Meeting.ID
	}, waitFor, tick)

	rec, _ = a.do(t, http.MethodPost, "/v1/meetings/"+created.Meeting.ID+"/reprogram", guest, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/v1/meetings/"+created.Meeting.ID+"/duration", host, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = a.do(t, http.MethodGet, "/v1/meetings/"+uuid.NewString(), host, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MEETING_NOT_FOUND", env.Code)
}

func TestCloneMeeting(t *testing.T) {
	a := newApp(t)
	host, guest := uuid.New(), uuid.New()

	rec, env := a.do(t, http.MethodPost, "/v1/meetings", host,
		`{"title":"Standup","members":[{"contact_id":"`+guest.String()+`"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Meeting struct {
			ID string `json:"id"`
		} `json:"meeting"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	rec, env = a.do(t, http.MethodPost, "/v1/meetings/"+created.Meeting.ID+"/clone", guest, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var cloned struct {
		Meeting struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			CreatorID string `json:"creator_id"`
		} `json:"meeting"`
		Invitations []call.InvitationResponse `json:"invitations"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cloned))
	assert.NotEqual(t, created.Meeting.ID, cloned.Meeting.ID)
	assert.Equal(t, "Standup", cloned.Meeting.Title)
	assert.Equal(t, guest.String(), cloned.Meeting.CreatorID)
	require.Len(t, cloned.Invitations, 2)
	assert.Equal(t, guest.String(), cloned.Invitations[0].ContactID)
	assert.Equal(t, "accepted", cloned.Invitations[0].Status)
	assert.Equal(t, host.String(), cloned.Invitations[1].ContactID)
	assert.Equal(t, "pending", cloned.Invitations[1].Status)

	rec, env = a.do(t, http.MethodPost, "/v1/meetings/"+created.Meeting.ID+"/clone", uuid.New(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MEETING_NOT_FOUND", env.Code)
}

func TestCreateMeetingValidation(t *testing.T) {
	a := newApp(t)
	host := uuid.New()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing title", `{"members":[]}`, http.StatusBadRequest},
		{"bad member id", `{"title":"x","members":[{"contact_id":"nope"}]}`, http.StatusBadRequest},
		{"unknown role", `{"title":"x","members":[{"contact_id":"` + uuid.NewString() + `","role":"owner"}]}`, http.StatusBadRequest},
		{"broken json", `{"title":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := a.do(t, http.MethodPost, "/v1/meetings", host, tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestListNotifications(t *testing.T) {
	a := newApp(t)
	me, caller := uuid.New(), uuid.New()
	a.notes.rows[me] = []entities.Notification{{
		ID:           uuid.New(),
		Kind:         entities.NotificationKindAccepted,
		TargetID:     me,
		CallerID:     caller,
		InvitationID: uuid.New(),
		Payload:      []byte(`{"user_name":"Bob"}`),
	}}

	rec, env := a.do(t, http.MethodGet, "/v1/notifications", me, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, a.notes.lastLimit)

	var list struct {
		Data  []call.NotificationResponse `json:"data"`
		Count int                         `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "invitation_accepted", list.Data[0].Kind)
	assert.Equal(t, caller.String(), list.Data[0].CallerID)
	assert.Equal(t, "Bob", list.Data[0].Payload["user_name"])

	rec, _ = a.do(t, http.MethodGet, "/v1/notifications?limit=5", me, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, a.notes.lastLimit)

	rec, env = a.do(t, http.MethodGet, "/v1/notifications?limit=500", me, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ARGUMENT", env.Code)
}
