package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/external/livekit"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/metrics"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/store"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
	window  = 30 * time.Second
)

type sentNotification struct {
	kind    entities.NotificationKind
	target  uuid.UUID
	payload entities.NotificationPayload
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, kind entities.NotificationKind, target uuid.UUID, payload entities.NotificationPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentNotification{kind: kind, target: target, payload: payload})
	return nil
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

type fakeReunions struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]entities.ReunionStatus
}

func newFakeReunions() *fakeReunions {
	return &fakeReunions{statuses: make(map[uuid.UUID]entities.ReunionStatus)}
}

func (f *fakeReunions) Create(_ context.Context, r *entities.Reunion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[r.ID] = r.Status
	return nil
}

func (f *fakeReunions) FindByID(_ context.Context, id uuid.UUID) (*entities.Reunion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[id]
	if !ok {
		return nil, entities.ErrReunionNotFound
	}
	return &entities.Reunion{ID: id, Status: status}, nil
}

func (f *fakeReunions) UpdateStatus(_ context.Context, id uuid.UUID, status entities.ReunionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

func (f *fakeReunions) Reschedule(_ context.Context, id uuid.UUID, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = entities.ReunionStatusScheduled
	return nil
}

func (f *fakeReunions) status(id uuid.UUID) entities.ReunionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

type fakeDirectory struct {
	names  map[uuid.UUID]string
	titles map[uuid.UUID]string
}

func (d fakeDirectory) Profile(_ context.Context, id uuid.UUID) entities.DisplayInfo {
	if name, ok := d.names[id]; ok {
		return entities.DisplayInfo{ID: id, Label: name}
	}
	return entities.FallbackDisplayInfo(id)
}

func (d fakeDirectory) MeetingTitle(_ context.Context, id uuid.UUID) string {
	return d.titles[id]
}

// brokenTransport fails every join
type brokenTransport struct{ livekit.Transport }

func (brokenTransport) Join(context.Context, string, uuid.UUID, string) (*livekit.JoinTicket, error) {
	return nil, errors.New("media server unreachable")
}

// gatedStore holds every status write until released
type gatedStore struct {
	*store.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.InvitationStatus, extra repositories.Extra) (repositories.UpdateResult, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.MemoryStore.UpdateStatus(ctx, id, status, extra)
}

type harness struct {
	clk       *clock.Mock
	store     *store.MemoryStore
	notifier  *recordingNotifier
	transport *livekit.MockClient
	reunions  *fakeReunions
	metrics   *metrics.Metrics
	deps      Dependencies
	opts      Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m := metrics.New("test", prometheus.NewRegistry())
	s := store.NewMemoryStore(clk, nil, m)
	notifier := &recordingNotifier{}
	transport := livekit.NewMockClient("ws://localhost:7880", "devkey", "devsecret-devsecret-devsecret-00")
	reunions := newFakeReunions()

	return &harness{
		clk:       clk,
		store:     s,
		notifier:  notifier,
		transport: transport,
		reunions:  reunions,
		metrics:   m,
		deps: Dependencies{
			Store:     s,
			Reunions:  reunions,
			Transport: transport,
			FanOut:    NewFanOut(notifier, nil, m),
		},
		opts: Options{RingWindow: window, Clock: clk, Metrics: m},
	}
}

func (h *harness) incoming(t *testing.T, identity uuid.UUID) *IncomingCoordinator {
	t.Helper()
	c := NewIncomingCoordinator(h.deps, nil, h.opts)
	require.NoError(t, c.Observe(context.Background(), identity))
	t.Cleanup(c.Close)
	return c
}

func (h *harness) outgoing(t *testing.T, identity uuid.UUID) *OutgoingCoordinator {
	t.Helper()
	c := NewOutgoingCoordinator(h.deps, nil, h.opts)
	require.NoError(t, c.Observe(context.Background(), identity))
	t.Cleanup(c.Close)
	return c
}

// invite creates a pending invitation created offset after the mock's current time
func (h *harness) invite(t *testing.T, caller, contact uuid.UUID, offset time.Duration) entities.Invitation {
	t.Helper()
	inv := &entities.Invitation{
		CallerID:  caller,
		ContactID: contact,
		ReunionID: uuid.New(),
		CreatedAt: h.clk.Now().Add(offset),
	}
	require.NoError(t, h.store.Create(context.Background(), inv))
	return *inv
}

func (h *harness) status(t *testing.T, id uuid.UUID) entities.InvitationStatus {
	t.Helper()
	inv, err := h.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return inv.Status
}

func currentID(c *IncomingCoordinator) uuid.UUID {
	if inv := c.CurrentInvitation(); inv != nil {
		return inv.ID
	}
	return uuid.Nil
}

func tracked(c *OutgoingCoordinator, id uuid.UUID) bool {
	for _, call := range c.ActiveOutgoingCalls() {
		if call.Invitation.ID == id {
			return true
		}
	}
	return false
}

// waitSignal reads from ch until a signal of type want arrives
func waitSignal(t *testing.T, ch <-chan Signal, want SignalType) Signal {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case sig, ok := <-ch:
			require.True(t, ok, "signal hub closed")
			if sig.Type == want {
				return sig
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s signal", want)
		}
	}
}
