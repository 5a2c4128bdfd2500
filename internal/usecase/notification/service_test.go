package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
)

type flakyRepo struct {
	mu       sync.Mutex
	failures int
	calls    int
	stored   []entities.Notification
}

func (r *flakyRepo) Create(_ context.Context, n *entities.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failures < 0 || r.calls <= r.failures {
		return errors.New("connection refused")
	}
	r.stored = append(r.stored, *n)
	return nil
}

func (r *flakyRepo) ListByTarget(_ context.Context, targetID uuid.UUID, _ int) ([]entities.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.Notification
	for _, n := range r.stored {
		if n.TargetID == targetID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *flakyRepo) attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	bodies   [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	if body, ok := message.([]byte); ok {
		p.bodies = append(p.bodies, body)
	}
	return redis.NewIntResult(1, nil)
}

func fastConfig() Config {
	return Config{MaxElapsed: 50 * time.Millisecond, TripAfter: 2, OpenFor: time.Minute}
}

func TestNotify_StoresAndPushes(t *testing.T) {
	repo := &flakyRepo{}
	pub := &recordingPublisher{}
	svc := NewService(repo, pub, fastConfig(), nil)

	caller, target := uuid.New(), uuid.New()
	payload := entities.NotificationPayload{CallerID: caller, ReunionID: uuid.New(), InvitationID: uuid.New(), UserName: "Bob"}

	require.NoError(t, svc.Notify(context.Background(), entities.NotificationKindAccepted, target, payload))

	items, err := svc.List(context.Background(), target, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, entities.NotificationKindAccepted, items[0].Kind)
	assert.Equal(t, payload.InvitationID, items[0].InvitationID)

	var decoded entities.NotificationPayload
	require.NoError(t, json.Unmarshal(items[0].Payload, &decoded))
	assert.Equal(t, "Bob", decoded.UserName)

	require.Len(t, pub.channels, 1)
	assert.Equal(t, ChannelPrefix+target.String(), pub.channels[0])
}

func TestNotify_RetriesTransientInsertFailures(t *testing.T) {
	repo := &flakyRepo{failures: 2}
	svc := NewService(repo, nil, Config{MaxElapsed: 5 * time.Second}, nil)

	err := svc.Notify(context.Background(), entities.NotificationKindDeclined, uuid.New(), entities.NotificationPayload{})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.attempts())

	// every attempt carried the same id
	require.Len(t, repo.stored, 1)
}

func TestNotify_GivesUpAndTripsBreaker(t *testing.T) {
	repo := &flakyRepo{failures: -1}
	svc := NewService(repo, nil, fastConfig(), nil)
	target := uuid.New()

	for i := 0; i < 2; i++ {
		err := svc.Notify(context.Background(), entities.NotificationKindReceived, target, entities.NotificationPayload{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDeliveryUnavailable)
	}

	before := repo.attempts()
	err := svc.Notify(context.Background(), entities.NotificationKindReceived, target, entities.NotificationPayload{})
	assert.ErrorIs(t, err, ErrDeliveryUnavailable)
	assert.Equal(t, before, repo.attempts())
}

func TestNotify_RejectsUnknownKind(t *testing.T) {
	repo := &flakyRepo{}
	svc := NewService(repo, nil, fastConfig(), nil)

	err := svc.Notify(context.Background(), entities.NotificationKind("invitation_missed"), uuid.New(), entities.NotificationPayload{})
	assert.Error(t, err)
	assert.Zero(t, repo.attempts())
}
