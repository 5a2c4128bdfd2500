package livekit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	livekit "github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

// Transport starts and stops the media side of a call. Only invoked after an
// invitation reached accepted.
type Transport interface {
	// EnsureRoom creates the room if it does not exist yet
	EnsureRoom(ctx context.Context, roomID string) error
	// Join issues the credentials a participant uses to connect to roomID
	Join(ctx context.Context, roomID string, identity uuid.UUID, name string) (*JoinTicket, error)
	// Leave disconnects a participant from roomID
	Leave(ctx context.Context, roomID string, identity uuid.UUID) error
	// CloseRoom tears the room down for everyone
	CloseRoom(ctx context.Context, roomID string) error
}

// JoinTicket holds what a client needs to connect to the media server
type JoinTicket struct {
	URL       string    `json:"url"`
	Room      string    `json:"room"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Options tunes room creation and tokens
type Options struct {
	TokenTTL         time.Duration
	MaxParticipants  uint32
	EmptyTimeout     uint32 // seconds - auto-delete if no one joins
	DepartureTimeout uint32 // seconds - auto-delete after last participant leaves
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		TokenTTL:         2 * time.Hour,
		MaxParticipants:  50,
		EmptyTimeout:     300,
		DepartureTimeout: 30,
	}
}

// realClient is the LiveKit-backed transport
type realClient struct {
	roomClient *lksdk.RoomServiceClient
	apiKey     string
	apiSecret  string
	url        string
	opts       Options
}

// NewClient creates a new LiveKit transport
func NewClient(url, apiKey, apiSecret string, useMock bool) Transport {
	opts := DefaultOptions()
	if useMock {
		return NewMockClient(url, apiKey, apiSecret)
	}

	return &realClient{
		roomClient: lksdk.NewRoomServiceClient(url, apiKey, apiSecret),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		url:        url,
		opts:       opts,
	}
}

// EnsureRoom creates the room in LiveKit. Creating an existing room is a no-op there.
func (c *realClient) EnsureRoom(ctx context.Context, roomID string) error {
	_, err := c.roomClient.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:             roomID,
		MaxParticipants:  c.opts.MaxParticipants,
		EmptyTimeout:     c.opts.EmptyTimeout,
		DepartureTimeout: c.opts.DepartureTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// Join ensures the room exists and issues a join token
func (c *realClient) Join(ctx context.Context, roomID string, identity uuid.UUID, name string) (*JoinTicket, error) {
	if err := c.EnsureRoom(ctx, roomID); err != nil {
		return nil, err
	}
	token, expires, err := issueToken(c.apiKey, c.apiSecret, roomID, identity, name, c.opts.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &JoinTicket{URL: c.url, Room: roomID, Token: token, ExpiresAt: expires}, nil
}

// Leave removes a participant from a room
func (c *realClient) Leave(ctx context.Context, roomID string, identity uuid.UUID) error {
	_, err := c.roomClient.RemoveParticipant(ctx, &livekit.RoomParticipantIdentity{
		Room:     roomID,
		Identity: identity.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}

// CloseRoom deletes a room from LiveKit
func (c *realClient) CloseRoom(ctx context.Context, roomID string) error {
	_, err := c.roomClient.DeleteRoom(ctx, &livekit.DeleteRoomRequest{
		Room: roomID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

func issueToken(apiKey, apiSecret, roomID string, identity uuid.UUID, name string, ttl time.Duration) (string, time.Time, error) {
	canPublish, canSubscribe, canPublishData := true, true, true

	at := auth.NewAccessToken(apiKey, apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           roomID,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}

	at.AddGrant(grant).
		SetIdentity(identity.String()).
		SetName(name).
		SetValidFor(ttl)

	token, err := at.ToJWT()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}
	return token, time.Now().Add(ttl), nil
}

// MockClient is an in-process transport for development without a media server
type MockClient struct {
	url       string
	apiKey    string
	apiSecret string

	mu      sync.Mutex
	members map[string]map[uuid.UUID]struct{}
}

// NewMockClient creates a transport that only tracks room membership
func NewMockClient(url, apiKey, apiSecret string) *MockClient {
	return &MockClient{
		url:       url,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		members:   make(map[string]map[uuid.UUID]struct{}),
	}
}

// EnsureRoom (mock) registers the room
func (m *MockClient) EnsureRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[roomID]; !ok {
		m.members[roomID] = make(map[uuid.UUID]struct{})
	}
	return nil
}

// Join (mock) records the participant and issues a real signed token
func (m *MockClient) Join(ctx context.Context, roomID string, identity uuid.UUID, name string) (*JoinTicket, error) {
	if err := m.EnsureRoom(ctx, roomID); err != nil {
		return nil, err
	}
	token, expires, err := issueToken(m.apiKey, m.apiSecret, roomID, identity, name, DefaultOptions().TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate mock token: %w", err)
	}

	m.mu.Lock()
	m.members[roomID][identity] = struct{}{}
	m.mu.Unlock()

	return &JoinTicket{URL: m.url, Room: roomID, Token: token, ExpiresAt: expires}, nil
}

// Leave (mock) forgets the participant
func (m *MockClient) Leave(_ context.Context, roomID string, identity uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members[roomID], identity)
	return nil
}

// CloseRoom (mock) drops the room
func (m *MockClient) CloseRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, roomID)
	return nil
}

// Members returns who is currently in roomID
func (m *MockClient) Members(roomID string) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]uuid.UUID, 0, len(m.members[roomID]))
	for id := range m.members[roomID] {
		out = append(out, id)
	}
	return out
}
