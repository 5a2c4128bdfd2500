package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/metrics"
)

// MemoryStore keeps invitations in process memory
type MemoryStore struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]entities.Invitation
	writeErr error
	readErr  error

	hub     *hub
	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
}

var _ repositories.InvitationStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		rows:    make(map[uuid.UUID]entities.Invitation),
		hub:     newHub(),
		clock:   clk,
		logger:  logger.Named("memory_store"),
		metrics: m,
	}
}

// FailWrites makes every write return err until called again with nil
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// FailReads makes every read and snapshot return err until called again with nil
func (s *MemoryStore) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// Put stores a row as-is, bypassing validation
func (s *MemoryStore) Put(inv entities.Invitation) {
	s.mu.Lock()
	s.rows[inv.ID] = inv
	s.mu.Unlock()

	s.hub.broadcast(changeFor(ChangeUpdated, &inv))
}

// Subscribers returns how many subscriptions are live
func (s *MemoryStore) Subscribers() int {
	return s.hub.count()
}

// Subscribe emits the matching set now and after every relevant change
func (s *MemoryStore) Subscribe(ctx context.Context, filter repositories.Filter) (<-chan repositories.Snapshot, error) {
	id, sub := s.hub.add(filter)
	out := make(chan repositories.Snapshot)

	go func() {
		defer close(out)
		defer s.hub.remove(id)

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.wake:
			}

			snap := s.snapshot(filter)
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *MemoryStore) snapshot(filter repositories.Filter) repositories.Snapshot {
	rows, err := s.Find(context.Background(), filter)
	if err != nil {
		return repositories.Snapshot{Err: err}
	}
	return repositories.Snapshot{Invitations: validRows(rows, s.logger, s.metrics)}
}

// Find returns every invitation matching the filter, newest first
func (s *MemoryStore) Find(_ context.Context, filter repositories.Filter) ([]entities.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return nil, s.readErr
	}

	var out []entities.Invitation
	for _, inv := range s.rows {
		if filter.Matches(&inv) {
			out = append(out, inv)
		}
	}
	entities.SortNewestFirst(out)
	return out, nil
}

// GetByID retrieves an invitation by its ID
func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*entities.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return nil, s.readErr
	}
	inv, ok := s.rows[id]
	if !ok {
		return nil, entities.ErrInvitationNotFound
	}
	return &inv, nil
}

// UpdateStatus performs the conditional transition out of pending
func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status entities.InvitationStatus, extra repositories.Extra) (repositories.UpdateResult, error) {
	if !entities.InvitationStatusPending.CanTransitionTo(status) {
		return repositories.UpdateStale, fmt.Errorf("%w: pending -> %s", entities.ErrInvalidTransition, status)
	}

	s.mu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return repositories.UpdateStale, err
	}
	inv, ok := s.rows[id]
	if !ok {
		s.mu.Unlock()
		return repositories.UpdateNotFound, nil
	}
	if !inv.IsPending() {
		s.mu.Unlock()
		return repositories.UpdateStale, nil
	}

	inv.Status = status
	if extra.Debut != nil {
		debut := *extra.Debut
		inv.Debut = &debut
	}
	if extra.Viewed != nil {
		inv.Viewed = *extra.Viewed
	}
	inv.UpdatedAt = s.clock.Now()
	s.rows[id] = inv
	s.mu.Unlock()

	s.hub.broadcast(changeFor(ChangeUpdated, &inv))
	return repositories.UpdateApplied, nil
}

// Create inserts a new invitation
func (s *MemoryStore) Create(_ context.Context, invitation *entities.Invitation) error {
	s.mu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return err
	}

	now := s.clock.Now()
	if invitation.ID == uuid.Nil {
		invitation.ID = uuid.New()
	}
	if invitation.Status == "" {
		invitation.Status = entities.InvitationStatusPending
	}
	if invitation.Role == "" {
		invitation.Role = entities.ParticipantRoleParticipant
	}
	if invitation.CreatedAt.IsZero() {
		invitation.CreatedAt = now
	}
	invitation.UpdatedAt = now

	if err := invitation.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, exists := s.rows[invitation.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("invitation %s already exists", invitation.ID)
	}
	s.rows[invitation.ID] = *invitation
	s.mu.Unlock()

	s.hub.broadcast(changeFor(ChangeCreated, invitation))
	return nil
}

// ListByReunion retrieves every invitation of a meeting, oldest first
func (s *MemoryStore) ListByReunion(_ context.Context, reunionID uuid.UUID) ([]entities.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return nil, s.readErr
	}

	var out []entities.Invitation
	for _, inv := range s.rows {
		if inv.ReunionID == reunionID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

// CountActiveByReunion counts pending or accepted invitations, ignoring the given contact
func (s *MemoryStore) CountActiveByReunion(_ context.Context, reunionID, excludeContactID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return 0, s.readErr
	}

	var n int64
	for _, inv := range s.rows {
		if inv.ReunionID != reunionID || inv.ContactID == excludeContactID {
			continue
		}
		if inv.Status == entities.InvitationStatusPending || inv.Status == entities.InvitationStatusAccepted {
			n++
		}
	}
	return n, nil
}

// ResetForReunion puts every invitation of a meeting back to pending with a new room
func (s *MemoryStore) ResetForReunion(_ context.Context, reunionID uuid.UUID, roomID, url string) error {
	s.mu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return err
	}
	now := s.clock.Now()
	for id, inv := range s.rows {
		if inv.ReunionID != reunionID {
			continue
		}
		inv.Status = entities.InvitationStatusPending
		inv.Viewed = false
		inv.Debut = nil
		inv.DateFin = nil
		inv.RoomID = roomID
		inv.URL = url
		inv.UpdatedAt = now
		s.rows[id] = inv
	}
	s.mu.Unlock()

	s.hub.broadcast(Change{Type: ChangeReset, ReunionID: reunionID})
	return nil
}

// MarkEnded records when the callee left the call
func (s *MemoryStore) MarkEnded(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return err
	}
	inv, ok := s.rows[id]
	if !ok {
		s.mu.Unlock()
		return entities.ErrInvitationNotFound
	}
	inv.DateFin = &at
	inv.UpdatedAt = s.clock.Now()
	s.rows[id] = inv
	s.mu.Unlock()

	s.hub.broadcast(changeFor(ChangeUpdated, &inv))
	return nil
}
