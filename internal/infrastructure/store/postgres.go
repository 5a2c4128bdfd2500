package store

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/metrics"
)

const publishTimeout = 2 * time.Second

// PostgresStore serves subscriptions from the invitation repository. Writes
// made here wake local subscribers directly and are announced on the feed so
// subscribers in other processes re-read too. A periodic resync covers lost
// feed messages.
type PostgresStore struct {
	repositories.InvitationRepository

	feed    ChangeFeed
	hub     *hub
	resync  time.Duration
	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
}

var _ repositories.InvitationStore = (*PostgresStore)(nil)

// PostgresStoreConfig holds the optional collaborators of a PostgresStore
type PostgresStoreConfig struct {
	ResyncInterval time.Duration
	Clock          clock.Clock
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

// NewPostgresStore wraps repo with a change feed. feed may be nil for a single process.
func NewPostgresStore(repo repositories.InvitationRepository, feed ChangeFeed, cfg PostgresStoreConfig) *PostgresStore {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = 15 * time.Second
	}
	return &PostgresStore{
		InvitationRepository: repo,
		feed:                 feed,
		hub:                  newHub(),
		resync:               cfg.ResyncInterval,
		clock:                cfg.Clock,
		logger:               cfg.Logger.Named("postgres_store"),
		metrics:              cfg.Metrics,
	}
}

// Start relays feed messages to local subscribers until ctx is done
func (s *PostgresStore) Start(ctx context.Context) error {
	if s.feed == nil {
		return nil
	}
	changes, err := s.feed.Listen(ctx)
	if err != nil {
		return err
	}

	go func() {
		for change := range changes {
			s.hub.broadcast(change)
		}
		s.logger.Info("change feed closed")
	}()
	return nil
}

// Subscribe emits the matching set now, after every relevant change and on every resync tick
func (s *PostgresStore) Subscribe(ctx context.Context, filter repositories.Filter) (<-chan repositories.Snapshot, error) {
	id, sub := s.hub.add(filter)
	out := make(chan repositories.Snapshot)

	go func() {
		defer close(out)
		defer s.hub.remove(id)

		ticker := s.clock.Ticker(s.resync)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.wake:
			case <-ticker.C:
			}

			snap := s.snapshot(ctx, filter)
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *PostgresStore) snapshot(ctx context.Context, filter repositories.Filter) repositories.Snapshot {
	rows, err := s.Find(ctx, filter)
	if err != nil {
		s.logger.Warn("failed to read snapshot", zap.Error(err))
		return repositories.Snapshot{Err: err}
	}
	return repositories.Snapshot{Invitations: validRows(rows, s.logger, s.metrics)}
}

// UpdateStatus performs the conditional transition and announces it when applied
func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.InvitationStatus, extra repositories.Extra) (repositories.UpdateResult, error) {
	res, err := s.InvitationRepository.UpdateStatus(ctx, id, status, extra)
	if err != nil || res != repositories.UpdateApplied {
		return res, err
	}

	change := Change{Type: ChangeUpdated, InvitationID: id}
	if inv, err := s.InvitationRepository.GetByID(ctx, id); err == nil {
		change = changeFor(ChangeUpdated, inv)
	}
	s.announce(change)
	return res, nil
}

// Create inserts a new invitation and announces it
func (s *PostgresStore) Create(ctx context.Context, invitation *entities.Invitation) error {
	if err := s.InvitationRepository.Create(ctx, invitation); err != nil {
		return err
	}
	s.announce(changeFor(ChangeCreated, invitation))
	return nil
}

// ResetForReunion resets a meeting's invitations and announces it
func (s *PostgresStore) ResetForReunion(ctx context.Context, reunionID uuid.UUID, roomID, url string) error {
	if err := s.InvitationRepository.ResetForReunion(ctx, reunionID, roomID, url); err != nil {
		return err
	}
	s.announce(Change{Type: ChangeReset, ReunionID: reunionID})
	return nil
}

// MarkEnded records the leave time and announces it
func (s *PostgresStore) MarkEnded(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := s.InvitationRepository.MarkEnded(ctx, id, at); err != nil {
		return err
	}
	s.announce(Change{Type: ChangeUpdated, InvitationID: id})
	return nil
}

// announce wakes local subscribers and publishes to other processes.
// The write is already committed, so a publish failure is only logged.
func (s *PostgresStore) announce(change Change) {
	s.hub.broadcast(change)
	if s.feed == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.feed.Publish(ctx, change); err != nil {
		s.logger.Warn("failed to publish change",
			zap.String("type", change.Type),
			zap.String("invitation_id", change.InvitationID.String()),
			zap.Error(err),
		)
	}
}
