package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
)

// ChannelPrefix prefixes the per-target live channel
const ChannelPrefix = "notifications:"

// ErrDeliveryUnavailable is returned while the breaker refuses new inserts
var ErrDeliveryUnavailable = errors.New("notification delivery unavailable")

// Publisher pushes a message on a pub/sub channel. *redis.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Config tunes delivery
type Config struct {
	// MaxElapsed bounds the retries of one durable insert
	MaxElapsed time.Duration
	// TripAfter consecutive failed deliveries open the breaker
	TripAfter uint32
	// OpenFor is how long the breaker stays open before probing again
	OpenFor time.Duration
}

// DefaultConfig returns the delivery settings used in production
func DefaultConfig() Config {
	return Config{
		MaxElapsed: 5 * time.Second,
		TripAfter:  5,
		OpenFor:    30 * time.Second,
	}
}

// Service persists notifications and pushes them live to their target
type Service struct {
	repo       repositories.NotificationRepository
	publisher  Publisher
	breaker    *gobreaker.CircuitBreaker[any]
	maxElapsed time.Duration
	logger     *zap.Logger
}

// NewService creates a notification service. publisher may be nil, in which
// case notifications are only stored.
func NewService(repo repositories.NotificationRepository, publisher Publisher, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = defaults.MaxElapsed
	}
	if cfg.TripAfter == 0 {
		cfg.TripAfter = defaults.TripAfter
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = defaults.OpenFor
	}
	logger = logger.Named("notification")

	tripAfter := cfg.TripAfter
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "notification_store",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("notification breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Service{
		repo:       repo,
		publisher:  publisher,
		breaker:    breaker,
		maxElapsed: cfg.MaxElapsed,
		logger:     logger,
	}
}

// Notify stores a notification for targetID and pushes it live
func (s *Service) Notify(ctx context.Context, kind entities.NotificationKind, targetID uuid.UUID, payload entities.NotificationPayload) error {
	if !kind.IsValid() {
		return fmt.Errorf("unknown notification kind %q", kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification payload: %w", err)
	}

	// a fixed id keeps retried inserts from creating duplicates
	n := &entities.Notification{
		ID:           uuid.New(),
		Kind:         kind,
		TargetID:     targetID,
		CallerID:     payload.CallerID,
		ReunionID:    payload.ReunionID,
		InvitationID: payload.InvitationID,
		Payload:      datatypes.JSON(raw),
		CreatedAt:    time.Now(),
	}

	_, err = s.breaker.Execute(func() (any, error) {
		return nil, s.persist(ctx, n)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.logger.Warn("dropping notification, store unavailable",
				zap.String("kind", string(kind)),
				zap.String("target_id", targetID.String()),
			)
			return fmt.Errorf("%w: %w", ErrDeliveryUnavailable, err)
		}
		return fmt.Errorf("failed to store notification: %w", err)
	}

	s.push(ctx, n)
	return nil
}

// persist inserts n, retrying with exponential backoff
func (s *Service) persist(ctx context.Context, n *entities.Notification) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = s.maxElapsed

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		if err := s.repo.Create(ctx, n); err != nil {
			s.logger.Debug("notification insert failed",
				zap.Int("attempt", attempt),
				zap.String("notification_id", n.ID.String()),
				zap.Error(err),
			)
			return err
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

// push publishes n on the target's channel; live delivery is best effort
func (s *Service) push(ctx context.Context, n *entities.Notification) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		s.logger.Warn("failed to encode notification", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, ChannelPrefix+n.TargetID.String(), body).Err(); err != nil {
		s.logger.Warn("failed to push notification",
			zap.String("notification_id", n.ID.String()),
			zap.Error(err),
		)
	}
}

// List returns the most recent notifications of targetID
func (s *Service) List(ctx context.Context, targetID uuid.UUID, limit int) ([]entities.Notification, error) {
	items, err := s.repo.ListByTarget(ctx, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, nil
}
