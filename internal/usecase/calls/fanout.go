package calls

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/metrics"
)

const defaultNotifyTimeout = 10 * time.Second

// Notifier delivers a durable advisory notification to targetID
type Notifier interface {
	Notify(ctx context.Context, kind entities.NotificationKind, targetID uuid.UUID, payload entities.NotificationPayload) error
}

// FanOut turns committed transitions into notifications for the other party.
// Delivery runs in the background; failures are logged and counted, and never
// affect the status write that triggered them.
type FanOut struct {
	notifier Notifier
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewFanOut creates a fan-out over notifier
func NewFanOut(notifier Notifier, logger *zap.Logger, m *metrics.Metrics) *FanOut {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanOut{
		notifier: notifier,
		timeout:  defaultNotifyTimeout,
		logger:   logger.Named("fanout"),
		metrics:  m,
	}
}

// Resolved reports the callee's answer to the caller. Only accepted and
// declined reach the caller; expiry and cancellation are visible through the store.
func (f *FanOut) Resolved(ctx context.Context, inv entities.Invitation, status entities.InvitationStatus, callee entities.DisplayInfo) {
	var kind entities.NotificationKind
	switch status {
	case entities.InvitationStatusAccepted:
		kind = entities.NotificationKindAccepted
	case entities.InvitationStatusDeclined:
		kind = entities.NotificationKindDeclined
	default:
		return
	}

	f.send(ctx, kind, inv.CallerID, entities.NotificationPayload{
		CallerID:     inv.CallerID,
		ReunionID:    inv.ReunionID,
		InvitationID: inv.ID,
		UserName:     callee.Label,
		CalleeID:     inv.ContactID,
	})
}

// Received tells a callee a new invitation is waiting
func (f *FanOut) Received(ctx context.Context, inv entities.Invitation, caller entities.DisplayInfo) {
	f.send(ctx, entities.NotificationKindReceived, inv.ContactID, entities.NotificationPayload{
		CallerID:     inv.CallerID,
		ReunionID:    inv.ReunionID,
		InvitationID: inv.ID,
		UserName:     caller.Label,
	})
}

func (f *FanOut) send(ctx context.Context, kind entities.NotificationKind, target uuid.UUID, payload entities.NotificationPayload) {
	if f == nil || f.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()

		if err := f.notifier.Notify(ctx, kind, target, payload); err != nil {
			f.logger.Warn("notification not delivered",
				zap.String("kind", string(kind)),
				zap.String("target_id", target.String()),
				zap.String("invitation_id", payload.InvitationID.String()),
				zap.Error(err),
			)
			f.metrics.RecordNotification(string(kind), "failed")
			return
		}
		f.metrics.RecordNotification(string(kind), "delivered")
	}()
}
