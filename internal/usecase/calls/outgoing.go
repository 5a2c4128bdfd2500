package calls

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
	usecaseErrors "github.com/johnquangdev/meeting-calls/internal/usecase/errors"
)

// OutgoingCall is an invitation the identity sent, with what the UI shows for it
type OutgoingCall struct {
	Invitation   entities.Invitation  `json:"invitation"`
	Callee       entities.DisplayInfo `json:"callee"`
	MeetingTitle string               `json:"meeting_title"`
	Deadline     *time.Time           `json:"deadline,omitempty"`
}

type outgoingEntry struct {
	invitation entities.Invitation
	timer      expiryTimer
	callee     *entities.DisplayInfo
	title      string
}

// OutgoingCoordinator tracks the invitations an identity sent and expires
// the ones nobody answers.
type OutgoingCoordinator struct {
	deps    Dependencies
	opts    Options
	signals *Hub
	logger  *zap.Logger

	mu        sync.Mutex
	identity  uuid.UUID
	observing bool
	closed    bool
	entries   map[uuid.UUID]*outgoingEntry
	inflight  map[uuid.UUID]bool
	timers    timerArmer
	cancel    context.CancelFunc
	done      chan struct{}
	ops       sync.WaitGroup
}

// NewOutgoingCoordinator creates an idle coordinator; call Observe to start it
func NewOutgoingCoordinator(deps Dependencies, signals *Hub, opts Options) *OutgoingCoordinator {
	opts = opts.withDefaults()
	if signals == nil {
		signals = NewHub(opts.Logger)
	}
	return &OutgoingCoordinator{
		deps:     deps.withDefaults(),
		opts:     opts,
		signals:  signals,
		logger:   opts.Logger.Named("outgoing"),
		entries:  make(map[uuid.UUID]*outgoingEntry),
		inflight: make(map[uuid.UUID]bool),
		timers:   timerArmer{clock: opts.Clock},
	}
}

// Observe subscribes to the invitations identity sent to others
func (c *OutgoingCoordinator) Observe(ctx context.Context, identity uuid.UUID) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return usecaseErrors.ErrSessionClosed
	}
	if c.observing {
		c.mu.Unlock()
		return usecaseErrors.ErrAlreadyObserving
	}
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.observing = true
	c.identity = identity
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	snaps, err := c.deps.Store.Subscribe(subCtx, repositories.Filter{
		CallerID: &identity,
		Statuses: []entities.InvitationStatus{
			entities.InvitationStatusPending,
			entities.InvitationStatusAccepted,
			entities.InvitationStatusDeclined,
			entities.InvitationStatusMissed,
		},
	})
	if err != nil {
		cancel()
		close(done)
		return fmt.Errorf("failed to subscribe to outgoing invitations: %w", err)
	}

	c.logger.Info("observing outgoing invitations", zap.String("identity", identity.String()))
	go func() {
		defer close(done)
		for snap := range snaps {
			c.apply(snap)
		}
	}()
	return nil
}

func (c *OutgoingCoordinator) apply(snap repositories.Snapshot) {
	rows := snap.Invitations
	if snap.Err != nil {
		c.logger.Warn("outgoing snapshot failed, treating as empty", zap.Error(snap.Err))
		c.opts.Metrics.RecordSubscriptionError("outgoing")
		rows = nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	now := c.opts.Clock.Now()
	seen := make(map[uuid.UUID]bool, len(rows))
	changed := false
	var sigs []Signal
	var added []entities.Invitation

	for _, inv := range rows {
		if inv.CallerID != c.identity || inv.IsSelfAddressed() {
			continue
		}
		seen[inv.ID] = true

		e, ok := c.entries[inv.ID]
		if !ok {
			e = &outgoingEntry{invitation: inv}
			c.entries[inv.ID] = e
			if inv.IsPending() && !c.inflight[inv.ID] {
				c.armLocked(e, false)
			}
			added = append(added, inv)
			changed = true
			continue
		}

		prev := e.invitation.Status
		e.invitation = inv
		if prev != inv.Status {
			changed = true
		}
		// a reprogrammed meeting puts answered invitations back to pending
		if prev != entities.InvitationStatusPending && inv.IsPending() && !c.inflight[inv.ID] {
			c.armLocked(e, false)
		}
		if prev == entities.InvitationStatusPending && !inv.IsPending() {
			e.timer.stop()
			sigs = append(sigs, Signal{
				Type:         SignalCallOutcome,
				InvitationID: inv.ID,
				Status:       inv.Status,
				Data:         c.callLocked(e),
				At:           now,
			})
		}
	}

	for id, e := range c.entries {
		if !seen[id] {
			e.timer.stop()
			delete(c.entries, id)
			changed = true
		}
	}

	if changed {
		sigs = append(sigs, Signal{Type: SignalOutgoingChanged, Data: len(c.entries), At: now})
	}
	c.mu.Unlock()

	for _, sig := range sigs {
		c.signals.Publish(sig)
	}
	for _, inv := range added {
		c.enrich(inv)
	}
}

func (c *OutgoingCoordinator) armLocked(e *outgoingEntry, resume bool) {
	id := e.invitation.ID
	fire := func(token uint64) { c.onExpire(id, token) }
	if resume {
		c.timers.rearm(&e.timer, expiryRetryDelay, fire)
		return
	}
	c.timers.arm(&e.timer, c.opts.RingWindow, fire)
	e.timer.retries = 0
}

// onExpire marks an unanswered invitation missed from the caller's side.
// The callee may race us to it; the loser sees a stale write.
func (c *OutgoingCoordinator) onExpire(id uuid.UUID, token uint64) {
	c.mu.Lock()
	e := c.entries[id]
	if c.closed || e == nil || e.timer.token != token || !e.timer.armed() {
		c.mu.Unlock()
		return
	}
	e.timer.timer = nil
	c.inflight[id] = true
	c.ops.Add(1)
	c.mu.Unlock()
	defer c.ops.Done()

	c.opts.Metrics.RecordExpiry("outgoing")
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	res, err := c.deps.Store.UpdateStatus(ctx, id, entities.InvitationStatusMissed, repositories.Extra{})
	c.opts.Metrics.RecordTransition(string(entities.InvitationStatusMissed), writeResult(res, err))

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
	if c.closed {
		return
	}
	if err != nil {
		e := c.entries[id]
		if e == nil || !e.invitation.IsPending() {
			return
		}
		if !e.timer.retry() {
			c.logger.Error("giving up marking outgoing invitation missed",
				zap.String("invitation_id", id.String()),
				zap.Int("attempts", maxExpiryRetries+1),
				zap.Error(err),
			)
			return
		}
		c.logger.Warn("failed to mark outgoing invitation missed, retrying",
			zap.String("invitation_id", id.String()),
			zap.Error(err),
		)
		c.armLocked(e, true)
	}
}

// Cancel withdraws an invitation the identity sent. When nobody else is
// left in the meeting, the meeting is cancelled and its room closed.
func (c *OutgoingCoordinator) Cancel(ctx context.Context, invitationID uuid.UUID) (Outcome, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", usecaseErrors.ErrSessionClosed
	}
	e := c.entries[invitationID]
	if e == nil {
		c.mu.Unlock()
		return "", usecaseErrors.ErrInvitationNotTracked
	}
	if c.inflight[invitationID] {
		c.mu.Unlock()
		return OutcomeInFlight, nil
	}
	c.inflight[invitationID] = true
	e.timer.stop()
	inv := e.invitation
	identity := c.identity
	c.ops.Add(1)
	c.mu.Unlock()
	defer c.ops.Done()

	res, err := c.deps.Store.UpdateStatus(ctx, invitationID, entities.InvitationStatusCancelled, repositories.Extra{})
	c.opts.Metrics.RecordTransition(string(entities.InvitationStatusCancelled), writeResult(res, err))

	if err != nil {
		c.mu.Lock()
		delete(c.inflight, invitationID)
		if !c.closed {
			if e := c.entries[invitationID]; e != nil && e.invitation.IsPending() {
				c.armLocked(e, true)
			}
		}
		c.mu.Unlock()

		c.logger.Warn("failed to cancel invitation",
			zap.String("invitation_id", invitationID.String()),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %w", usecaseErrors.ErrStoreUnavailable, err)
	}

	c.mu.Lock()
	delete(c.inflight, invitationID)
	if res != repositories.UpdateApplied {
		c.mu.Unlock()
		return OutcomeStale, nil
	}
	closed := c.closed
	if !closed {
		delete(c.entries, invitationID)
	}
	count := len(c.entries)
	c.mu.Unlock()

	c.logger.Info("invitation cancelled", zap.String("invitation_id", invitationID.String()))
	if !closed {
		c.signals.Publish(Signal{Type: SignalOutgoingChanged, InvitationID: invitationID, Status: entities.InvitationStatusCancelled, Data: count, At: c.opts.Clock.Now()})
	}

	c.closeMeetingIfIdle(ctx, inv, identity)
	return OutcomeApplied, nil
}

// closeMeetingIfIdle cancels the meeting once only the host's own record is left
func (c *OutgoingCoordinator) closeMeetingIfIdle(ctx context.Context, inv entities.Invitation, host uuid.UUID) {
	remaining, err := c.deps.Store.CountActiveByReunion(ctx, inv.ReunionID, host)
	if err != nil {
		c.logger.Warn("failed to count remaining invitations",
			zap.String("reunion_id", inv.ReunionID.String()),
			zap.Error(err),
		)
		return
	}
	if remaining > 0 {
		return
	}

	if c.deps.Reunions != nil {
		if err := c.deps.Reunions.UpdateStatus(ctx, inv.ReunionID, entities.ReunionStatusCancelled); err != nil {
			c.logger.Warn("failed to cancel meeting",
				zap.String("reunion_id", inv.ReunionID.String()),
				zap.Error(err),
			)
		}
	}
	if c.deps.Transport != nil {
		if err := c.deps.Transport.CloseRoom(ctx, inv.JoinTarget()); err != nil {
			c.logger.Warn("failed to close room", zap.String("room", inv.JoinTarget()), zap.Error(err))
		}
	}
	c.logger.Info("meeting cancelled, no invitations left", zap.String("reunion_id", inv.ReunionID.String()))
}

// enrich attaches the callee and meeting title in the background
func (c *OutgoingCoordinator) enrich(inv entities.Invitation) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
		defer cancel()

		var callee entities.DisplayInfo
		var title string
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			callee = c.deps.Directory.Profile(gctx, inv.ContactID)
			return nil
		})
		g.Go(func() error {
			title = c.deps.Directory.MeetingTitle(gctx, inv.ReunionID)
			return nil
		})
		_ = g.Wait()

		c.mu.Lock()
		e := c.entries[inv.ID]
		if c.closed || e == nil {
			c.mu.Unlock()
			return
		}
		e.callee = &callee
		e.title = title
		count := len(c.entries)
		c.mu.Unlock()

		c.signals.Publish(Signal{Type: SignalOutgoingChanged, InvitationID: inv.ID, Data: count, At: c.opts.Clock.Now()})
	}()
}

func (c *OutgoingCoordinator) callLocked(e *outgoingEntry) OutgoingCall {
	call := OutgoingCall{
		Invitation:   e.invitation,
		Callee:       entities.FallbackDisplayInfo(e.invitation.ContactID),
		MeetingTitle: e.title,
	}
	if e.callee != nil {
		call.Callee = *e.callee
	}
	if e.timer.armed() {
		deadline := e.timer.deadline
		call.Deadline = &deadline
	}
	return call
}

// ActiveOutgoingCalls returns copies of the tracked calls, newest first
func (c *OutgoingCoordinator) ActiveOutgoingCalls() []OutgoingCall {
	c.mu.Lock()
	invitations := make([]entities.Invitation, 0, len(c.entries))
	calls := make(map[uuid.UUID]OutgoingCall, len(c.entries))
	for id, e := range c.entries {
		invitations = append(invitations, e.invitation)
		calls[id] = c.callLocked(e)
	}
	c.mu.Unlock()

	entities.SortNewestFirst(invitations)
	out := make([]OutgoingCall, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, calls[inv.ID])
	}
	return out
}

// Close unsubscribes and stops every timer; writes already running are waited for
func (c *OutgoingCoordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, e := range c.entries {
		e.timer.stop()
		delete(c.entries, id)
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.ops.Wait()
	if done != nil {
		<-done
	}
	c.logger.Debug("outgoing coordinator closed", zap.String("identity", c.identity.String()))
}
