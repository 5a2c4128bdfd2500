package calls

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/external/livekit"
	usecaseErrors "github.com/johnquangdev/meeting-calls/internal/usecase/errors"
)

// IncomingState is what the callee's session is doing
type IncomingState string

const (
	StateIdle    IncomingState = "idle"
	StateRinging IncomingState = "ringing"
	StateJoining IncomingState = "joining"
	StateInCall  IncomingState = "in_call"
)

// ActiveCall is the accepted invitation the callee joined
type ActiveCall struct {
	Invitation entities.Invitation `json:"invitation"`
	Ticket     *livekit.JoinTicket `json:"ticket,omitempty"`
}

// IncomingView is a consistent read of the incoming side
type IncomingView struct {
	State        IncomingState         `json:"state"`
	Current      *entities.Invitation  `json:"current,omitempty"`
	Caller       *entities.DisplayInfo `json:"caller,omitempty"`
	RingDeadline *time.Time            `json:"ring_deadline,omitempty"`
	PendingCount int                   `json:"pending_count"`
	Active       *ActiveCall           `json:"active,omitempty"`
}

// ringSession pairs the invitation being presented with its expiry timer
type ringSession struct {
	invitation entities.Invitation
	timer      expiryTimer
}

// IncomingCoordinator presents the callee's pending invitations one at a
// time, newest first, and resolves each by answer or expiry.
type IncomingCoordinator struct {
	deps    Dependencies
	opts    Options
	signals *Hub
	logger  *zap.Logger

	mu        sync.Mutex
	identity  uuid.UUID
	observing bool
	closed    bool
	queue     []entities.Invitation
	session   *ringSession
	inflight  map[uuid.UUID]bool
	resolved  map[uuid.UUID]bool
	callers   map[uuid.UUID]entities.DisplayInfo
	state     IncomingState
	active    *ActiveCall
	timers    timerArmer
	cancel    context.CancelFunc
	done      chan struct{}
	ops       sync.WaitGroup
}

// NewIncomingCoordinator creates an idle coordinator; call Observe to start it
func NewIncomingCoordinator(deps Dependencies, signals *Hub, opts Options) *IncomingCoordinator {
	opts = opts.withDefaults()
	if signals == nil {
		signals = NewHub(opts.Logger)
	}
	return &IncomingCoordinator{
		deps:     deps.withDefaults(),
		opts:     opts,
		signals:  signals,
		logger:   opts.Logger.Named("incoming"),
		inflight: make(map[uuid.UUID]bool),
		resolved: make(map[uuid.UUID]bool),
		callers:  make(map[uuid.UUID]entities.DisplayInfo),
		state:    StateIdle,
		timers:   timerArmer{clock: opts.Clock},
	}
}

// Observe subscribes to the pending invitations addressed to identity.
// The subscription outlives ctx and ends with Close.
func (c *IncomingCoordinator) Observe(ctx context.Context, identity uuid.UUID) error {
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
		ContactID: &identity,
		Statuses:  []entities.InvitationStatus{entities.InvitationStatusPending},
	})
	if err != nil {
		cancel()
		close(done)
		return fmt.Errorf("failed to subscribe to incoming invitations: %w", err)
	}

	c.logger.Info("observing incoming invitations", zap.String("identity", identity.String()))
	go c.run(snaps, done)
	return nil
}

func (c *IncomingCoordinator) run(snaps <-chan repositories.Snapshot, done chan struct{}) {
	defer close(done)
	for snap := range snaps {
		c.apply(snap)
	}
}

// apply replaces the queue with the snapshot and re-evaluates the head
func (c *IncomingCoordinator) apply(snap repositories.Snapshot) {
	rows := snap.Invitations
	if snap.Err != nil {
		c.logger.Warn("incoming snapshot failed, treating as empty", zap.Error(snap.Err))
		c.opts.Metrics.RecordSubscriptionError("incoming")
		rows = nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	present := make(map[uuid.UUID]bool, len(rows))
	queue := make([]entities.Invitation, 0, len(rows))
	for _, inv := range rows {
		present[inv.ID] = true
		if inv.ContactID != c.identity || inv.IsSelfAddressed() || !inv.IsPending() || c.resolved[inv.ID] {
			continue
		}
		queue = append(queue, inv)
	}
	if snap.Err == nil {
		for id := range c.resolved {
			if !present[id] {
				delete(c.resolved, id)
			}
		}
	}
	entities.SortNewestFirst(queue)
	c.queue = queue

	sigs, lookup := c.promoteLocked()
	c.mu.Unlock()

	c.emit(sigs)
	c.enrichCaller(lookup)
}

// promoteLocked makes the queue head the ring session, restarting the
// window whenever the head changes.
func (c *IncomingCoordinator) promoteLocked() ([]Signal, *uuid.UUID) {
	now := c.opts.Clock.Now()
	cur := c.session

	if len(c.queue) == 0 {
		if cur == nil {
			return nil, nil
		}
		cur.timer.stop()
		c.session = nil
		if c.state == StateRinging {
			c.state = StateIdle
		}
		return []Signal{
			{Type: SignalRingStop, InvitationID: cur.invitation.ID, At: now},
			{Type: SignalHeadChanged, At: now},
		}, nil
	}

	head := c.queue[0]
	if cur != nil && cur.invitation.ID == head.ID {
		cur.invitation = head
		return nil, nil
	}

	if cur != nil {
		cur.timer.stop()
	}
	sess := &ringSession{invitation: head}
	c.session = sess
	if c.inflight[head.ID] {
		sess.timer.deadline = now.Add(c.opts.RingWindow)
	} else {
		c.armLocked(sess, false)
	}
	if c.state == StateIdle {
		c.state = StateRinging
	}

	caller := c.callerLocked(head.CallerID)
	sigs := []Signal{{Type: SignalHeadChanged, InvitationID: head.ID, Status: head.Status, Data: caller, At: now}}
	if cur == nil {
		sigs = append(sigs, Signal{Type: SignalRingStart, InvitationID: head.ID, At: now})
	}

	var lookup *uuid.UUID
	if _, ok := c.callers[head.CallerID]; !ok {
		id := head.CallerID
		lookup = &id
	}
	return sigs, lookup
}

// armLocked starts the session's window, or resumes it when resume is set
func (c *IncomingCoordinator) armLocked(sess *ringSession, resume bool) {
	id := sess.invitation.ID
	fire := func(token uint64) { c.onExpire(id, token) }
	if resume {
		c.timers.rearm(&sess.timer, expiryRetryDelay, fire)
		return
	}
	c.timers.arm(&sess.timer, c.opts.RingWindow, fire)
	sess.timer.retries = 0
}

// onExpire marks the ringing invitation missed once its window elapsed
func (c *IncomingCoordinator) onExpire(id uuid.UUID, token uint64) {
	c.mu.Lock()
	sess := c.session
	if c.closed || sess == nil || sess.invitation.ID != id || sess.timer.token != token || !sess.timer.armed() {
		c.mu.Unlock()
		return
	}
	sess.timer.timer = nil
	c.inflight[id] = true
	c.ops.Add(1)
	c.mu.Unlock()
	defer c.ops.Done()

	c.opts.Metrics.RecordExpiry("incoming")
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	res, err := c.deps.Store.UpdateStatus(ctx, id, entities.InvitationStatusMissed, repositories.Extra{Viewed: boolPtr(true)})
	c.opts.Metrics.RecordTransition(string(entities.InvitationStatusMissed), writeResult(res, err))

	c.mu.Lock()
	delete(c.inflight, id)
	if c.closed {
		c.mu.Unlock()
		return
	}
	if err != nil {
		if sess := c.session; sess != nil && sess.invitation.ID == id {
			if sess.timer.retry() {
				c.logger.Warn("failed to mark invitation missed, retrying",
					zap.String("invitation_id", id.String()),
					zap.Error(err),
				)
				c.armLocked(sess, true)
			} else {
				c.logger.Error("giving up marking invitation missed",
					zap.String("invitation_id", id.String()),
					zap.Int("attempts", maxExpiryRetries+1),
					zap.Error(err),
				)
			}
		}
		c.mu.Unlock()
		return
	}

	c.logger.Debug("ring window elapsed",
		zap.String("invitation_id", id.String()),
		zap.String("result", res.String()),
	)
	c.resolveLocked(id)
	sigs, lookup := c.promoteLocked()
	c.mu.Unlock()

	c.emit(sigs)
	c.enrichCaller(lookup)
}

// Accept answers invitationID and joins the call
func (c *IncomingCoordinator) Accept(ctx context.Context, invitationID uuid.UUID) (Outcome, error) {
	return c.answer(ctx, invitationID, entities.InvitationStatusAccepted)
}

// Decline refuses invitationID
func (c *IncomingCoordinator) Decline(ctx context.Context, invitationID uuid.UUID) (Outcome, error) {
	return c.answer(ctx, invitationID, entities.InvitationStatusDeclined)
}

// AcceptCurrent accepts whatever is ringing now
func (c *IncomingCoordinator) AcceptCurrent(ctx context.Context) (Outcome, error) {
	id, ok := c.currentID()
	if !ok {
		return "", usecaseErrors.ErrNoCurrentInvitation
	}
	return c.Accept(ctx, id)
}

// DeclineCurrent declines whatever is ringing now
func (c *IncomingCoordinator) DeclineCurrent(ctx context.Context) (Outcome, error) {
	id, ok := c.currentID()
	if !ok {
		return "", usecaseErrors.ErrNoCurrentInvitation
	}
	return c.Decline(ctx, id)
}

func (c *IncomingCoordinator) currentID() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return uuid.Nil, false
	}
	return c.session.invitation.ID, true
}

func (c *IncomingCoordinator) answer(ctx context.Context, id uuid.UUID, status entities.InvitationStatus) (Outcome, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", usecaseErrors.ErrSessionClosed
	}
	inv, ok := c.findLocked(id)
	if !ok {
		c.mu.Unlock()
		return OutcomeStale, nil
	}
	if c.inflight[id] {
		c.mu.Unlock()
		return OutcomeInFlight, nil
	}
	c.inflight[id] = true
	if c.session != nil && c.session.invitation.ID == id {
		c.session.timer.stop()
	}
	identity := c.identity
	c.ops.Add(1)
	c.mu.Unlock()
	defer c.ops.Done()

	now := c.opts.Clock.Now()
	extra := repositories.Extra{Viewed: boolPtr(true)}
	if status == entities.InvitationStatusAccepted {
		extra.Debut = &now
	}

	res, err := c.deps.Store.UpdateStatus(ctx, id, status, extra)
	c.opts.Metrics.RecordTransition(string(status), writeResult(res, err))

	if err != nil {
		c.mu.Lock()
		delete(c.inflight, id)
		if !c.closed && c.session != nil && c.session.invitation.ID == id {
			c.armLocked(c.session, true)
		}
		c.mu.Unlock()

		c.logger.Warn("failed to answer invitation",
			zap.String("invitation_id", id.String()),
			zap.String("status", status.String()),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %w", usecaseErrors.ErrStoreUnavailable, err)
	}

	if res != repositories.UpdateApplied {
		c.mu.Lock()
		delete(c.inflight, id)
		var sigs []Signal
		var lookup *uuid.UUID
		if !c.closed {
			c.resolveLocked(id)
			sigs, lookup = c.promoteLocked()
		}
		c.mu.Unlock()

		c.emit(sigs)
		c.enrichCaller(lookup)
		return OutcomeStale, nil
	}

	callee := c.deps.Directory.Profile(ctx, identity)
	c.deps.FanOut.Resolved(ctx, inv, status, callee)

	inv.Status = status
	inv.Viewed = true
	if status == entities.InvitationStatusAccepted {
		inv.Debut = &now
	}

	c.mu.Lock()
	delete(c.inflight, id)
	if c.closed {
		c.mu.Unlock()
		return OutcomeApplied, nil
	}
	c.resolveLocked(id)
	var sigs []Signal
	var previous *ActiveCall
	if status == entities.InvitationStatusAccepted {
		previous = c.active
		c.active = &ActiveCall{Invitation: inv}
		c.state = StateJoining
		sigs = append(sigs, Signal{Type: SignalJoining, InvitationID: id, Status: status, At: now})
	}
	more, lookup := c.promoteLocked()
	c.mu.Unlock()

	c.emit(append(sigs, more...))
	c.enrichCaller(lookup)

	c.logger.Info("invitation answered",
		zap.String("invitation_id", id.String()),
		zap.String("status", status.String()),
	)

	if status == entities.InvitationStatusAccepted {
		// one call at a time: the previous room is left before joining
		if previous != nil {
			c.endCall(ctx, previous.Invitation, identity)
		}
		c.join(ctx, inv, identity, callee.Label)
	}
	return OutcomeApplied, nil
}

// join starts the media side of an accepted invitation
func (c *IncomingCoordinator) join(ctx context.Context, inv entities.Invitation, identity uuid.UUID, name string) {
	var ticket *livekit.JoinTicket
	var err error
	if c.deps.Transport != nil {
		ticket, err = c.deps.Transport.Join(ctx, inv.JoinTarget(), identity, name)
	}

	c.mu.Lock()
	if c.closed || c.active == nil || c.active.Invitation.ID != inv.ID {
		c.mu.Unlock()
		return
	}
	now := c.opts.Clock.Now()
	sig := Signal{InvitationID: inv.ID, Status: inv.Status, At: now}
	if err != nil {
		c.logger.Error("failed to join call",
			zap.String("invitation_id", inv.ID.String()),
			zap.String("room", inv.JoinTarget()),
			zap.Error(err),
		)
		c.active = nil
		c.state = c.restingStateLocked()
		sig.Type = SignalJoinFailed
	} else {
		c.active.Ticket = ticket
		c.state = StateInCall
		sig.Type = SignalJoined
		sig.Data = ticket
	}
	c.mu.Unlock()

	c.signals.Publish(sig)
}

// Leave ends the joined call and records when it ended
func (c *IncomingCoordinator) Leave(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return usecaseErrors.ErrSessionClosed
	}
	active := c.active
	if active == nil {
		c.mu.Unlock()
		return usecaseErrors.ErrNotInCall
	}
	c.active = nil
	c.state = c.restingStateLocked()
	identity := c.identity
	c.ops.Add(1)
	c.mu.Unlock()
	defer c.ops.Done()

	c.endCall(ctx, active.Invitation, identity)
	return nil
}

// endCall leaves the room of inv and records when the call ended, best effort
func (c *IncomingCoordinator) endCall(ctx context.Context, inv entities.Invitation, identity uuid.UUID) {
	if c.deps.Transport != nil {
		if err := c.deps.Transport.Leave(ctx, inv.JoinTarget(), identity); err != nil {
			c.logger.Warn("failed to leave room", zap.String("room", inv.JoinTarget()), zap.Error(err))
		}
	}
	now := c.opts.Clock.Now()
	if err := c.deps.Store.MarkEnded(ctx, inv.ID, now); err != nil {
		c.logger.Warn("failed to record call end", zap.String("invitation_id", inv.ID.String()), zap.Error(err))
	}

	c.signals.Publish(Signal{Type: SignalLeft, InvitationID: inv.ID, At: now})
}

func (c *IncomingCoordinator) restingStateLocked() IncomingState {
	if c.session != nil {
		return StateRinging
	}
	return StateIdle
}

func (c *IncomingCoordinator) findLocked(id uuid.UUID) (entities.Invitation, bool) {
	for _, inv := range c.queue {
		if inv.ID == id {
			return inv, true
		}
	}
	return entities.Invitation{}, false
}

// resolveLocked drops id from the queue and ignores it in late snapshots
func (c *IncomingCoordinator) resolveLocked(id uuid.UUID) {
	c.resolved[id] = true
	for i, inv := range c.queue {
		if inv.ID == id {
			c.queue = append(c.queue[:i:i], c.queue[i+1:]...)
			return
		}
	}
}

func (c *IncomingCoordinator) callerLocked(id uuid.UUID) entities.DisplayInfo {
	if info, ok := c.callers[id]; ok {
		return info
	}
	return entities.FallbackDisplayInfo(id)
}

// enrichCaller resolves the caller's display info in the background
func (c *IncomingCoordinator) enrichCaller(callerID *uuid.UUID) {
	if callerID == nil {
		return
	}
	id := *callerID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
		defer cancel()
		info := c.deps.Directory.Profile(ctx, id)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.callers[id] = info
		var sig *Signal
		if c.session != nil && c.session.invitation.CallerID == id {
			sig = &Signal{Type: SignalCallerResolved, InvitationID: c.session.invitation.ID, Data: info, At: c.opts.Clock.Now()}
		}
		c.mu.Unlock()

		if sig != nil {
			c.signals.Publish(*sig)
		}
	}()
}

func (c *IncomingCoordinator) emit(sigs []Signal) {
	for _, sig := range sigs {
		c.signals.Publish(sig)
	}
}

// View returns the current state in one consistent read
func (c *IncomingCoordinator) View() IncomingView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := IncomingView{State: c.state, PendingCount: len(c.queue)}
	if c.session != nil {
		inv := c.session.invitation
		caller := c.callerLocked(inv.CallerID)
		deadline := c.session.timer.deadline
		view.Current = &inv
		view.Caller = &caller
		if !deadline.IsZero() {
			view.RingDeadline = &deadline
		}
	}
	if c.active != nil {
		active := *c.active
		view.Active = &active
	}
	return view
}

// CurrentInvitation returns the invitation ringing now, if any
func (c *IncomingCoordinator) CurrentInvitation() *entities.Invitation {
	return c.View().Current
}

// CurrentCaller returns who is calling now, if anyone
func (c *IncomingCoordinator) CurrentCaller() *entities.DisplayInfo {
	return c.View().Caller
}

// PendingCount returns how many invitations are waiting, the ringing one included
func (c *IncomingCoordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// State returns what the session is doing
func (c *IncomingCoordinator) State() IncomingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveCall returns the joined call, if any
func (c *IncomingCoordinator) ActiveCall() *ActiveCall {
	return c.View().Active
}

// Close unsubscribes and stops every timer. No store write starts after
// Close returns; writes already running are waited for.
func (c *IncomingCoordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.session != nil {
		c.session.timer.stop()
		c.session = nil
	}
	c.queue = nil
	c.active = nil
	c.state = StateIdle
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.ops.Wait()
	if done != nil {
		<-done
	}
	c.logger.Debug("incoming coordinator closed", zap.String("identity", c.identity.String()))
}
