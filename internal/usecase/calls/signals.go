package calls

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
)

// SignalType names an ephemeral UI signal
type SignalType string

const (
	// Incoming side
	SignalHeadChanged    SignalType = "head_changed"
	SignalRingStart      SignalType = "ring_start"
	SignalRingStop       SignalType = "ring_stop"
	SignalCallerResolved SignalType = "caller_resolved"
	SignalJoining        SignalType = "joining"
	SignalJoined         SignalType = "joined"
	SignalJoinFailed     SignalType = "join_failed"
	SignalLeft           SignalType = "left"

	// Outgoing side
	SignalOutgoingChanged SignalType = "outgoing_changed"
	SignalCallOutcome     SignalType = "call_outcome"
)

// Signal is a local, best-effort notice for whoever renders the session.
// It is never persisted.
type Signal struct {
	Type         SignalType                `json:"type"`
	InvitationID uuid.UUID                 `json:"invitation_id,omitempty"`
	Status       entities.InvitationStatus `json:"status,omitempty"`
	Data         interface{}               `json:"data,omitempty"`
	At           time.Time                 `json:"at"`
}

const signalBuffer = 32

// Hub fans signals out to any number of listeners. Slow listeners lose
// signals rather than block the coordinators.
type Hub struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Signal
	closed bool
	logger *zap.Logger
}

// NewHub creates a signal hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[int]chan Signal), logger: logger}
}

// Subscribe returns a signal channel and the function that releases it
func (h *Hub) Subscribe() (<-chan Signal, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Signal, signalBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	h.next++
	id := h.next
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers sig to every listener without blocking
func (h *Hub) Publish(sig Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- sig:
		default:
			h.logger.Debug("dropping signal for slow listener",
				zap.String("type", string(sig.Type)),
				zap.String("invitation_id", sig.InvitationID.String()),
			)
		}
	}
}

// Close releases every listener; later publishes are dropped
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
