// Package store provides the invitation stores the call coordinators observe:
// a PostgreSQL store synchronised across processes through a Redis change
// feed, and an in-memory store for development and tests.
package store

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/metrics"
)

// Change event types
const (
	ChangeCreated = "invitation.created"
	ChangeUpdated = "invitation.updated"
	ChangeReset   = "reunion.reset"
)

// Change describes one committed write. Zero ids mean "unknown" and make the
// change relevant to every subscriber.
type Change struct {
	Type         string    `json:"type"`
	InvitationID uuid.UUID `json:"invitation_id,omitempty"`
	CallerID     uuid.UUID `json:"caller_id,omitempty"`
	ContactID    uuid.UUID `json:"contact_id,omitempty"`
	ReunionID    uuid.UUID `json:"reunion_id,omitempty"`
}

func changeFor(kind string, inv *entities.Invitation) Change {
	return Change{
		Type:         kind,
		InvitationID: inv.ID,
		CallerID:     inv.CallerID,
		ContactID:    inv.ContactID,
		ReunionID:    inv.ReunionID,
	}
}

// Relevant reports whether a subscriber with filter f should re-read after c
func (c Change) Relevant(f repositories.Filter) bool {
	if f.CallerID != nil && c.CallerID != uuid.Nil && c.CallerID != *f.CallerID {
		return false
	}
	if f.ContactID != nil && c.ContactID != uuid.Nil && c.ContactID != *f.ContactID {
		return false
	}
	return true
}

// validRows drops rows that fail validation so they never reach the coordinators
func validRows(rows []entities.Invitation, logger *zap.Logger, m *metrics.Metrics) []entities.Invitation {
	out := make([]entities.Invitation, 0, len(rows))
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			logger.Warn("dropping invalid invitation row",
				zap.String("invitation_id", rows[i].ID.String()),
				zap.Error(err),
			)
			m.RecordInvalidRow()
			continue
		}
		out = append(out, rows[i])
	}
	entities.SortNewestFirst(out)
	return out
}

// hub tracks local subscribers and wakes the relevant ones after a change
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscriber
}

type subscriber struct {
	filter repositories.Filter
	wake   chan struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[int]*subscriber)}
}

func (h *hub) add(filter repositories.Filter) (int, *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	sub := &subscriber{filter: filter, wake: make(chan struct{}, 1)}
	h.subs[h.next] = sub
	sub.poke()
	return h.next, sub
}

func (h *hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

func (h *hub) broadcast(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if c.Relevant(sub.filter) {
			sub.poke()
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// poke requests a re-read; pending requests coalesce since every emission is a full set
func (s *subscriber) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
