package calls

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/external/livekit"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/metrics"
)

const (
	// DefaultRingWindow is how long an invitation rings before it counts as missed
	DefaultRingWindow = 30 * time.Second

	writeTimeout  = 10 * time.Second
	enrichTimeout = 5 * time.Second
)

// Outcome is the result of a user action on an invitation
type Outcome string

const (
	// OutcomeApplied means this action decided the invitation's outcome
	OutcomeApplied Outcome = "applied"
	// OutcomeStale means the invitation was already resolved; nothing happened
	OutcomeStale Outcome = "stale"
	// OutcomeInFlight means an earlier action on the same invitation is still running
	OutcomeInFlight Outcome = "in_flight"
)

// Dependencies are the collaborators shared by both coordinators
type Dependencies struct {
	Store     repositories.InvitationStore
	Reunions  repositories.ReunionRepository
	Transport livekit.Transport
	Directory Directory
	FanOut    *FanOut
}

// Options tune a coordinator
type Options struct {
	RingWindow time.Duration
	Clock      clock.Clock
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.RingWindow <= 0 {
		o.RingWindow = DefaultRingWindow
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Directory == nil {
		d.Directory = RawDirectory{}
	}
	return d
}

// RawDirectory resolves nothing and always falls back to raw identifiers
type RawDirectory struct{}

func (RawDirectory) Profile(_ context.Context, id uuid.UUID) entities.DisplayInfo {
	return entities.FallbackDisplayInfo(id)
}

func (RawDirectory) MeetingTitle(context.Context, uuid.UUID) string { return "" }

func writeResult(res repositories.UpdateResult, err error) string {
	if err != nil {
		return "error"
	}
	return res.String()
}

func boolPtr(v bool) *bool { return &v }
