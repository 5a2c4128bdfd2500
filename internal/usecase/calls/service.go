package calls

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	usecaseErrors "github.com/johnquangdev/meeting-calls/internal/usecase/errors"
)

// Session holds the coordinators of one signed-in identity
type Session struct {
	Identity uuid.UUID
	Incoming *IncomingCoordinator
	Outgoing *OutgoingCoordinator
	Signals  *Hub
}

func (s *Session) close() {
	s.Incoming.Close()
	s.Outgoing.Close()
	s.Signals.Close()
}

// Service opens and tears down call sessions per identity
type Service struct {
	deps   Dependencies
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewService creates a new call session service
func NewService(deps Dependencies, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		deps:     deps,
		opts:     opts,
		logger:   opts.Logger.Named("calls"),
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open starts observing for identity. Opening twice returns the live session.
func (s *Service) Open(ctx context.Context, identity uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[identity]; ok {
		return sess, nil
	}

	signals := NewHub(s.logger)
	sess := &Session{
		Identity: identity,
		Incoming: NewIncomingCoordinator(s.deps, signals, s.opts),
		Outgoing: NewOutgoingCoordinator(s.deps, signals, s.opts),
		Signals:  signals,
	}

	if err := sess.Incoming.Observe(ctx, identity); err != nil {
		sess.close()
		return nil, err
	}
	if err := sess.Outgoing.Observe(ctx, identity); err != nil {
		sess.close()
		return nil, err
	}

	s.sessions[identity] = sess
	s.opts.Metrics.SetActiveSessions(len(s.sessions))
	s.logger.Info("call session opened", zap.String("identity", identity.String()))
	return sess, nil
}

// Session returns the live session of identity
func (s *Service) Session(identity uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[identity]
	if !ok {
		return nil, usecaseErrors.ErrSessionNotFound
	}
	return sess, nil
}

// Close tears down the session of identity
func (s *Service) Close(identity uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.sessions[identity]
	if ok {
		delete(s.sessions, identity)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return usecaseErrors.ErrSessionNotFound
	}
	sess.close()
	s.opts.Metrics.SetActiveSessions(count)
	s.logger.Info("call session closed", zap.String("identity", identity.String()))
	return nil
}

// Shutdown tears down every session
func (s *Service) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[uuid.UUID]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	s.opts.Metrics.SetActiveSessions(0)
	s.logger.Info("all call sessions closed", zap.Int("count", len(sessions)))
}
