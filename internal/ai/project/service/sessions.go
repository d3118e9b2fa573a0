package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Jamolkhon5/nexter/internal/metrics"
	"github.com/Jamolkhon5/nexter/internal/models"
)

// Session is one chat window: its organizer and the events waiting for the client.
type Session struct {
	ID        string
	Organizer *Organizer
	Events    *Recorder
}

type SessionOptions struct {
	// NewRefine builds the refine transport for a session, so each session
	// can carry its own session id.
	NewRefine func(sessionID string) RefineService
	Chat      ChatService
	Settings  Settings
	Projects  ProjectStore
	Archive   MessageArchive
	Metrics   *metrics.Metrics
	Log       zerolog.Logger
	UserRole  string
}

// Sessions holds every live chat session in memory.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     SessionOptions
	log      zerolog.Logger
}

func NewSessions(opts SessionOptions) *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		opts:     opts,
		log:      opts.Log.With().Str("component", "sessions").Logger(),
	}
}

// Create starts a new session showing the global conversation.
func (s *Sessions) Create() *Session {
	id := uuid.NewString()
	events := NewRecorder(s.opts.Projects)

	sess := &Session{
		ID:     id,
		Events: events,
		Organizer: NewOrganizer(Options{
			Refine:   s.opts.NewRefine(id),
			Chat:     s.opts.Chat,
			Settings: s.opts.Settings,
			Listener: events,
			Archive:  s.opts.Archive,
			Metrics:  s.opts.Metrics,
			Log:      s.opts.Log.With().Str("session_id", id).Logger(),
			UserRole: s.opts.UserRole,
		}),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	if s.opts.Metrics != nil {
		s.opts.Metrics.SessionsActive.Inc()
	}
	s.log.Info().Str("session_id", id).Msg("session created")
	return sess
}

func (s *Sessions) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return sess, nil
}

// Close forgets a session.
func (s *Sessions) Close(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.SessionsActive.Dec()
	}
	return nil
}

// LoadProject reads a project record from the persistence collaborator.
func (s *Sessions) LoadProject(ctx context.Context, id int64) (models.Project, error) {
	if s.opts.Projects == nil {
		return models.Project{ID: id}, nil
	}
	return s.opts.Projects.GetProject(ctx, id)
}
