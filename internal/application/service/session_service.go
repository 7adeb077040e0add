package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
)

// DefaultMaxTurns is how many turns a session keeps when not configured
const DefaultMaxTurns = 20

// SessionService manages assistant conversation state
type SessionService interface {
	Get(ctx context.Context, id string) (*entity.Session, error)
	AppendTurn(ctx context.Context, id, role, content string) (*entity.Session, error)
	SetPending(ctx context.Context, id string, pending entity.PendingAction) (*entity.Session, error)
	Clear(ctx context.Context, id string) error
}

type sessionServiceImpl struct {
	store    port.SessionStore
	maxTurns int
	now      func() time.Time
	logger   Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(store port.SessionStore, maxTurns int, logger Logger) SessionService {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &sessionServiceImpl{
		store:    store,
		maxTurns: maxTurns,
		now:      time.Now,
		logger:   logger,
	}
}

// Get returns the session, or an empty one when none is stored
func (s *sessionServiceImpl) Get(ctx context.Context, id string) (*entity.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidRequest)
	}

	session, err := s.store.Load(ctx, id)
	if err != nil {
		s.logger.Error("Failed to load session", "session_id", id, "error", err)
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		session = &entity.Session{ID: id, Turns: []entity.Turn{}, Pending: entity.NoPendingAction()}
	}
	return session, nil
}

// AppendTurn records one message and trims the history to the configured length
func (s *sessionServiceImpl) AppendTurn(ctx context.Context, id, role, content string) (*entity.Session, error) {
	if role != entity.RoleUser && role != entity.RoleAssistant {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidRequest)
	}

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session.Turns = append(session.Turns, entity.Turn{Role: role, Content: content, At: now})
	session.Trim(s.maxTurns)
	session.UpdatedAt = now

	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SetPending replaces the session's pending action
func (s *sessionServiceImpl) SetPending(ctx context.Context, id string, pending entity.PendingAction) (*entity.Session, error) {
	if pending.Kind == "" {
		pending.Kind = entity.PendingNone
	}
	if err := pending.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	session.Pending = pending
	session.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("Session pending action set", "session_id", id, "kind", pending.Kind)
	return session, nil
}

// Clear deletes the session
func (s *sessionServiceImpl) Clear(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidRequest)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete session", "session_id", id, "error", err)
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *sessionServiceImpl) save(ctx context.Context, session *entity.Session) error {
	if err := s.store.Save(ctx, session); err != nil {
		s.logger.Error("Failed to save session", "session_id", session.ID, "error", err)
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
