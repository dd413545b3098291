// Package session keeps the credential of the signed-in actor.
//
// A Store is bound to one role. It is opened once at program start, which
// loads any session persisted by an earlier run, and lives until the process
// exits; only Clear removes the session. The token is never inspected: its
// validity is discovered by the backend on the next request.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmynk/foodguardian/internal/models"
	"github.com/mmynk/foodguardian/internal/storage"
)

const (
	tokenKeySuffix   = "auth_token"
	subjectKeySuffix = "subject_id"
)

// Store holds at most one session for its role.
type Store struct {
	role models.Role
	kv   storage.KV
	log  *slog.Logger

	mu      sync.RWMutex
	current *models.Session
}

// Open creates a Store for role and restores the persisted session, if any.
// A half-written session (token without subject or vice versa) is discarded.
func Open(ctx context.Context, role models.Role, kv storage.KV, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		role: role,
		kv:   kv,
		log:  logger.With("component", "session", "role", role),
	}

	token, hasToken, err := kv.Get(ctx, s.key(tokenKeySuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to read persisted token: %w", err)
	}
	subject, hasSubject, err := kv.Get(ctx, s.key(subjectKeySuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to read persisted subject: %w", err)
	}

	switch {
	case hasToken && hasSubject && token != "":
		s.current = &models.Session{Token: token, SubjectID: subject, Role: role}
		s.log.Debug("restored session", "subject_id", subject)
	case hasToken || hasSubject:
		s.log.Warn("discarding incomplete persisted session")
		if err := kv.Delete(ctx, s.key(tokenKeySuffix), s.key(subjectKeySuffix)); err != nil {
			return nil, fmt.Errorf("failed to discard incomplete session: %w", err)
		}
	}

	return s, nil
}

// Role returns the role this store is bound to.
func (s *Store) Role() models.Role {
	return s.role
}

// Set replaces the current session and persists it.
func (s *Store) Set(ctx context.Context, token, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(ctx, s.key(tokenKeySuffix), token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	if err := s.kv.Set(ctx, s.key(subjectKeySuffix), subjectID); err != nil {
		return fmt.Errorf("failed to persist subject: %w", err)
	}
	s.current = &models.Session{Token: token, SubjectID: subjectID, Role: s.role}

	s.log.Info("session started", "subject_id", subjectID)
	return nil
}

// Token returns the current token, if a session exists.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return "", false
	}
	return s.current.Token, true
}

// Current returns a copy of the current session.
func (s *Store) Current() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.Session{}, false
	}
	return *s.current, true
}

// Clear removes the session from memory and durable storage.
// The in-memory session is dropped even if the durable delete fails, so no
// further request carries the token.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// ClearIfToken clears the session only while token is still the current one.
// It reports whether a session was cleared. A rejection that answers a token
// replaced since by Set leaves the newer session alone.
func (s *Store) ClearIfToken(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.Token != token {
		return false, nil
	}
	return true, s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	had := s.current != nil
	s.current = nil

	if err := s.kv.Delete(ctx, s.key(tokenKeySuffix), s.key(subjectKeySuffix)); err != nil {
		return fmt.Errorf("failed to delete persisted session: %w", err)
	}
	if had {
		s.log.Info("session cleared")
	}
	return nil
}

func (s *Store) key(suffix string) string {
	return string(s.role) + "." + suffix
}
