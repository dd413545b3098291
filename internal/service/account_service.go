package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmynk/foodguardian/internal/gateway"
	"github.com/mmynk/foodguardian/internal/models"
)

var (
	// ErrWrongRole is returned when a flow is run against a session store
	// bound to the other role.
	ErrWrongRole = errors.New("operation not available for this role")
	// ErrStoreNameRequired is returned by RegisterStore for a blank name.
	ErrStoreNameRequired = errors.New("store name is required")
)

// Backend is the part of the gateway used by account flows.
type Backend interface {
	Signup(ctx context.Context, email, password string) (gateway.Credentials, error)
	Login(ctx context.Context, email, password string) (gateway.Credentials, error)
	RegisterStoreProfile(ctx context.Context, subjectID, name, email, phone string, coord *models.Coordinate) error
}

// Sessions is the session store the flows write to.
type Sessions interface {
	Role() models.Role
	Set(ctx context.Context, token, subjectID string) error
	Current() (models.Session, bool)
	Clear(ctx context.Context) error
}

// Resolver turns a store address into a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, address string) (models.Coordinate, error)
}

// AccountService runs the signup, login, logout and store registration flows.
type AccountService struct {
	backend  Backend
	sessions Sessions
	resolver Resolver
	logger   *slog.Logger
}

// NewAccountService creates an account service writing sessions to sessions.
func NewAccountService(backend Backend, sessions Sessions, resolver Resolver, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		backend:  backend,
		sessions: sessions,
		resolver: resolver,
		logger:   logger.With("component", "account", "role", sessions.Role()),
	}
}

// SignupUser creates a subscriber account and starts its session.
func (s *AccountService) SignupUser(ctx context.Context, email, password string) (models.Session, error) {
	if s.sessions.Role() != models.RoleUser {
		return models.Session{}, ErrWrongRole
	}
	creds, err := s.backend.Signup(ctx, email, password)
	if err != nil {
		s.logger.Warn("Signup failed", "email", email, "error", err)
		return models.Session{}, err
	}
	return s.start(ctx, creds)
}

// Login authenticates with the backend and starts a session for the role the
// session store is bound to.
func (s *AccountService) Login(ctx context.Context, email, password string) (models.Session, error) {
	creds, err := s.backend.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn("Login failed", "email", email, "error", err)
		return models.Session{}, err
	}
	return s.start(ctx, creds)
}

// Logout clears the session. Tokens are stateless, so the backend is not told.
func (s *AccountService) Logout(ctx context.Context) error {
	return s.sessions.Clear(ctx)
}

// Whoami returns the current session, if any.
func (s *AccountService) Whoami() (models.Session, bool) {
	return s.sessions.Current()
}

// RegisterStore signs a store up and publishes its profile.
//
// The address is resolved before anything is sent; if resolution fails the
// backend is never contacted. Once the account exists its session is kept
// even if publishing the profile fails, so the profile can be published
// again by re-running the flow after login.
func (s *AccountService) RegisterStore(ctx context.Context, reg models.StoreRegistration) (models.Session, error) {
	if s.sessions.Role() != models.RoleStore {
		return models.Session{}, ErrWrongRole
	}
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		return models.Session{}, ErrStoreNameRequired
	}

	coord, err := s.resolver.Resolve(ctx, reg.Address)
	if err != nil {
		s.logger.Warn("Store address could not be resolved", "address", reg.Address, "error", err)
		return models.Session{}, fmt.Errorf("resolve store address: %w", err)
	}

	creds, err := s.backend.Signup(ctx, reg.Email, reg.Password)
	if err != nil {
		s.logger.Warn("Store signup failed", "email", reg.Email, "error", err)
		return models.Session{}, err
	}
	sess, err := s.start(ctx, creds)
	if err != nil {
		return models.Session{}, err
	}

	if err := s.backend.RegisterStoreProfile(ctx, sess.SubjectID, name, reg.Email, reg.Phone, &coord); err != nil {
		s.logger.Error("Store profile not published", "store_id", sess.SubjectID, "error", err)
		return sess, fmt.Errorf("publish store profile: %w", err)
	}

	s.logger.Info("Store registered", "store_id", sess.SubjectID, "location", coord.String())
	return sess, nil
}

func (s *AccountService) start(ctx context.Context, creds gateway.Credentials) (models.Session, error) {
	if err := s.sessions.Set(ctx, creds.Token, creds.SubjectID); err != nil {
		return models.Session{}, fmt.Errorf("save session: %w", err)
	}
	sess, _ := s.sessions.Current()
	return sess, nil
}
