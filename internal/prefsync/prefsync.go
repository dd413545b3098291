// Package prefsync keeps a subscriber's editable preferences in step with the
// backend.
//
// A Synchronizer moves through Idle -> Loading -> Ready, then Ready -> Saving
// -> Ready for every save, successful or not. Tag toggles and radius changes
// are local and allowed in any state; only Load and Save talk to the network.
package prefsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/foodguardian/internal/models"
)

// State is the lifecycle position of a Synchronizer.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateSaving
	// StateFailed means the initial load failed; Load may be retried.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrLoad wraps any failure of Load.
	ErrLoad = errors.New("failed to load preferences")
	// ErrAlreadyLoaded is returned by Load once preferences are loaded.
	ErrAlreadyLoaded = errors.New("preferences already loaded")
	// ErrNotReady is returned by Save before a successful Load.
	ErrNotReady = errors.New("preferences not loaded")
	// ErrSaveInProgress is returned by Save while another save is running.
	ErrSaveInProgress = errors.New("save already in progress")
	// ErrDetached is returned by operations whose result was discarded
	// because Close was called while they were in flight.
	ErrDetached = errors.New("synchronizer closed; result discarded")
)

// Backend is the subset of the gateway used for preferences.
type Backend interface {
	FetchPreferences(ctx context.Context) (models.PreferenceSet, error)
	SavePreferences(ctx context.Context, update models.PreferenceUpdate) error
}

// Resolver turns an address into a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, address string) (models.Coordinate, error)
}

// Catalog supplies the tags a subscriber can choose from.
type Catalog interface {
	Tags(ctx context.Context) ([]models.Tag, error)
}

// Synchronizer owns one editing session of a subscriber's preferences.
// It is safe for concurrent use.
type Synchronizer struct {
	backend  Backend
	resolver Resolver
	catalog  Catalog
	log      *slog.Logger

	mu       sync.Mutex
	state    State
	epoch    uint64
	tags     []models.Tag
	working  models.PreferenceSet
	baseline models.PreferenceSet
	lastErr  error
}

// New creates an idle Synchronizer.
func New(backend Backend, resolver Resolver, catalog Catalog, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		backend:  backend,
		resolver: resolver,
		catalog:  catalog,
		log:      logger.With("component", "prefsync"),
		working:  models.PreferenceSet{Tags: models.NewTagSet(), RadiusKm: models.DefaultRadiusKm},
	}
}

// Load fetches the tag catalog and the stored preferences concurrently.
// The Synchronizer becomes Ready only if both succeed; on failure nothing
// fetched is exposed and the state is Failed.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateFailed {
		s.mu.Unlock()
		return ErrAlreadyLoaded
	}
	s.state = StateLoading
	s.lastErr = nil
	epoch := s.epoch
	s.mu.Unlock()

	var (
		tags  []models.Tag
		prefs models.PreferenceSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tags, err = s.catalog.Tags(gctx)
		if err != nil {
			return fmt.Errorf("tag catalog: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		prefs, err = s.backend.FetchPreferences(gctx)
		if err != nil {
			return fmt.Errorf("preferences: %w", err)
		}
		return nil
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.log.Debug("discarding load result of closed synchronizer")
		return ErrDetached
	}
	if err != nil {
		s.state = StateFailed
		s.lastErr = fmt.Errorf("%w: %w", ErrLoad, err)
		s.log.Warn("load failed", "error", err)
		return s.lastErr
	}

	if prefs.Tags == nil {
		prefs.Tags = models.NewTagSet()
	}
	prefs.RadiusKm = models.ClampRadius(prefs.RadiusKm)

	s.tags = tags
	s.baseline = prefs.Clone()
	s.working = prefs.Clone()
	s.state = StateReady
	s.log.Info("preferences loaded", "tags", s.working.Tags.Len(), "radius_km", s.working.RadiusKm,
		"has_location", s.working.Coordinate != nil)
	return nil
}

// ToggleTag selects tagID if unselected and deselects it otherwise.
// It is local only and reports whether the tag is selected afterwards.
func (s *Synchronizer) ToggleTag(tagID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working.Tags.Toggle(tagID)
}

// SetRadius stores km clamped to [1, 50] and returns the stored value.
func (s *Synchronizer) SetRadius(km int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working.RadiusKm = models.ClampRadius(km)
	return s.working.RadiusKm
}

// Save writes the working preferences to the backend.
//
// A non-blank addressText is resolved first and its coordinate sent along;
// if resolution fails nothing is written. A blank addressText sends no
// location, leaving the stored one untouched. On success the sent
// preferences become the new baseline; on failure the edits stay in place
// for a retry and the baseline is kept.
func (s *Synchronizer) Save(ctx context.Context, addressText string) error {
	s.mu.Lock()
	switch s.state {
	case StateReady:
	case StateSaving:
		s.mu.Unlock()
		return ErrSaveInProgress
	default:
		s.mu.Unlock()
		return ErrNotReady
	}
	s.state = StateSaving
	s.lastErr = nil
	epoch := s.epoch
	attempt := s.working.Clone()
	s.mu.Unlock()

	var resolved *models.Coordinate
	if address := strings.TrimSpace(addressText); address != "" {
		coord, err := s.resolver.Resolve(ctx, address)
		if err != nil {
			return s.finishSave(epoch, nil, fmt.Errorf("resolve address: %w", err))
		}
		resolved = &coord
	}

	radius := attempt.RadiusKm
	update := models.PreferenceUpdate{
		TagIDs:     attempt.Tags.Sorted(),
		Notify:     true,
		Coordinate: resolved,
		RadiusKm:   &radius,
	}
	if err := s.backend.SavePreferences(ctx, update); err != nil {
		return s.finishSave(epoch, nil, err)
	}

	if resolved != nil {
		attempt.Coordinate = resolved
	}
	return s.finishSave(epoch, &attempt, nil)
}

// finishSave returns the Synchronizer to Ready and applies the outcome.
func (s *Synchronizer) finishSave(epoch uint64, saved *models.PreferenceSet, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.log.Debug("discarding save result of closed synchronizer", "error", err)
		return ErrDetached
	}
	s.state = StateReady

	if err != nil {
		s.lastErr = err
		s.log.Warn("save failed", "error", err)
		return err
	}

	s.baseline = saved.Clone()
	if saved.Coordinate != nil {
		c := *saved.Coordinate
		s.working.Coordinate = &c
	}
	s.log.Info("preferences saved", "tags", saved.Tags.Len(), "radius_km", saved.RadiusKm,
		"has_location", saved.Coordinate != nil)
	return nil
}

// Close detaches the Synchronizer from its screen. Results of operations
// still in flight are discarded and those operations return ErrDetached.
// The Synchronizer returns to Idle and may be loaded again.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.state = StateIdle
	s.tags = nil
	s.lastErr = nil
	s.baseline = models.PreferenceSet{}
	s.working = models.PreferenceSet{Tags: models.NewTagSet(), RadiusKm: models.DefaultRadiusKm}
}

// View is a render-ready snapshot of a Synchronizer.
type View struct {
	State State

	// Catalog is the list of selectable tags; empty until loaded.
	Catalog []models.Tag

	// Selected, RadiusKm and Coordinate are the working (edited) values.
	Selected   []string
	RadiusKm   int
	Coordinate *models.Coordinate

	// Dirty reports whether the working values differ from the last
	// server-confirmed values.
	Dirty bool

	// Err is the failure of the last Load or Save, nil after a success.
	Err error
}

// View returns a snapshot of the current state.
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:    s.state,
		Catalog:  append([]models.Tag(nil), s.tags...),
		Selected: s.working.Tags.Sorted(),
		RadiusKm: s.working.RadiusKm,
		Err:      s.lastErr,
	}
	if s.working.Coordinate != nil {
		c := *s.working.Coordinate
		v.Coordinate = &c
	}
	if s.state == StateReady || s.state == StateSaving {
		v.Dirty = !s.working.Equal(s.baseline)
	}
	return v
}

// Baseline returns the last server-confirmed preferences.
func (s *Synchronizer) Baseline() models.PreferenceSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline.Clone()
}
