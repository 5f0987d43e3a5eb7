// Package orchestrator drives a generation session on the client: the
// ingredient list, preferences, displayed recipes and favorite flags.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/ports/inbound"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
	"github.com/alchemorsel/pantrychef/pkg/validation"
)

// ErrActionFailed wraps the message of a failed action envelope.
var ErrActionFailed = errors.New("action failed")

// SessionSource reports the signed-in session, if any.
type SessionSource interface {
	Current() *outbound.Session
}

// Config tunes the orchestrator.
type Config struct {
	MinIngredients int
	MaxPhotoBytes  int64
	HistoryBuffer  int
	HistoryTimeout time.Duration
}

// WithLimits returns cfg with the generation limits of the API applied.
// Zero limits leave the defaults in place.
func (c Config) WithLimits(limits inbound.Limits) Config {
	if limits.MinIngredients > 0 {
		c.MinIngredients = limits.MinIngredients
	}
	if limits.MaxPhotoBytes > 0 {
		c.MaxPhotoBytes = limits.MaxPhotoBytes
	}
	return c
}

// DefaultConfig returns the limits the application ships with.
func DefaultConfig() Config {
	return Config{
		MinIngredients: 3,
		MaxPhotoBytes:  20 << 20,
		HistoryBuffer:  16,
		HistoryTimeout: 10 * time.Second,
	}
}

// State is a snapshot of the orchestrator.
type State struct {
	Ingredients []string
	Preferences recipe.Preferences
	Recipes     []recipe.Recipe
	Favorites   []string
	Detecting   bool
	Generating  bool
}

type historyJob struct {
	userID string
	record recipe.HistoryRecord
}

// Orchestrator is safe for concurrent use. Detections and generations may
// overlap; each applies its result when it settles.
type Orchestrator struct {
	actions inbound.Actions
	library inbound.Library
	session SessionSource
	cfg     Config
	logger  *zap.Logger

	mu          sync.Mutex
	ingredients *recipe.IngredientSet
	prefs       recipe.Preferences
	recipes     []recipe.Recipe
	favorites   map[string]bool
	detecting   int
	generating  int
	notices     []Notice
	closed      bool

	history chan historyJob
	errs    chan error
	wg      sync.WaitGroup
}

// New creates an orchestrator and starts its history worker. Call Close to
// stop the worker.
func New(actions inbound.Actions, library inbound.Library, session SessionSource, cfg Config, logger *zap.Logger) *Orchestrator {
	defaults := DefaultConfig()
	if cfg.MinIngredients <= 0 {
		cfg.MinIngredients = defaults.MinIngredients
	}
	if cfg.MaxPhotoBytes <= 0 {
		cfg.MaxPhotoBytes = defaults.MaxPhotoBytes
	}
	if cfg.HistoryBuffer <= 0 {
		cfg.HistoryBuffer = defaults.HistoryBuffer
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = defaults.HistoryTimeout
	}

	o := &Orchestrator{
		actions:     actions,
		library:     library,
		session:     session,
		cfg:         cfg,
		logger:      logger.Named("orchestrator"),
		ingredients: recipe.NewIngredientSet(),
		prefs:       recipe.DefaultPreferences(),
		favorites:   make(map[string]bool),
		history:     make(chan historyJob, cfg.HistoryBuffer),
		errs:        make(chan error, cfg.HistoryBuffer),
	}

	o.wg.Add(1)
	go o.historyWorker()

	return o
}

// AddIngredient adds a manually entered ingredient.
func (o *Orchestrator) AddIngredient(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ingredients.Add(name)
}

// RemoveIngredient removes name and reports whether it was present.
func (o *Orchestrator) RemoveIngredient(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ingredients.Remove(name)
}

// MergeDetected adds detected names not yet in the list and returns them.
func (o *Orchestrator) MergeDetected(names []string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ingredients.Merge(names)
}

// SetPreferences replaces the preferences after checking them against the
// catalog.
func (o *Orchestrator) SetPreferences(prefs recipe.Preferences) error {
	if err := prefs.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.prefs = prefs.Clone()
	return nil
}

// DetectIngredients sends a photo to ingredient detection and merges the
// result into the list. It returns the names that were added.
func (o *Orchestrator) DetectIngredients(ctx context.Context, photoDataURI string) ([]string, error) {
	if size := PhotoSize(photoDataURI); size > o.cfg.MaxPhotoBytes {
		o.notify(noticeFileTooLarge)
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("photo is %d bytes, the limit is %d", size, o.cfg.MaxPhotoBytes))
	}

	o.mu.Lock()
	o.detecting++
	o.mu.Unlock()

	env := o.actions.RunDetectIngredients(ctx, inbound.DetectIngredientsInput{PhotoDataURI: photoDataURI})

	o.mu.Lock()
	defer o.mu.Unlock()
	o.detecting--

	if !env.Success {
		o.notices = append(o.notices, detectionFailed(env.Error))
		return nil, fmt.Errorf("%w: %s", ErrActionFailed, env.Error)
	}

	added := o.ingredients.Merge(env.Data)
	o.notices = append(o.notices, noticeDetected)
	o.logger.Debug("Detected ingredients merged",
		zap.Int("detected", len(env.Data)),
		zap.Int("added", len(added)),
	)
	return added, nil
}

// Generate requests recipes for the current ingredients and preferences.
// With fewer than the minimum number of ingredients it fails with a
// precondition error and makes no request.
func (o *Orchestrator) Generate(ctx context.Context) ([]recipe.Recipe, error) {
	o.mu.Lock()
	if o.ingredients.Len() < o.cfg.MinIngredients {
		o.notices = append(o.notices, noticeNotEnough)
		o.mu.Unlock()
		return nil, apperrors.NewPreconditionError(
			fmt.Sprintf("at least %d ingredients are required", o.cfg.MinIngredients))
	}

	names := o.ingredients.Names()
	prefs := o.prefs.Clone()
	o.recipes = nil
	o.generating++
	o.mu.Unlock()

	env := o.actions.RunGenerateRecipes(ctx, recipe.NewGenerationRequest(names, prefs))

	o.mu.Lock()
	defer o.mu.Unlock()
	o.generating--

	if !env.Success {
		o.recipes = nil
		o.notices = append(o.notices, generationFailed(env.Error))
		return nil, fmt.Errorf("%w: %s", ErrActionFailed, env.Error)
	}

	o.recipes = append([]recipe.Recipe{}, env.Data...)

	if session := o.session.Current(); session != nil {
		o.enqueueHistory(historyJob{
			userID: session.UserID,
			record: recipe.NewHistoryRecord(names, prefs, o.recipes),
		})
	}

	return append([]recipe.Recipe{}, o.recipes...), nil
}

// LoadFavorites refreshes the favorite flags from the user's saved recipes.
// Signed out, all flags are cleared.
func (o *Orchestrator) LoadFavorites(ctx context.Context) error {
	session := o.session.Current()
	if session == nil {
		o.mu.Lock()
		o.favorites = make(map[string]bool)
		o.mu.Unlock()
		return nil
	}

	saved, err := o.library.SavedRecipes(ctx, session.UserID)
	if err != nil {
		o.logger.Warn("Failed to load favorites", zap.Error(err))
		return err
	}

	favorites := make(map[string]bool, len(saved))
	for _, s := range saved {
		favorites[s.ID] = true
	}

	o.mu.Lock()
	o.favorites = favorites
	o.mu.Unlock()
	return nil
}

// FollowSession reloads favorites whenever the session changes, until
// sessions is closed.
func (o *Orchestrator) FollowSession(ctx context.Context, sessions <-chan *outbound.Session) {
	for range sessions {
		if err := o.LoadFavorites(ctx); err != nil && ctx.Err() == nil {
			o.notify(noticeFavoriteFailed)
		}
	}
}

// IsFavorite reports the favorite flag of r.
func (o *Orchestrator) IsFavorite(r recipe.Recipe) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.favorites[r.Slug()]
}

// ToggleFavorite flips the favorite flag of r right away and persists the
// change. If persisting fails the flag is restored and an error notice is
// posted. It returns the new flag.
func (o *Orchestrator) ToggleFavorite(ctx context.Context, r recipe.Recipe) (bool, error) {
	session := o.session.Current()
	if session == nil {
		o.notify(noticeLoginRequired)
		return false, apperrors.NewUnauthorizedError(noticeLoginRequired.Title)
	}

	slug := r.Slug()

	o.mu.Lock()
	was := o.favorites[slug]
	o.setFavorite(slug, !was)
	o.mu.Unlock()

	err := o.library.ToggleFavorite(ctx, session.UserID, r, was)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		o.setFavorite(slug, was)
		o.notices = append(o.notices, noticeFavoriteFailed)
		o.logger.Warn("Favorite toggle failed", zap.String("recipe_id", slug), zap.Error(err))
		return was, err
	}

	o.notices = append(o.notices, favoriteToggled(r.Title, !was))
	return !was, nil
}

// State returns a snapshot.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	favorites := make([]string, 0, len(o.favorites))
	for slug := range o.favorites {
		favorites = append(favorites, slug)
	}

	return State{
		Ingredients: o.ingredients.Names(),
		Preferences: o.prefs.Clone(),
		Recipes:     append([]recipe.Recipe{}, o.recipes...),
		Favorites:   favorites,
		Detecting:   o.detecting > 0,
		Generating:  o.generating > 0,
	}
}

// Notices returns and clears the queued notices.
func (o *Orchestrator) Notices() []Notice {
	o.mu.Lock()
	defer o.mu.Unlock()

	notices := o.notices
	o.notices = nil
	return notices
}

// HistoryErrors yields failures of background history writes. It is closed
// by Close.
func (o *Orchestrator) HistoryErrors() <-chan error {
	return o.errs
}

// Close waits for pending history writes and stops the worker.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.history)
	o.mu.Unlock()

	o.wg.Wait()
	close(o.errs)
}

func (o *Orchestrator) notify(n Notice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, n)
}

func (o *Orchestrator) setFavorite(slug string, on bool) {
	if on {
		o.favorites[slug] = true
		return
	}
	delete(o.favorites, slug)
}

// enqueueHistory must be called with o.mu held.
func (o *Orchestrator) enqueueHistory(job historyJob) {
	if o.closed {
		o.logger.Warn("History worker closed, dropping record", zap.String("user_id", job.userID))
		return
	}

	select {
	case o.history <- job:
	default:
		err := errors.New("history queue is full")
		o.logger.Error("Dropping history record", zap.String("user_id", job.userID), zap.Error(err))
		o.publishError(err)
	}
}

func (o *Orchestrator) historyWorker() {
	defer o.wg.Done()

	for job := range o.history {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.HistoryTimeout)
		id, err := o.library.RecordGeneration(ctx, job.userID, job.record)
		cancel()

		if err != nil {
			o.logger.Error("Failed to save recipe history", zap.String("user_id", job.userID), zap.Error(err))
			o.publishError(err)
			continue
		}
		o.logger.Debug("Recipe history saved", zap.String("user_id", job.userID), zap.String("history_id", id))
	}
}

func (o *Orchestrator) publishError(err error) {
	select {
	case o.errs <- err:
	default:
	}
}

// PhotoSize returns the decoded byte size of a base64 data URI, or the raw
// length for anything else.
func PhotoSize(uri string) int64 {
	return validation.DataURISize(uri)
}
