// Package recipe provides the application layer for a user's recipe library:
// favorites and generation history.
// This implements the Library use cases defined in the inbound ports
package recipe

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/ports/inbound"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
)

// Collection names under users/{uid}.
const (
	usersCollection   = "users"
	savedCollection   = "savedRecipes"
	historyCollection = "recipeHistory"
)

// LibraryService implements inbound.Library on a document store
type LibraryService struct {
	store  outbound.DocumentStore
	logger *zap.Logger
}

// NewLibraryService creates a new library service
func NewLibraryService(store outbound.DocumentStore, logger *zap.Logger) *LibraryService {
	return &LibraryService{
		store:  store,
		logger: logger.Named("library-service"),
	}
}

var _ inbound.Library = (*LibraryService)(nil)

// SavedRecipePath returns the document path of a favorite.
func SavedRecipePath(userID, id string) string {
	return outbound.DocumentPath(usersCollection, userID, savedCollection, id)
}

// HistoryPath returns the collection path of a user's history.
func HistoryPath(userID string) string {
	return outbound.DocumentPath(usersCollection, userID, historyCollection)
}

// ToggleFavorite deletes the favorite when isFavorite is true, otherwise it
// saves r under its title slug.
func (s *LibraryService) ToggleFavorite(ctx context.Context, userID string, r recipe.Recipe, isFavorite bool) error {
	if userID == "" {
		return apperrors.NewUnauthorizedError("")
	}

	saved := recipe.NewSavedRecipe(r)
	if saved.ID == "" {
		return apperrors.NewValidationError("recipe title is required")
	}
	path := SavedRecipePath(userID, saved.ID)

	if isFavorite {
		if err := s.store.Delete(ctx, path); err != nil {
			return apperrors.NewDatabaseError("remove favorite", err)
		}
		s.logger.Info("Favorite removed", zap.String("user_id", userID), zap.String("recipe_id", saved.ID))
		return nil
	}

	recipeDoc, err := toDocument(r)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode recipe")
	}

	doc := outbound.Document{
		"id":      saved.ID,
		"recipe":  map[string]any(recipeDoc),
		"savedAt": outbound.ServerTimestamp,
	}
	if err := s.store.Put(ctx, path, doc); err != nil {
		return apperrors.NewDatabaseError("save favorite", err)
	}

	s.logger.Info("Favorite saved", zap.String("user_id", userID), zap.String("recipe_id", saved.ID))
	return nil
}

// SavedRecipes lists favorites, newest first
func (s *LibraryService) SavedRecipes(ctx context.Context, userID string) ([]recipe.SavedRecipe, error) {
	if userID == "" {
		return nil, apperrors.NewUnauthorizedError("")
	}

	docs, err := s.store.QueryOrdered(ctx, outbound.DocumentPath(usersCollection, userID, savedCollection), "savedAt", outbound.Descending)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list favorites", err)
	}

	saved := make([]recipe.SavedRecipe, 0, len(docs))
	for _, doc := range docs {
		var item recipe.SavedRecipe
		if err := fromDocument(doc, &item); err != nil {
			s.logger.Warn("Skipping unreadable favorite", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		saved = append(saved, item)
	}
	return saved, nil
}

// RecordGeneration appends a history record and returns its id
func (s *LibraryService) RecordGeneration(ctx context.Context, userID string, record recipe.HistoryRecord) (string, error) {
	if userID == "" {
		return "", apperrors.NewUnauthorizedError("")
	}

	record.ID = ""
	doc, err := toDocument(record)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to encode history record")
	}
	doc["generatedAt"] = outbound.ServerTimestamp

	id, err := s.store.Append(ctx, HistoryPath(userID), doc)
	if err != nil {
		return "", apperrors.NewDatabaseError("record generation", err)
	}

	s.logger.Info("Generation recorded",
		zap.String("user_id", userID),
		zap.String("history_id", id),
		zap.Int("recipes", len(record.Recipes)),
	)
	return id, nil
}

// History lists history records, newest first
func (s *LibraryService) History(ctx context.Context, userID string) ([]recipe.HistoryRecord, error) {
	if userID == "" {
		return nil, apperrors.NewUnauthorizedError("")
	}

	docs, err := s.store.QueryOrdered(ctx, HistoryPath(userID), "generatedAt", outbound.Descending)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list history", err)
	}

	records := make([]recipe.HistoryRecord, 0, len(docs))
	for _, doc := range docs {
		var record recipe.HistoryRecord
		if err := fromDocument(doc, &record); err != nil {
			s.logger.Warn("Skipping unreadable history record", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if id, ok := doc[outbound.IDField].(string); ok && record.ID == "" {
			record.ID = id
		}
		records = append(records, record)
	}
	return records, nil
}

func toDocument(v any) (outbound.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc outbound.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDocument(doc outbound.Document, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("document does not match %T: %w", v, err)
	}
	return nil
}
