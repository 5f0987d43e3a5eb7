// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"

	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
)

// Envelope is the result of an action: either data or a short user-facing
// error message.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Succeed wraps data in a successful envelope.
func Succeed[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: data}
}

// Fail returns a failed envelope carrying message.
func Fail[T any](message string) Envelope[T] {
	return Envelope[T]{Success: false, Error: message}
}

// DetectIngredientsInput carries a photo as a data URI of the form
// data:<mimetype>;base64,<data>.
type DetectIngredientsInput struct {
	PhotoDataURI string `json:"photoDataUri"`
}

// Limits are the generation limits a server enforces. Clients check them
// locally before calling an action.
type Limits struct {
	MinIngredients int   `json:"minIngredients"`
	MaxPhotoBytes  int64 `json:"maxPhotoBytes"`
}

// Actions is the boundary through which clients run the AI pipelines.
// Implementations never return errors or panic; every failure is an envelope.
type Actions interface {
	RunDetectIngredients(ctx context.Context, input DetectIngredientsInput) Envelope[[]string]
	RunGenerateRecipes(ctx context.Context, input recipe.GenerationRequest) Envelope[[]recipe.Recipe]
}

// Library keeps a user's favorite recipes and generation history.
type Library interface {
	// ToggleFavorite deletes the saved recipe when isFavorite is true and
	// saves it otherwise.
	ToggleFavorite(ctx context.Context, userID string, r recipe.Recipe, isFavorite bool) error
	// SavedRecipes lists favorites, newest first.
	SavedRecipes(ctx context.Context, userID string) ([]recipe.SavedRecipe, error)
	// RecordGeneration appends a history record and returns its id.
	RecordGeneration(ctx context.Context, userID string, record recipe.HistoryRecord) (string, error)
	// History lists history records, newest first.
	History(ctx context.Context, userID string) ([]recipe.HistoryRecord, error)
}
