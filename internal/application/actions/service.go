// Package actions exposes the AI pipelines to clients as envelopes. Nothing
// crosses this boundary as an error or a panic.
package actions

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/application/ai"
	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/ports/inbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
	"github.com/alchemorsel/pantrychef/pkg/validation"
)

// User-facing failure messages.
const (
	MsgNoRecipes       = "Could not generate recipes. Try adjusting your preferences."
	MsgGenerateFailed  = "An unexpected error occurred while generating recipes."
	MsgDetectionFailed = "An unexpected error occurred while detecting ingredients."
)

// Detector identifies ingredients in a photo.
type Detector interface {
	Detect(ctx context.Context, in ai.DetectionInput) (ai.DetectionOutput, error)
}

// Generator produces recipes for a request.
type Generator interface {
	Generate(ctx context.Context, req recipe.GenerationRequest) ([]recipe.Recipe, error)
}

// Service implements inbound.Actions.
type Service struct {
	detector  Detector
	generator Generator
	limits    inbound.Limits
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLimits makes the boundary reject requests outside limits before any
// pipeline runs. Zero fields are not enforced.
func WithLimits(limits inbound.Limits) Option {
	return func(s *Service) {
		s.limits = limits
	}
}

// NewService creates the action boundary
func NewService(detector Detector, generator Generator, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		detector:  detector,
		generator: generator,
		logger:    logger.Named("actions"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the limits the boundary enforces.
func (s *Service) Limits() inbound.Limits {
	return s.limits
}

var _ inbound.Actions = (*Service)(nil)

// RunDetectIngredients runs ingredient detection.
func (s *Service) RunDetectIngredients(ctx context.Context, input inbound.DetectIngredientsInput) (env inbound.Envelope[[]string]) {
	defer s.recoverInto(&env, "detectIngredients", MsgDetectionFailed)

	if limit := s.limits.MaxPhotoBytes; limit > 0 {
		if size := validation.DataURISize(input.PhotoDataURI); size > limit {
			err := apperrors.NewValidationError(fmt.Sprintf("photo is %d bytes, the limit is %d", size, limit))
			return inbound.Fail[[]string](s.message(err, "detectIngredients", MsgDetectionFailed))
		}
	}

	out, err := s.detector.Detect(ctx, ai.DetectionInput{PhotoDataURI: input.PhotoDataURI})
	if err != nil {
		return inbound.Fail[[]string](s.message(err, "detectIngredients", MsgDetectionFailed))
	}

	ingredients := out.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	return inbound.Succeed(ingredients)
}

// RunGenerateRecipes runs recipe generation. An empty result is a failure.
func (s *Service) RunGenerateRecipes(ctx context.Context, input recipe.GenerationRequest) (env inbound.Envelope[[]recipe.Recipe]) {
	defer s.recoverInto(&env, "generateRecipes", MsgGenerateFailed)

	if limit := s.limits.MinIngredients; limit > 0 && distinctNames(input.Ingredients) < limit {
		err := apperrors.NewValidationError(fmt.Sprintf("at least %d distinct ingredients are required", limit))
		return inbound.Fail[[]recipe.Recipe](s.message(err, "generateRecipes", MsgGenerateFailed))
	}

	recipes, err := s.generator.Generate(ctx, input)
	if err != nil {
		return inbound.Fail[[]recipe.Recipe](s.message(err, "generateRecipes", MsgGenerateFailed))
	}

	if len(recipes) == 0 {
		s.logger.Warn("Generation returned no recipes")
		return inbound.Fail[[]recipe.Recipe](MsgNoRecipes)
	}

	return inbound.Succeed(recipes)
}

// message logs err and picks the text shown to the user. Validation details
// are shown as-is; anything else gets the generic message.
func (s *Service) message(err error, action, fallback string) string {
	s.logger.Error("Action failed", zap.String("action", action), zap.Error(err))

	if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.CodeValidationFailed {
		if appErr.Details != "" {
			return fmt.Sprintf("%s: %s", appErr.Message, appErr.Details)
		}
		return appErr.Message
	}
	return fallback
}

func distinctNames(ingredients []recipe.Ingredient) int {
	seen := make(map[string]struct{}, len(ingredients))
	for _, ing := range ingredients {
		seen[ing.Name] = struct{}{}
	}
	return len(seen)
}

func (s *Service) recoverInto(env any, action, fallback string) {
	r := recover()
	if r == nil {
		return
	}

	s.logger.Error("Action panicked", zap.String("action", action), zap.Any("panic", r), zap.Stack("stack"))

	switch e := env.(type) {
	case *inbound.Envelope[[]string]:
		*e = inbound.Fail[[]string](fallback)
	case *inbound.Envelope[[]recipe.Recipe]:
		*e = inbound.Fail[[]recipe.Recipe](fallback)
	}
}
