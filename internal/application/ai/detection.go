// Package ai provides the AI pipelines: ingredient detection from a photo
// and recipe generation from an ingredient list.
package ai

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/application/prompt"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
)

// DetectionInput is a photo encoded as data:<mimetype>;base64,<data>.
type DetectionInput struct {
	PhotoDataURI string `json:"photoDataUri" validate:"required,datauri"`
}

// DetectionOutput lists the ingredients seen in the photo.
type DetectionOutput struct {
	Ingredients []string `json:"ingredients" validate:"required,dive,required"`
}

const detectionTemplate = `Analyze this image and identify all food ingredients visible. Return a JSON object whose "ingredients" field is an array with ingredient names. Be specific (e.g., 'cherry tomatoes' not just 'tomatoes'). Only include ingredients, not prepared dishes or kitchenware.`

var detectionSchema = outbound.OutputSchema{
	Name:        "detected_ingredients",
	Description: "Ingredients detected in a photo",
	Document: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ingredients": map[string]any{
				"type":        "array",
				"description": "A list of ingredients detected in the image.",
				"items":       map[string]any{"type": "string"},
			},
		},
		"required":             []string{"ingredients"},
		"additionalProperties": false,
	},
}

// DetectionPipeline identifies ingredients in a photo.
type DetectionPipeline struct {
	prompt *prompt.Prompt[DetectionInput, DetectionOutput]
	logger *zap.Logger
}

// NewDetectionPipeline builds the detection prompt on top of completion.
func NewDetectionPipeline(
	completion outbound.CompletionService,
	validate *validator.Validate,
	logger *zap.Logger,
	opts ...prompt.Option,
) (*DetectionPipeline, error) {
	p, err := prompt.New[DetectionInput, DetectionOutput](prompt.Definition[DetectionInput]{
		Name:     "detectIngredients",
		Template: detectionTemplate,
		Media: func(in DetectionInput) []outbound.Media {
			return []outbound.Media{{URL: in.PhotoDataURI, ContentType: MediaType(in.PhotoDataURI)}}
		},
		Schema: detectionSchema,
	}, completion, validate, logger, opts...)
	if err != nil {
		return nil, err
	}

	return &DetectionPipeline{
		prompt: p,
		logger: logger.Named("detection"),
	}, nil
}

// Detect returns the ingredient names seen in the photo, in the order the
// model listed them.
func (p *DetectionPipeline) Detect(ctx context.Context, in DetectionInput) (DetectionOutput, error) {
	if in.PhotoDataURI != "" && !strings.HasPrefix(MediaType(in.PhotoDataURI), "image/") {
		return DetectionOutput{}, apperrors.NewValidationError("photoDataUri must contain an image")
	}

	out, err := p.prompt.Execute(ctx, in)
	if err != nil {
		return DetectionOutput{}, err
	}

	p.logger.Info("Ingredients detected", zap.Int("count", len(out.Ingredients)))
	return out, nil
}

// MediaType returns the MIME type of a data URI, or "" when uri is not one.
func MediaType(uri string) string {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return ""
	}
	end := strings.IndexAny(rest, ";,")
	if end < 0 {
		return ""
	}
	return strings.ToLower(rest[:end])
}
