package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/ports/inbound"
)

// Messages for requests that never reach the action boundary
const (
	msgInvalidRequest = "Invalid request body."
)

// ActionsHandlers exposes the action boundary. Responses are always
// envelopes; transport problems are the only non-200 answers.
type ActionsHandlers struct {
	actions inbound.Actions
	limits  inbound.Limits
	logger  *zap.Logger
}

// NewActionsHandlers creates the action handlers. limits are published to
// clients so they can check requests before sending them.
func NewActionsHandlers(actions inbound.Actions, limits inbound.Limits, logger *zap.Logger) *ActionsHandlers {
	return &ActionsHandlers{actions: actions, limits: limits, logger: logger.Named("actions-api")}
}

// Limits handles GET /api/v1/limits
func (h *ActionsHandlers) Limits(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.logger, http.StatusOK, h.limits)
}

// DetectIngredients handles POST /api/v1/actions/detect-ingredients
func (h *ActionsHandlers) DetectIngredients(w http.ResponseWriter, r *http.Request) {
	var input inbound.DetectIngredientsInput
	if err := decodeJSON(r, &input); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, inbound.Fail[[]string](msgInvalidRequest))
		return
	}

	writeJSON(w, h.logger, http.StatusOK, h.actions.RunDetectIngredients(r.Context(), input))
}

// GenerateRecipes handles POST /api/v1/actions/generate-recipes
func (h *ActionsHandlers) GenerateRecipes(w http.ResponseWriter, r *http.Request) {
	var input recipe.GenerationRequest
	if err := decodeJSON(r, &input); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, inbound.Fail[[]recipe.Recipe](msgInvalidRequest))
		return
	}

	writeJSON(w, h.logger, http.StatusOK, h.actions.RunGenerateRecipes(r.Context(), input))
}
