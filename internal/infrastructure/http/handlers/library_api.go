package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/ports/inbound"
)

// LibraryHandlers handles favorites and generation history
type LibraryHandlers struct {
	library       inbound.Library
	historyFailed func()
	logger        *zap.Logger
}

// NewLibraryHandlers creates the library handlers
func NewLibraryHandlers(library inbound.Library, logger *zap.Logger) *LibraryHandlers {
	return &LibraryHandlers{
		library:       library,
		historyFailed: func() {},
		logger:        logger.Named("library-api"),
	}
}

// OnHistoryFailure registers f to run whenever a history record cannot be
// stored.
func (h *LibraryHandlers) OnHistoryFailure(f func()) *LibraryHandlers {
	if f != nil {
		h.historyFailed = f
	}
	return h
}

// ToggleFavoriteRequest is the body of POST /favorites/toggle
type ToggleFavoriteRequest struct {
	Recipe     recipe.Recipe `json:"recipe"`
	IsFavorite bool          `json:"isFavorite"`
}

// RecordHistoryResponse carries the id of a new history record
type RecordHistoryResponse struct {
	ID string `json:"id"`
}

// Favorites handles GET /api/v1/favorites
func (h *LibraryHandlers) Favorites(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	saved, err := h.library.SavedRecipes(r.Context(), session.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, saved)
}

// ToggleFavorite handles POST /api/v1/favorites/toggle
func (h *LibraryHandlers) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req ToggleFavoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.library.ToggleFavorite(r.Context(), session.UserID, req.Recipe, req.IsFavorite); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, map[string]interface{}{
		"id":         req.Recipe.Slug(),
		"isFavorite": !req.IsFavorite,
	})
}

// History handles GET /api/v1/history
func (h *LibraryHandlers) History(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	records, err := h.library.History(r.Context(), session.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, records)
}

// RecordHistory handles POST /api/v1/history
func (h *LibraryHandlers) RecordHistory(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var record recipe.HistoryRecord
	if err := decodeJSON(r, &record); err != nil {
		writeError(w, h.logger, err)
		return
	}

	id, err := h.library.RecordGeneration(r.Context(), session.UserID, record)
	if err != nil {
		h.historyFailed()
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, RecordHistoryResponse{ID: id})
}
