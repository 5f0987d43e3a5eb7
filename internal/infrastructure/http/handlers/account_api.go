package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/application/user"
)

// AccountHandlers handles profile and password endpoints
type AccountHandlers struct {
	accounts *user.AccountService
	logger   *zap.Logger
}

// NewAccountHandlers creates the account handlers
func NewAccountHandlers(accounts *user.AccountService, logger *zap.Logger) *AccountHandlers {
	return &AccountHandlers{accounts: accounts, logger: logger.Named("account-api")}
}

// GetProfile handles GET /api/v1/account/profile
func (h *AccountHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	profile, err := h.accounts.GetProfile(r.Context(), session.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, profile)
}

// UpdateProfile handles PUT /api/v1/account/profile
func (h *AccountHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var cmd user.UpdateProfileCommand
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, h.logger, err)
		return
	}

	profile, err := h.accounts.UpdateProfile(r.Context(), session, cmd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, profile)
}

// UpdatePassword handles PUT /api/v1/account/password; a stale session
// answers 409 with the re-authentication message
func (h *AccountHandlers) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var cmd user.UpdatePasswordCommand
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.accounts.UpdatePassword(r.Context(), session, cmd); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, nil)
}
