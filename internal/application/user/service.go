// Package user provides the application layer for accounts: sign-up and
// sign-in through the identity service, profiles in the document store and
// session change notifications.
package user

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/domain/user"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
)

// SignUpCommand contains user registration data
type SignUpCommand struct {
	DisplayName string `json:"displayName" validate:"required,display_name"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,strong_password"`
}

// LoginCommand contains user login data
type LoginCommand struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileCommand changes the display name
type UpdateProfileCommand struct {
	DisplayName string `json:"displayName" validate:"required,display_name"`
}

// UpdatePasswordCommand sets a new password
type UpdatePasswordCommand struct {
	NewPassword string `json:"newPassword" validate:"required,strong_password"`
}

// AccountService implements account use cases
type AccountService struct {
	identity outbound.IdentityService
	store    outbound.DocumentStore
	validate *validator.Validate
	hub      *SessionHub
	logger   *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(
	identity outbound.IdentityService,
	store outbound.DocumentStore,
	validate *validator.Validate,
	hub *SessionHub,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		identity: identity,
		store:    store,
		validate: validate,
		hub:      hub,
		logger:   logger.Named("account-service"),
	}
}

// ProfilePath returns the document path of a user's profile.
func ProfilePath(userID string) string {
	return outbound.DocumentPath("users", userID)
}

// SignUp creates the account and its profile document
func (s *AccountService) SignUp(ctx context.Context, cmd SignUpCommand) (*outbound.Session, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.FromValidator(err)
	}

	s.logger.Info("Registering new user", zap.String("email", user.NormalizeEmail(cmd.Email)))

	session, err := s.identity.SignUp(ctx, cmd.Email, cmd.Password, cmd.DisplayName)
	if err != nil {
		return nil, err
	}

	if err := s.putProfile(ctx, session, cmd.DisplayName); err != nil {
		return nil, err
	}

	return session, nil
}

// SignIn signs in with email and password
func (s *AccountService) SignIn(ctx context.Context, cmd LoginCommand) (*outbound.Session, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.FromValidator(err)
	}

	session, err := s.identity.SignInWithPassword(ctx, cmd.Email, cmd.Password)
	if err != nil {
		s.logger.Info("Sign-in failed", zap.String("email", user.NormalizeEmail(cmd.Email)), zap.Error(err))
		return nil, err
	}

	return session, nil
}

// ProviderAuthURL returns the consent page of provider
func (s *AccountService) ProviderAuthURL(provider, state string) (string, error) {
	return s.identity.ProviderAuthURL(provider, state)
}

// SignInWithProvider completes a provider sign-in and makes sure the user
// has a profile document.
func (s *AccountService) SignInWithProvider(ctx context.Context, provider, code string) (*outbound.Session, error) {
	if code == "" {
		return nil, apperrors.NewValidationError("authorization code is required")
	}

	session, err := s.identity.SignInWithProvider(ctx, provider, code)
	if err != nil {
		return nil, err
	}

	_, err = s.store.Get(ctx, ProfilePath(session.UserID))
	switch {
	case errors.Is(err, outbound.ErrDocumentNotFound):
		if err := s.putProfile(ctx, session, session.DisplayName); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, apperrors.NewDatabaseError("load profile", err)
	}

	return session, nil
}

// SignOut ends the session and tells its subscribers it is signed out
func (s *AccountService) SignOut(ctx context.Context, session *outbound.Session) error {
	if session == nil {
		return nil
	}
	if err := s.identity.SignOut(ctx, session.Token); err != nil {
		return err
	}

	s.hub.Publish(session.ID, nil)
	s.logger.Info("User signed out", zap.String("user_id", session.UserID))
	return nil
}

// Session resolves token into its live session
func (s *AccountService) Session(ctx context.Context, token string) (*outbound.Session, error) {
	return s.identity.Resolve(ctx, token)
}

// Subscribe streams changes of the session sessionID
func (s *AccountService) Subscribe(sessionID string) (<-chan *outbound.Session, func()) {
	return s.hub.Subscribe(sessionID)
}

// GetProfile loads the profile document of userID
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*user.Profile, error) {
	doc, err := s.store.Get(ctx, ProfilePath(userID))
	if errors.Is(err, outbound.ErrDocumentNotFound) {
		return nil, apperrors.NewNotFoundError("profile")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("load profile", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to read profile")
	}
	var profile user.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, apperrors.Wrap(err, "failed to read profile")
	}
	return &profile, nil
}

// UpdateProfile changes the display name of the signed-in user
func (s *AccountService) UpdateProfile(ctx context.Context, session *outbound.Session, cmd UpdateProfileCommand) (*user.Profile, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("")
	}
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.FromValidator(err)
	}

	err := s.store.Update(ctx, ProfilePath(session.UserID), outbound.Document{"displayName": cmd.DisplayName})
	switch {
	case errors.Is(err, outbound.ErrDocumentNotFound):
		if err := s.putProfile(ctx, session, cmd.DisplayName); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, apperrors.NewDatabaseError("update profile", err)
	}

	s.logger.Info("Profile updated", zap.String("user_id", session.UserID))

	updated := *session
	updated.DisplayName = cmd.DisplayName
	s.hub.Publish(session.ID, &updated)

	return s.GetProfile(ctx, session.UserID)
}

// UpdatePassword changes the password. Sessions that signed in too long ago
// get a stale-auth error.
func (s *AccountService) UpdatePassword(ctx context.Context, session *outbound.Session, cmd UpdatePasswordCommand) error {
	if session == nil {
		return apperrors.NewUnauthorizedError("")
	}
	if err := s.validate.Struct(cmd); err != nil {
		return apperrors.FromValidator(err)
	}

	if err := s.identity.UpdatePassword(ctx, session.Token, cmd.NewPassword); err != nil {
		return err
	}

	s.logger.Info("Password updated", zap.String("user_id", session.UserID))
	return nil
}

func (s *AccountService) putProfile(ctx context.Context, session *outbound.Session, displayName string) error {
	doc := outbound.Document{
		"uid":         session.UserID,
		"email":       session.Email,
		"displayName": displayName,
		"createdAt":   outbound.ServerTimestamp,
	}
	if err := s.store.Put(ctx, ProfilePath(session.UserID), doc); err != nil {
		s.logger.Error("Failed to write profile", zap.String("user_id", session.UserID), zap.Error(err))
		return apperrors.NewDatabaseError("create profile", err)
	}
	return nil
}
