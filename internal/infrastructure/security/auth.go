// Package security provides token based authentication and the session
// registry behind outbound.IdentityService.
package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/domain/user"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/config"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
)

const sessionKeyPrefix = "session:"

// Claims represents JWT claims structure
type Claims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email"`
	Provider  string `json:"provider"`
	jwt.RegisteredClaims
}

// IdentityService issues signed session tokens and keeps every live session
// in the cache so sign-out revokes it immediately.
type IdentityService struct {
	accounts  outbound.AccountRepository
	sessions  outbound.CacheRepository
	providers map[string]*OAuthProvider
	config    config.AuthConfig
	jwtSecret []byte
	logger    *zap.Logger
	now       func() time.Time
}

// NewIdentityService creates a new identity service
func NewIdentityService(
	cfg config.AuthConfig,
	accounts outbound.AccountRepository,
	sessions outbound.CacheRepository,
	logger *zap.Logger,
) *IdentityService {
	providers := make(map[string]*OAuthProvider, len(cfg.Providers))
	for name, providerCfg := range cfg.Providers {
		providers[name] = NewOAuthProvider(name, providerCfg)
	}

	if cfg.JWTExpiration <= 0 {
		cfg.JWTExpiration = 24 * time.Hour
	}
	if cfg.RecentAuthWindow <= 0 {
		cfg.RecentAuthWindow = 5 * time.Minute
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "pantrychef"
	}

	return &IdentityService{
		accounts:  accounts,
		sessions:  sessions,
		providers: providers,
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		logger:    logger.Named("identity"),
		now:       time.Now,
	}
}

var _ outbound.IdentityService = (*IdentityService)(nil)

// SignUp creates a password account and signs it in
func (s *IdentityService) SignUp(ctx context.Context, email, password, displayName string) (*outbound.Session, error) {
	account, err := user.NewPasswordAccount(email, password, s.config.BCryptCost)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error()).WithCause(err)
	}
	account.DisplayName = displayName
	account.RecordLogin()

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Account created", zap.String("user_id", account.ID))
	return s.issue(ctx, account, user.PasswordProvider)
}

// SignInWithPassword verifies the credentials and opens a session
func (s *IdentityService) SignInWithPassword(ctx context.Context, email, password string) (*outbound.Session, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrAccountNotFound) {
			return nil, apperrors.NewInvalidCredentialsError()
		}
		return nil, err
	}

	if err := account.CheckPassword(password); err != nil {
		s.logger.Debug("Password check failed", zap.String("user_id", account.ID))
		return nil, apperrors.NewInvalidCredentialsError()
	}

	s.touch(ctx, account)
	return s.issue(ctx, account, user.PasswordProvider)
}

// SignInWithProvider exchanges an authorization code and opens a session,
// creating the account on first sign-in.
func (s *IdentityService) SignInWithProvider(ctx context.Context, provider, code string) (*outbound.Session, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("provider %q", provider))
	}

	identity, err := p.Identify(ctx, code)
	if err != nil {
		return nil, apperrors.NewExternalServiceError(provider, err)
	}

	account, err := s.accounts.FindByProvider(ctx, provider, identity.Subject)
	switch {
	case errors.Is(err, user.ErrAccountNotFound):
		account = user.NewProviderAccount(provider, identity.Subject, identity.Email, identity.DisplayName)
		account.RecordLogin()
		if err := s.accounts.Create(ctx, account); err != nil {
			return nil, err
		}
		s.logger.Info("Provider account created",
			zap.String("user_id", account.ID),
			zap.String("provider", provider),
		)
	case err != nil:
		return nil, err
	default:
		s.touch(ctx, account)
	}

	return s.issue(ctx, account, provider)
}

// ProviderAuthURL returns the consent page URL of provider
func (s *IdentityService) ProviderAuthURL(provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("provider %q", provider))
	}
	return p.AuthCodeURL(state), nil
}

// SignOut revokes the session behind token. Expired tokens sign out quietly.
func (s *IdentityService) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return err
	}

	if err := s.sessions.Delete(ctx, sessionKeyPrefix+claims.SessionID); err != nil {
		return apperrors.NewInternalError("failed to revoke session").WithCause(err)
	}
	s.logger.Info("Session revoked", zap.String("user_id", claims.Subject))
	return nil
}

// Resolve validates token and returns its live session
func (s *IdentityService) Resolve(ctx context.Context, token string) (*outbound.Session, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	data, err := s.sessions.Get(ctx, sessionKeyPrefix+claims.SessionID)
	if err != nil {
		if errors.Is(err, outbound.ErrCacheMiss) {
			return nil, apperrors.NewUnauthorizedError("Session has ended")
		}
		return nil, apperrors.NewInternalError("failed to load session").WithCause(err)
	}

	var session outbound.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperrors.NewInternalError("failed to decode session").WithCause(err)
	}
	session.Token = token
	return &session, nil
}

// UpdatePassword replaces the password of the session's account. The
// session must have authenticated within the recent-auth window.
func (s *IdentityService) UpdatePassword(ctx context.Context, token, newPassword string) error {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return err
	}

	if s.now().Sub(session.AuthenticatedAt) > s.config.RecentAuthWindow {
		return apperrors.NewStaleAuthError()
	}

	account, err := s.accounts.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, user.ErrAccountNotFound) {
			return apperrors.NewNotFoundError("account")
		}
		return err
	}

	if err := account.SetPassword(newPassword, s.config.BCryptCost); err != nil {
		return apperrors.NewValidationError(err.Error()).WithCause(err)
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return err
	}

	s.logger.Info("Password updated", zap.String("user_id", account.ID))
	return nil
}

func (s *IdentityService) issue(ctx context.Context, account *user.Account, provider string) (*outbound.Session, error) {
	now := s.now().UTC()
	session := &outbound.Session{
		ID:              uuid.NewString(),
		UserID:          account.ID,
		Email:           account.Email,
		DisplayName:     account.DisplayName,
		Provider:        provider,
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(s.config.JWTExpiration),
	}

	claims := &Claims{
		SessionID: session.ID,
		Email:     account.Email,
		Provider:  provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to sign token").WithCause(err)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode session").WithCause(err)
	}
	if err := s.sessions.Set(ctx, sessionKeyPrefix+session.ID, data, s.config.JWTExpiration); err != nil {
		return nil, apperrors.NewInternalError("failed to store session").WithCause(err)
	}

	session.Token = signed
	return session, nil
}

func (s *IdentityService) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, apperrors.NewUnauthorizedError("Invalid or expired token").WithCause(err)
	}
	if claims.SessionID == "" {
		return nil, apperrors.NewUnauthorizedError("Invalid or expired token")
	}
	return claims, nil
}

// touch records the login without failing the sign-in
func (s *IdentityService) touch(ctx context.Context, account *user.Account) {
	account.RecordLogin()
	if err := s.accounts.Update(ctx, account); err != nil {
		s.logger.Warn("Failed to record login", zap.String("user_id", account.ID), zap.Error(err))
	}
}
