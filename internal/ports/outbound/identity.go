package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/alchemorsel/pantrychef/internal/domain/user"
)

// Session is an authenticated user session.
type Session struct {
	ID              string    `json:"id"`
	UserID          string    `json:"uid"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"displayName,omitempty"`
	Provider        string    `json:"provider"`
	Token           string    `json:"token,omitempty"`
	AuthenticatedAt time.Time `json:"authenticatedAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// IdentityService authenticates users and manages their sessions.
type IdentityService interface {
	SignUp(ctx context.Context, email, password, displayName string) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignInWithProvider exchanges a provider authorization code for a session.
	SignInWithProvider(ctx context.Context, provider, code string) (*Session, error)
	// ProviderAuthURL returns the consent page URL of provider.
	ProviderAuthURL(provider, state string) (string, error)
	SignOut(ctx context.Context, token string) error
	// Resolve validates token and returns its live session.
	Resolve(ctx context.Context, token string) (*Session, error)
	// UpdatePassword fails with a stale-auth error when the session was not
	// authenticated recently.
	UpdatePassword(ctx context.Context, token, newPassword string) error
}

// AccountRepository persists account credentials.
type AccountRepository interface {
	Create(ctx context.Context, account *user.Account) error
	Update(ctx context.Context, account *user.Account) error
	FindByID(ctx context.Context, id string) (*user.Account, error)
	FindByEmail(ctx context.Context, email string) (*user.Account, error)
	FindByProvider(ctx context.Context, provider, subject string) (*user.Account, error)
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ErrCacheMiss is returned by CacheRepository.Get for absent or expired keys.
var ErrCacheMiss = errors.New("cache miss")
