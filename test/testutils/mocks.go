// Package testutils provides mock implementations and fixtures for testing
package testutils

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/ports/inbound"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
)

// MockCompletionService provides a mock implementation of CompletionService.
// Every request is also recorded so tests can inspect the conversation.
type MockCompletionService struct {
	mock.Mock
	mu       sync.Mutex
	requests []outbound.CompletionRequest
}

// Complete records req and returns the configured response
func (m *MockCompletionService) Complete(ctx context.Context, req outbound.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// Requests returns the requests received so far
func (m *MockCompletionService) Requests() []outbound.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]outbound.CompletionRequest{}, m.requests...)
}

// MockActions provides a mock implementation of inbound.Actions
type MockActions struct {
	mock.Mock
}

// RunDetectIngredients returns the configured envelope
func (m *MockActions) RunDetectIngredients(ctx context.Context, input inbound.DetectIngredientsInput) inbound.Envelope[[]string] {
	args := m.Called(ctx, input)
	return args.Get(0).(inbound.Envelope[[]string])
}

// RunGenerateRecipes returns the configured envelope
func (m *MockActions) RunGenerateRecipes(ctx context.Context, input recipe.GenerationRequest) inbound.Envelope[[]recipe.Recipe] {
	args := m.Called(ctx, input)
	return args.Get(0).(inbound.Envelope[[]recipe.Recipe])
}

// MockLibrary provides a mock implementation of inbound.Library
type MockLibrary struct {
	mock.Mock
}

// ToggleFavorite returns the configured error
func (m *MockLibrary) ToggleFavorite(ctx context.Context, userID string, r recipe.Recipe, isFavorite bool) error {
	args := m.Called(ctx, userID, r, isFavorite)
	return args.Error(0)
}

// SavedRecipes returns the configured favorites
func (m *MockLibrary) SavedRecipes(ctx context.Context, userID string) ([]recipe.SavedRecipe, error) {
	args := m.Called(ctx, userID)
	saved, _ := args.Get(0).([]recipe.SavedRecipe)
	return saved, args.Error(1)
}

// RecordGeneration returns the configured id
func (m *MockLibrary) RecordGeneration(ctx context.Context, userID string, record recipe.HistoryRecord) (string, error) {
	args := m.Called(ctx, userID, record)
	return args.String(0), args.Error(1)
}

// History returns the configured records
func (m *MockLibrary) History(ctx context.Context, userID string) ([]recipe.HistoryRecord, error) {
	args := m.Called(ctx, userID)
	records, _ := args.Get(0).([]recipe.HistoryRecord)
	return records, args.Error(1)
}

// MockIdentityService provides a mock implementation of IdentityService
type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) session(args mock.Arguments) (*outbound.Session, error) {
	session, _ := args.Get(0).(*outbound.Session)
	return session, args.Error(1)
}

// SignUp returns the configured session
func (m *MockIdentityService) SignUp(ctx context.Context, email, password, displayName string) (*outbound.Session, error) {
	return m.session(m.Called(ctx, email, password, displayName))
}

// SignInWithPassword returns the configured session
func (m *MockIdentityService) SignInWithPassword(ctx context.Context, email, password string) (*outbound.Session, error) {
	return m.session(m.Called(ctx, email, password))
}

// SignInWithProvider returns the configured session
func (m *MockIdentityService) SignInWithProvider(ctx context.Context, provider, code string) (*outbound.Session, error) {
	return m.session(m.Called(ctx, provider, code))
}

// ProviderAuthURL returns the configured URL
func (m *MockIdentityService) ProviderAuthURL(provider, state string) (string, error) {
	args := m.Called(provider, state)
	return args.String(0), args.Error(1)
}

// SignOut returns the configured error
func (m *MockIdentityService) SignOut(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

// Resolve returns the configured session
func (m *MockIdentityService) Resolve(ctx context.Context, token string) (*outbound.Session, error) {
	return m.session(m.Called(ctx, token))
}

// UpdatePassword returns the configured error
func (m *MockIdentityService) UpdatePassword(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}
