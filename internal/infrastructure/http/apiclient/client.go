// Package apiclient talks to the PantryChef JSON API. It implements the
// action boundary and the recipe library over HTTP so the orchestrator can
// run against a remote server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/application/user"
	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	domainuser "github.com/alchemorsel/pantrychef/internal/domain/user"
	"github.com/alchemorsel/pantrychef/internal/ports/inbound"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
)

// SessionSource supplies the bearer token for authenticated calls.
type SessionSource interface {
	Current() *outbound.Session
}

// Client handles communication with the backend API
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   SessionSource
	logger     *zap.Logger
}

var (
	_ inbound.Actions = (*Client)(nil)
	_ inbound.Library = (*Client)(nil)
)

// New creates a client for the API at baseURL. sessions may be nil when only
// unauthenticated endpoints are used.
func New(baseURL string, timeout time.Duration, sessions SessionSource, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		sessions: sessions,
		logger:   logger.Named("api-client"),
	}
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

// Actions

// RunDetectIngredients calls the detection action. Transport failures come
// back as failed envelopes.
func (c *Client) RunDetectIngredients(ctx context.Context, input inbound.DetectIngredientsInput) inbound.Envelope[[]string] {
	var names []string
	if err := c.do(ctx, http.MethodPost, "/api/v1/actions/detect-ingredients", false, input, &names); err != nil {
		return inbound.Fail[[]string](actionMessage(err))
	}
	return inbound.Succeed(names)
}

// RunGenerateRecipes calls the generation action.
func (c *Client) RunGenerateRecipes(ctx context.Context, input recipe.GenerationRequest) inbound.Envelope[[]recipe.Recipe] {
	var recipes []recipe.Recipe
	if err := c.do(ctx, http.MethodPost, "/api/v1/actions/generate-recipes", false, input, &recipes); err != nil {
		return inbound.Fail[[]recipe.Recipe](actionMessage(err))
	}
	return inbound.Succeed(recipes)
}

// Library. The server scopes every call to the bearer token's user, so
// userID only has to match the current session.

// ToggleFavorite deletes or saves r for the signed-in user.
func (c *Client) ToggleFavorite(ctx context.Context, userID string, r recipe.Recipe, isFavorite bool) error {
	if err := c.checkUser(userID); err != nil {
		return err
	}
	body := map[string]interface{}{"recipe": r, "isFavorite": isFavorite}
	return c.do(ctx, http.MethodPost, "/api/v1/favorites/toggle", true, body, nil)
}

// SavedRecipes lists favorites, newest first.
func (c *Client) SavedRecipes(ctx context.Context, userID string) ([]recipe.SavedRecipe, error) {
	if err := c.checkUser(userID); err != nil {
		return nil, err
	}
	var saved []recipe.SavedRecipe
	if err := c.do(ctx, http.MethodGet, "/api/v1/favorites", true, nil, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// RecordGeneration appends a history record and returns its id.
func (c *Client) RecordGeneration(ctx context.Context, userID string, record recipe.HistoryRecord) (string, error) {
	if err := c.checkUser(userID); err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/history", true, record, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// History lists history records, newest first.
func (c *Client) History(ctx context.Context, userID string) ([]recipe.HistoryRecord, error) {
	if err := c.checkUser(userID); err != nil {
		return nil, err
	}
	var records []recipe.HistoryRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/history", true, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Authentication

// SignUp creates an account and returns its session.
func (c *Client) SignUp(ctx context.Context, cmd user.SignUpCommand) (*outbound.Session, error) {
	var session outbound.Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/signup", false, cmd, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, cmd user.LoginCommand) (*outbound.Session, error) {
	var session outbound.Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", false, cmd, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Logout ends the current session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/logout", true, nil, nil)
}

// Profile returns the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (*domainuser.Profile, error) {
	var profile domainuser.Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/account/profile", true, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Limits returns the generation limits the server enforces.
func (c *Client) Limits(ctx context.Context) (inbound.Limits, error) {
	var limits inbound.Limits
	err := c.do(ctx, http.MethodGet, "/api/v1/limits", false, nil, &limits)
	return limits, err
}

// VerifyConnection checks if the API backend is reachable
func (c *Client) VerifyConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Connection verification failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < 500
}

func (c *Client) checkUser(userID string) error {
	session := c.current()
	if session == nil {
		return apperrors.NewUnauthorizedError("")
	}
	if userID != "" && userID != session.UserID {
		return apperrors.NewUnauthorizedError("Session does not belong to this user")
	}
	return nil
}

func (c *Client) current() *outbound.Session {
	if c.sessions == nil {
		return nil
	}
	return c.sessions.Current()
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if auth {
		session := c.current()
		if session == nil || session.Token == "" {
			return apperrors.NewUnauthorizedError("")
		}
		req.Header.Set("Authorization", "Bearer "+session.Token)
	}

	c.logger.Debug("API request", zap.String("method", method), zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewExternalServiceError("PantryChef API", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		c.logger.Error("Unreadable API response",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
		)
		return apperrors.NewExternalServiceError("PantryChef API",
			fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}

	if !decoded.Success {
		return decodeError(resp.StatusCode, decoded.Error)
	}

	if out == nil || len(decoded.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// decodeError turns the error field of a failed response into an error. The
// API sends either a structured application error or, from actions, a plain
// message.
func decodeError(status int, raw json.RawMessage) error {
	var appErr apperrors.AppError
	if err := json.Unmarshal(raw, &appErr); err == nil && appErr.Code != "" {
		return &appErr
	}

	var message string
	if err := json.Unmarshal(raw, &message); err == nil && message != "" {
		return &actionError{message: message}
	}

	return apperrors.NewExternalServiceError("PantryChef API", fmt.Errorf("status %d", status))
}

type actionError struct {
	message string
}

func (e *actionError) Error() string { return e.message }

func actionMessage(err error) string {
	if ae, ok := err.(*actionError); ok {
		return ae.message
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr.Message
	}
	return err.Error()
}
