package security

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/alchemorsel/pantrychef/internal/infrastructure/config"
)

// ProviderIdentity is what an identity provider tells us about a user.
type ProviderIdentity struct {
	Subject     string
	Email       string
	DisplayName string
}

// OAuthProvider performs the authorization code flow against one provider
// and reads the user info endpoint.
type OAuthProvider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
}

// NewOAuthProvider creates a provider from configuration
func NewOAuthProvider(name string, cfg config.OAuthConfig) *OAuthProvider {
	return &OAuthProvider{
		name: name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
	}
}

// Name returns the provider name
func (p *OAuthProvider) Name() string {
	return p.name
}

// AuthCodeURL returns the consent page URL carrying state
func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Identify exchanges code for a token and fetches the user info.
// Providers disagree on field names, so sub/id and name/login are both accepted.
func (p *OAuthProvider) Identify(ctx context.Context, code string) (*ProviderIdentity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info returned status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("user info is not JSON")
	}

	fields := gjson.GetManyBytes(body, "sub", "id", "email", "name", "login")
	identity := &ProviderIdentity{
		Subject:     firstNonEmpty(fields[0].String(), fields[1].String()),
		Email:       fields[2].String(),
		DisplayName: firstNonEmpty(fields[3].String(), fields[4].String()),
	}
	if identity.Subject == "" {
		return nil, fmt.Errorf("user info has no subject")
	}
	return identity, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
