package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "PantryChef", cfg.App.Name)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Generation.MinIngredients)
	assert.Equal(t, int64(20<<20), cfg.Generation.MaxPhotoBytes)
	assert.Equal(t, 5*time.Minute, cfg.Auth.RecentAuthWindow)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  log_level: debug
ai:
  provider: ollama
  base_url: http://localhost:11434/v1
  model: llava
auth:
  providers:
    google:
      client_id: abc
      scopes: [openid, email]
`), 0o600))

	t.Setenv("PANTRYCHEF_SERVER_PORT", "9191")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, "llava", cfg.AI.Model)
	assert.Equal(t, 9191, cfg.Server.Port)
	require.Contains(t, cfg.Auth.Providers, "google")
	assert.Equal(t, "abc", cfg.Auth.Providers["google"].ClientID)
	assert.Equal(t, []string{"openid", "email"}, cfg.Auth.Providers["google"].Scopes)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App:        AppConfig{Name: "PantryChef", Environment: "development"},
			Server:     ServerConfig{Port: 8080},
			Database:   DatabaseConfig{Driver: "sqlite"},
			AI:         AIConfig{Provider: "openai"},
			Generation: GenerationConfig{MinIngredients: 3},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("unknown database driver", func(t *testing.T) {
		cfg := base()
		cfg.Database.Driver = "mysql"
		assert.Error(t, cfg.Validate())
	})

	t.Run("production requires secrets", func(t *testing.T) {
		cfg := base()
		cfg.App.Environment = "production"
		assert.ErrorContains(t, cfg.Validate(), "jwt_secret")

		cfg.Auth.JWTSecret = "secret"
		assert.ErrorContains(t, cfg.Validate(), "api_key")

		cfg.AI.APIKey = "sk-test"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := base()
		cfg.AI.Provider = "anthropic"
		assert.Error(t, cfg.Validate())
	})

	t.Run("request timeout leaves room for the repair call", func(t *testing.T) {
		cfg := base()
		cfg.AI.Timeout = 90 * time.Second
		cfg.Server.RequestTimeout = 110 * time.Second
		assert.ErrorContains(t, cfg.Validate(), "request_timeout")

		cfg.Server.RequestTimeout = 180 * time.Second
		assert.NoError(t, cfg.Validate())
	})

	t.Run("generation limits", func(t *testing.T) {
		cfg := base()
		cfg.Generation.MinIngredients = 2
		assert.ErrorContains(t, cfg.Validate(), "min_ingredients")

		cfg = base()
		cfg.Server.MaxBodyBytes = 1 << 20
		cfg.Generation.MaxPhotoBytes = 1 << 20
		assert.ErrorContains(t, cfg.Validate(), "max_body_bytes")

		cfg.Server.MaxBodyBytes = 2 << 20
		assert.NoError(t, cfg.Validate())
	})

	t.Run("trusted proxies", func(t *testing.T) {
		cfg := base()
		cfg.Server.TrustedProxies = []string{"10.0.0.0/8", "192.168.1.7", "::1"}
		assert.NoError(t, cfg.Validate())

		cfg.Server.TrustedProxies = []string{"not-an-ip"}
		assert.ErrorContains(t, cfg.Validate(), "trusted_proxies")
	})
}

func TestLoad_RequestTimeoutCoversRepair(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, cfg.Server.RequestTimeout, 2*cfg.AI.Timeout)
	assert.Greater(t, cfg.Server.WriteTimeout, cfg.Server.RequestTimeout)
	assert.Empty(t, cfg.Server.TrustedProxies)
}
