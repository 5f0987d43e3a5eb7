package container_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap/zaptest"

	"github.com/alchemorsel/pantrychef/internal/infrastructure/config"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/container"
)

func TestModuleGraphIsComplete(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.Path = ""

	require.NoError(t, fx.ValidateApp(container.Module(cfg, zaptest.NewLogger(t))))
}

func TestModuleGraphWithRedis(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Redis.Enabled = true

	require.NoError(t, fx.ValidateApp(container.Module(cfg, zaptest.NewLogger(t))))
}
