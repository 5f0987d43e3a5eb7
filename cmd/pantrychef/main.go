// Package main is the PantryChef API server
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/infrastructure/config"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/container"
	"github.com/alchemorsel/pantrychef/pkg/logger"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to a YAML config file; reloaded on change")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "pantrychef: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var (
		log   *zap.Logger
		level zap.AtomicLevel
	)

	onChange := func(updated *config.Config) {
		level.SetLevel(logger.ParseLevel(updated.App.LogLevel))
		log.Info("Configuration reloaded", zap.String("log_level", updated.App.LogLevel))
	}
	onError := func(err error) {
		log.Warn("Ignoring invalid configuration change", zap.Error(err))
	}

	cfg, err := loadConfig(configPath, onChange, onError)
	if err != nil {
		return err
	}

	log, level, err = logger.NewWithLevel(logger.Config{
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		Development: cfg.App.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	app := fx.New(container.Module(cfg, log))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, time.Minute)
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	select {
	case <-ctx.Done():
	case sig := <-app.Wait():
		if sig.ExitCode != 0 {
			log.Error("Application requested shutdown", zap.Int("exit_code", sig.ExitCode))
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
	defer stopCancel()
	return app.Stop(stopCtx)
}

// loadConfig watches an explicit or discovered config file and falls back
// to defaults and environment variables when there is none.
func loadConfig(path string, onChange func(*config.Config), onError func(error)) (*config.Config, error) {
	cfg, err := config.Watch(path, onChange, onError)
	if err == nil {
		return cfg, nil
	}

	var notFound viper.ConfigFileNotFoundError
	if path == "" && errors.As(err, &notFound) {
		return config.Load("")
	}
	return nil, err
}
