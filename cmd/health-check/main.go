// Package main is a standalone health check for PantryChef, meant for
// container health checks and monitoring scripts
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/infrastructure/config"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/postgres"
	rediscache "github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/redis"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/sqlite"
	"github.com/alchemorsel/pantrychef/pkg/logger"
)

const (
	exitCodeSuccess = 0
	exitCodeFailure = 1
	exitCodeError   = 2
)

type options struct {
	url        string
	timeout    time.Duration
	retryCount int
	retryDelay time.Duration
	format     string
	verbose    bool
	local      bool
	configPath string
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func main() {
	var opts options
	flag.StringVar(&opts.url, "url", "", "health endpoint URL (default $HEALTH_CHECK_URL or http://localhost:8080/health)")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	flag.IntVar(&opts.retryCount, "retry", 0, "number of retries on failure")
	flag.DurationVar(&opts.retryDelay, "retry-delay", time.Second, "delay between retries")
	flag.StringVar(&opts.format, "format", "text", "output format: text or json")
	flag.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flag.BoolVar(&opts.local, "local", false, "check the configured database and cache directly")
	flag.StringVar(&opts.configPath, "config", "", "configuration file for --local")
	flag.Parse()

	if opts.url == "" {
		opts.url = os.Getenv("HEALTH_CHECK_URL")
	}
	if opts.url == "" {
		opts.url = "http://localhost:8080/health"
	}

	if opts.local {
		os.Exit(runLocal(opts))
	}
	os.Exit(runRemote(opts))
}

func runRemote(opts options) int {
	client := &http.Client{Timeout: opts.timeout}

	var lastErr error
	for attempt := 0; attempt <= opts.retryCount; attempt++ {
		if attempt > 0 {
			if opts.verbose {
				fmt.Printf("Retrying in %v... (attempt %d/%d)\n", opts.retryDelay, attempt, opts.retryCount)
			}
			time.Sleep(opts.retryDelay)
		}

		resp, err := client.Get(opts.url)
		if err != nil {
			lastErr = err
			if opts.verbose {
				fmt.Printf("Request failed: %v\n", err)
			}
			continue
		}

		var res result
		err = json.NewDecoder(resp.Body).Decode(&res)
		resp.Body.Close()
		if err != nil {
			fmt.Printf("Failed to decode response: %v\n", err)
			return exitCodeError
		}
		return output(res, opts)
	}

	fmt.Printf("Health check failed after %d attempts: %v\n", opts.retryCount+1, lastErr)
	return exitCodeError
}

func runLocal(opts options) int {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return exitCodeError
	}

	log, err := logger.New(logger.Config{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		return exitCodeError
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	res := result{Status: "healthy", Checks: map[string]string{}}
	record := func(name string, err error) {
		if err != nil {
			res.Status = "degraded"
			res.Checks[name] = err.Error()
			return
		}
		res.Checks[name] = "healthy"
	}

	record("database", pingDatabase(ctx, cfg, log))
	if cfg.Redis.Enabled {
		record("cache", pingRedis(ctx, cfg))
	}
	return output(res, opts)
}

func pingDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.Database.Driver == "postgres" {
		cm, err := postgres.NewConnectionManager(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer cm.Close()
		return cm.HealthCheck(ctx)
	}

	db, err := sqlite.SetupDatabase(cfg.Database.Path, sqlite.ParseLogLevel("silent"))
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return sqlDB.PingContext(ctx)
}

func pingRedis(ctx context.Context, cfg *config.Config) error {
	client, err := rediscache.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	return client.Close()
}

func output(res result, opts options) int {
	switch opts.format {
	case "json":
		json.NewEncoder(os.Stdout).Encode(res)
	default:
		fmt.Printf("Status: %s\n", res.Status)
		if opts.verbose {
			for name, status := range res.Checks {
				fmt.Printf("  %s: %s\n", name, status)
			}
		}
	}

	if res.Status != "healthy" {
		return exitCodeFailure
	}
	return exitCodeSuccess
}
