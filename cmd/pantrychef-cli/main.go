// Package main is a terminal client for the PantryChef API. It runs one
// generation session: collect ingredients, optionally detect more from a
// photo, generate recipes and save favorites.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/application/orchestrator"
	"github.com/alchemorsel/pantrychef/internal/application/user"
	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/http/apiclient"
	"github.com/alchemorsel/pantrychef/pkg/logger"
)

type options struct {
	apiURL      string
	timeout     time.Duration
	email       string
	password    string
	photo       string
	ingredients []string
	cuisines    []string
	mealType    string
	spiceLevel  string
	diet        []string
	favorite    []int
	history     bool
	jsonOutput  bool
	logLevel    string
}

func main() {
	var opts options
	flag.StringVar(&opts.apiURL, "api", "http://localhost:8080", "PantryChef API base URL")
	flag.DurationVar(&opts.timeout, "timeout", 4*time.Minute, "per-request timeout")
	flag.StringVar(&opts.email, "email", "", "sign in with this email to save favorites and history")
	flag.StringVar(&opts.photo, "photo", "", "detect ingredients in this image file")
	flag.StringSliceVarP(&opts.ingredients, "ingredient", "i", nil, "ingredient to add; repeatable")
	flag.StringSliceVar(&opts.cuisines, "cuisine", nil, "preferred cuisine; repeatable")
	flag.StringVar(&opts.mealType, "meal-type", recipe.DefaultMealType, "meal type")
	flag.StringVar(&opts.spiceLevel, "spice", recipe.DefaultSpiceLevel, "spice level")
	flag.StringSliceVar(&opts.diet, "diet", nil, "dietary restriction; repeatable")
	flag.IntSliceVar(&opts.favorite, "favorite", nil, "toggle the favorite flag of the n-th generated recipe (1-based)")
	flag.BoolVar(&opts.history, "history", false, "print generation history instead of generating")
	flag.BoolVar(&opts.jsonOutput, "json", false, "print recipes as JSON")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flag.Parse()

	opts.password = os.Getenv("PANTRYCHEF_PASSWORD")

	log, err := logger.New(logger.Config{Level: opts.logLevel, Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pantrychef-cli: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, log); err != nil {
		fmt.Fprintf(os.Stderr, "pantrychef-cli: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log *zap.Logger) error {
	sessions := orchestrator.NewSessionObserver()
	client := apiclient.New(opts.apiURL, opts.timeout, sessions, log)

	if !client.VerifyConnection(ctx) {
		return fmt.Errorf("API at %s is not reachable", opts.apiURL)
	}

	if opts.email != "" {
		if opts.password == "" {
			return fmt.Errorf("set PANTRYCHEF_PASSWORD to sign in as %s", opts.email)
		}
		session, err := client.Login(ctx, user.LoginCommand{Email: opts.email, Password: opts.password})
		if err != nil {
			return fmt.Errorf("sign-in failed: %w", err)
		}
		sessions.Set(session)
		defer func() {
			if err := client.Logout(context.Background()); err != nil {
				log.Warn("Sign-out failed", zap.Error(err))
			}
		}()
	}

	if opts.history {
		return printHistory(ctx, client, sessions)
	}

	cfg := orchestrator.DefaultConfig()
	if limits, err := client.Limits(ctx); err != nil {
		log.Warn("Using default generation limits", zap.Error(err))
	} else {
		cfg = cfg.WithLimits(limits)
	}

	orch := orchestrator.New(client, client, sessions, cfg, log)
	defer orch.Close()

	go func() {
		for err := range orch.HistoryErrors() {
			fmt.Fprintf(os.Stderr, "history not saved: %v\n", err)
		}
	}()

	if err := orch.LoadFavorites(ctx); err != nil {
		log.Warn("Favorites unavailable", zap.Error(err))
	}

	for _, name := range opts.ingredients {
		if err := orch.AddIngredient(name); err != nil {
			fmt.Fprintf(os.Stderr, "skipping %q: %v\n", name, err)
		}
	}

	if opts.photo != "" {
		uri, err := photoDataURI(opts.photo)
		if err != nil {
			return err
		}
		added, err := orch.DetectIngredients(ctx, uri)
		printNotices(orch)
		if err != nil {
			return err
		}
		fmt.Printf("Detected %d new ingredient(s): %v\n", len(added), added)
	}

	prefs := recipe.Preferences{
		Cuisines:            opts.cuisines,
		MealType:            opts.mealType,
		DietaryRestrictions: opts.diet,
		SpiceLevel:          opts.spiceLevel,
	}
	if err := orch.SetPreferences(prefs); err != nil {
		return err
	}

	recipes, err := orch.Generate(ctx)
	printNotices(orch)
	if err != nil {
		return err
	}

	if err := printRecipes(orch, recipes, opts.jsonOutput); err != nil {
		return err
	}

	for _, n := range opts.favorite {
		if n < 1 || n > len(recipes) {
			fmt.Fprintf(os.Stderr, "no recipe number %d\n", n)
			continue
		}
		if _, err := orch.ToggleFavorite(ctx, recipes[n-1]); err != nil {
			log.Debug("Favorite toggle failed", zap.Error(err))
		}
		printNotices(orch)
	}
	return nil
}

func photoDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}
	return fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(data), base64.StdEncoding.EncodeToString(data)), nil
}

func printRecipes(orch *orchestrator.Orchestrator, recipes []recipe.Recipe, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recipes)
	}

	for i, r := range recipes {
		star := " "
		if orch.IsFavorite(r) {
			star = "*"
		}
		fmt.Printf("%s %d. %s (%s, %d min, serves %d)\n", star, i+1, r.Title, r.Difficulty, r.CookingTimeMinutes, r.Servings)
		fmt.Printf("     %s\n", r.Description)
	}
	return nil
}

func printHistory(ctx context.Context, client *apiclient.Client, sessions *orchestrator.SessionObserver) error {
	session := sessions.Current()
	if session == nil {
		return fmt.Errorf("--history needs --email")
	}

	records, err := client.History(ctx, session.UserID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		names := make([]string, 0, len(rec.Ingredients))
		for _, ing := range rec.Ingredients {
			names = append(names, ing.Name)
		}
		fmt.Printf("%s  %d recipe(s) from %v\n", rec.GeneratedAt.Local().Format(time.RFC822), len(rec.Recipes), names)
	}
	return nil
}

func printNotices(orch *orchestrator.Orchestrator) {
	for _, n := range orch.Notices() {
		fmt.Fprintln(os.Stderr, n.String())
	}
}
