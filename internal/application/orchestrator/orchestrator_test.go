package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/alchemorsel/pantrychef/internal/application/actions"
	"github.com/alchemorsel/pantrychef/internal/application/ai"
	"github.com/alchemorsel/pantrychef/internal/application/orchestrator"
	apprecipe "github.com/alchemorsel/pantrychef/internal/application/recipe"
	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/pantrychef/internal/ports/inbound"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
	"github.com/alchemorsel/pantrychef/pkg/validation"
	"github.com/alchemorsel/pantrychef/test/testutils"
)

type OrchestratorTestSuite struct {
	suite.Suite
	actions  *testutils.MockActions
	library  *testutils.MockLibrary
	sessions *orchestrator.SessionObserver
	orch     *orchestrator.Orchestrator
	factory  *testutils.RecipeFactory
	ctx      context.Context
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.actions = new(testutils.MockActions)
	s.library = new(testutils.MockLibrary)
	s.sessions = orchestrator.NewSessionObserver()
	s.factory = testutils.NewRecipeFactory(5)
	s.ctx = context.Background()
	s.orch = orchestrator.New(s.actions, s.library, s.sessions, orchestrator.DefaultConfig(), zaptest.NewLogger(s.T()))
}

func (s *OrchestratorTestSuite) TearDownTest() {
	s.orch.Close()
}

func (s *OrchestratorTestSuite) signIn() *outbound.Session {
	session := testutils.Session(gofakeit.New(1))
	s.sessions.Set(session)
	return session
}

func (s *OrchestratorTestSuite) addIngredients(names ...string) {
	for _, name := range names {
		s.Require().NoError(s.orch.AddIngredient(name))
	}
}

func (s *OrchestratorTestSuite) TestGenerate_NotEnoughIngredients() {
	s.addIngredients("egg", "flour")

	_, err := s.orch.Generate(s.ctx)

	s.True(apperrors.Is(err, apperrors.CodePrecondition))
	s.actions.AssertNotCalled(s.T(), "RunGenerateRecipes", mock.Anything, mock.Anything)

	notices := s.orch.Notices()
	s.Require().Len(notices, 1)
	s.Equal("Not enough ingredients", notices[0].Title)
	s.Equal("Please add at least 3 ingredients to generate recipes.", notices[0].Message)
}

func (s *OrchestratorTestSuite) TestGenerate_ReplacesRecipesWholesale() {
	s.addIngredients("egg", "flour", "milk")
	first := s.factory.Recipes(3)
	second := s.factory.Recipes(2)
	s.actions.On("RunGenerateRecipes", mock.Anything, mock.Anything).Return(inbound.Succeed(first)).Once()
	s.actions.On("RunGenerateRecipes", mock.Anything, mock.Anything).Return(inbound.Succeed(second)).Once()

	_, err := s.orch.Generate(s.ctx)
	s.Require().NoError(err)
	s.Equal(first, s.orch.State().Recipes)

	_, err = s.orch.Generate(s.ctx)
	s.Require().NoError(err)
	s.Equal(second, s.orch.State().Recipes)
	s.library.AssertNotCalled(s.T(), "RecordGeneration", mock.Anything, mock.Anything, mock.Anything)
}

func (s *OrchestratorTestSuite) TestGenerate_FailureClearsRecipes() {
	s.addIngredients("egg", "flour", "milk")
	s.actions.On("RunGenerateRecipes", mock.Anything, mock.Anything).Return(inbound.Succeed(s.factory.Recipes(3))).Once()
	s.actions.On("RunGenerateRecipes", mock.Anything, mock.Anything).
		Return(inbound.Fail[[]recipe.Recipe](actions.MsgNoRecipes)).Once()

	_, err := s.orch.Generate(s.ctx)
	s.Require().NoError(err)

	_, err = s.orch.Generate(s.ctx)
	s.ErrorIs(err, orchestrator.ErrActionFailed)
	s.Empty(s.orch.State().Recipes)

	notices := s.orch.Notices()
	s.Require().NotEmpty(notices)
	last := notices[len(notices)-1]
	s.Equal("Generation Failed", last.Title)
	s.Equal(actions.MsgNoRecipes, last.Message)
}

func (s *OrchestratorTestSuite) TestGenerate_HistoryErrorsStayInBackground() {
	session := s.signIn()
	s.addIngredients("egg", "flour", "milk")
	recipes := s.factory.Recipes(3)
	s.actions.On("RunGenerateRecipes", mock.Anything, mock.Anything).Return(inbound.Succeed(recipes))
	s.library.On("RecordGeneration", mock.Anything, session.UserID, mock.Anything).Return("", errors.New("store offline"))

	got, err := s.orch.Generate(s.ctx)

	s.Require().NoError(err)
	s.Equal(recipes, got)

	select {
	case herr := <-s.orch.HistoryErrors():
		s.EqualError(herr, "store offline")
	case <-time.After(2 * time.Second):
		s.Fail("history error was not published")
	}
}

func (s *OrchestratorTestSuite) TestGenerate_LastSettledWins() {
	s.addIngredients("egg", "flour", "milk")
	slow := s.factory.Recipes(1)
	fast := s.factory.Recipes(2)

	started := make(chan struct{})
	release := make(chan struct{})
	s.actions.On("RunGenerateRecipes", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(inbound.Succeed(slow)).Once()
	s.actions.On("RunGenerateRecipes", mock.Anything, mock.Anything).
		Return(inbound.Succeed(fast)).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.orch.Generate(s.ctx)
	}()

	<-started
	s.True(s.orch.State().Generating)

	_, err := s.orch.Generate(s.ctx)
	s.Require().NoError(err)
	s.Equal(fast, s.orch.State().Recipes)

	close(release)
	wg.Wait()

	s.Equal(slow, s.orch.State().Recipes)
	s.False(s.orch.State().Generating)
}

func (s *OrchestratorTestSuite) TestDetectIngredients_MergesAndIsIdempotent() {
	s.addIngredients("egg")
	s.actions.On("RunDetectIngredients", mock.Anything, mock.Anything).
		Return(inbound.Succeed([]string{"egg", "basil", "tomato"}))

	added, err := s.orch.DetectIngredients(s.ctx, testutils.PhotoDataURI())
	s.Require().NoError(err)
	s.Equal([]string{"basil", "tomato"}, added)

	added, err = s.orch.DetectIngredients(s.ctx, testutils.PhotoDataURI())
	s.Require().NoError(err)
	s.Empty(added)

	s.Equal([]string{"egg", "basil", "tomato"}, s.orch.State().Ingredients)

	notices := s.orch.Notices()
	s.Require().Len(notices, 2)
	s.Equal("Ingredients Detected!", notices[0].Title)
}

func (s *OrchestratorTestSuite) TestDetectIngredients_Failure() {
	s.actions.On("RunDetectIngredients", mock.Anything, mock.Anything).
		Return(inbound.Fail[[]string](actions.MsgDetectionFailed))

	_, err := s.orch.DetectIngredients(s.ctx, testutils.PhotoDataURI())

	s.ErrorIs(err, orchestrator.ErrActionFailed)
	s.Empty(s.orch.State().Ingredients)
	notices := s.orch.Notices()
	s.Require().Len(notices, 1)
	s.Equal("Detection Failed", notices[0].Title)
	s.Equal(actions.MsgDetectionFailed, notices[0].Message)
}

func (s *OrchestratorTestSuite) TestDetectIngredients_TooLarge() {
	cfg := orchestrator.DefaultConfig()
	cfg.MaxPhotoBytes = 16
	orch := orchestrator.New(s.actions, s.library, s.sessions, cfg, zaptest.NewLogger(s.T()))
	defer orch.Close()

	_, err := orch.DetectIngredients(s.ctx, "data:image/png;base64,"+strings.Repeat("A", 64))

	s.True(apperrors.Is(err, apperrors.CodeValidationFailed))
	s.actions.AssertNotCalled(s.T(), "RunDetectIngredients", mock.Anything, mock.Anything)
	s.Equal("File too large", orch.Notices()[0].Title)
}

func (s *OrchestratorTestSuite) TestToggleFavorite_RequiresSession() {
	_, err := s.orch.ToggleFavorite(s.ctx, s.factory.Recipe())

	s.True(apperrors.Is(err, apperrors.CodeUnauthorized))
	s.Equal("Please log in to save recipes.", s.orch.Notices()[0].Title)
	s.library.AssertNotCalled(s.T(), "ToggleFavorite", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *OrchestratorTestSuite) TestToggleFavorite_SaveAndUnsave() {
	session := s.signIn()
	r := s.factory.Recipe()
	r.Title = "Herb Omelette"
	s.library.On("ToggleFavorite", mock.Anything, session.UserID, r, false).Return(nil).Once()
	s.library.On("ToggleFavorite", mock.Anything, session.UserID, r, true).Return(nil).Once()

	on, err := s.orch.ToggleFavorite(s.ctx, r)
	s.Require().NoError(err)
	s.True(on)
	s.True(s.orch.IsFavorite(r))

	on, err = s.orch.ToggleFavorite(s.ctx, r)
	s.Require().NoError(err)
	s.False(on)
	s.False(s.orch.IsFavorite(r))

	notices := s.orch.Notices()
	s.Require().Len(notices, 2)
	s.Equal("Recipe Saved!", notices[0].Title)
	s.Equal(`"Herb Omelette" has been added to your favorites.`, notices[0].Message)
	s.Equal("Recipe Unsaved", notices[1].Title)
	s.Equal(`"Herb Omelette" has been removed from your favorites.`, notices[1].Message)
}

func (s *OrchestratorTestSuite) TestToggleFavorite_RevertsOnFailure() {
	session := s.signIn()
	r := s.factory.Recipe()

	started := make(chan struct{})
	release := make(chan struct{})
	s.library.On("ToggleFavorite", mock.Anything, session.UserID, r, false).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(errors.New("permission denied"))

	done := make(chan error, 1)
	go func() {
		_, err := s.orch.ToggleFavorite(s.ctx, r)
		done <- err
	}()

	<-started
	s.True(s.orch.IsFavorite(r), "flag flips before the write settles")
	close(release)

	s.Error(<-done)
	s.False(s.orch.IsFavorite(r))

	notices := s.orch.Notices()
	s.Require().Len(notices, 1)
	s.Equal("Error", notices[0].Title)
	s.Equal("Could not update favorites.", notices[0].Message)
}

func (s *OrchestratorTestSuite) TestLoadFavorites() {
	session := s.signIn()
	r := s.factory.Recipe()
	s.library.On("SavedRecipes", mock.Anything, session.UserID).
		Return([]recipe.SavedRecipe{recipe.NewSavedRecipe(r)}, nil)

	s.Require().NoError(s.orch.LoadFavorites(s.ctx))
	s.True(s.orch.IsFavorite(r))

	s.sessions.Set(nil)
	s.Require().NoError(s.orch.LoadFavorites(s.ctx))
	s.False(s.orch.IsFavorite(r))
}

func (s *OrchestratorTestSuite) TestSetPreferences() {
	s.Error(s.orch.SetPreferences(recipe.Preferences{MealType: "Brunch", SpiceLevel: "Mild"}))

	prefs := recipe.Preferences{Cuisines: []string{"Thai"}, MealType: "Lunch", SpiceLevel: "Hot"}
	s.Require().NoError(s.orch.SetPreferences(prefs))
	s.Equal("Lunch", s.orch.State().Preferences.MealType)
}

func TestOrchestratorTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

// The full path from the orchestrator through the action boundary and the
// generation prompt down to the completion service, with history persisted
// in the document store.
func TestEndToEnd_BreakfastScenario(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	factory := testutils.NewRecipeFactory(99)

	completion := new(testutils.MockCompletionService)
	recipes := factory.Recipes(3)
	completion.On("Complete", mock.Anything, mock.Anything).Return(testutils.MustJSON(recipes), nil).Once()

	validate := validation.New()
	detector, err := ai.NewDetectionPipeline(completion, validate, logger)
	require.NoError(t, err)
	generator, err := ai.NewGenerationPipeline(completion, validate, logger)
	require.NoError(t, err)

	store := memory.NewDocumentStore()
	library := apprecipe.NewLibraryService(store, logger)
	sessions := orchestrator.NewSessionObserver()
	session := testutils.Session(gofakeit.New(2))
	sessions.Set(session)

	orch := orchestrator.New(actions.NewService(detector, generator, logger), library, sessions, orchestrator.DefaultConfig(), logger)

	for _, name := range []string{"egg", "flour", "milk"} {
		require.NoError(t, orch.AddIngredient(name))
	}
	prefs := recipe.Preferences{
		Cuisines:            []string{"Italian"},
		MealType:            "Breakfast",
		DietaryRestrictions: []string{},
		SpiceLevel:          "Mild",
	}
	require.NoError(t, orch.SetPreferences(prefs))

	got, err := orch.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, recipes, got)
	assert.Len(t, orch.State().Recipes, 3)

	completion.AssertNumberOfCalls(t, "Complete", 1)
	text := completion.Requests()[0].Messages[0].Text
	assert.Contains(t, text, "using these ingredients: egg, flour, milk")
	assert.Contains(t, text, "- Cuisine: Italian")
	assert.Contains(t, text, "- Meal type: Breakfast")
	assert.Contains(t, text, "- Spice level: Mild")

	orch.Close()

	history, err := library.History(ctx, session.UserID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, recipe.IngredientsFromNames([]string{"egg", "flour", "milk"}), history[0].Ingredients)
	assert.Equal(t, prefs, history[0].Preferences)
	assert.Equal(t, recipes, history[0].Recipes)
	assert.NotEmpty(t, history[0].ID)

	// Favorites saved through the orchestrator are listed by slug.
	orch2 := orchestrator.New(actions.NewService(detector, generator, logger), library, sessions, orchestrator.DefaultConfig(), logger)
	defer orch2.Close()
	_, err = orch2.ToggleFavorite(ctx, recipes[0])
	require.NoError(t, err)

	saved, err := library.SavedRecipes(ctx, session.UserID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, recipe.Slug(recipes[0].Title), saved[0].ID)
}

func TestSessionObserver(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	observer := orchestrator.NewSessionObserver()

	updates := observer.Observe(ctx)
	assert.Nil(t, <-updates, "starts signed out")

	session := &outbound.Session{UserID: "u1"}
	observer.Set(session)
	assert.Equal(t, session, <-updates)
	assert.Equal(t, session, observer.Current())

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, open := <-updates:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestPhotoSize(t *testing.T) {
	assert.Equal(t, int64(3), orchestrator.PhotoSize("data:image/png;base64,AAAA"))
	assert.Equal(t, int64(1), orchestrator.PhotoSize("data:image/png;base64,AA=="))
	assert.Equal(t, int64(9), orchestrator.PhotoSize("not a uri"))
}

func TestConfigWithLimits(t *testing.T) {
	cfg := orchestrator.DefaultConfig().WithLimits(inbound.Limits{MinIngredients: 5, MaxPhotoBytes: 1 << 20})
	assert.Equal(t, 5, cfg.MinIngredients)
	assert.Equal(t, int64(1<<20), cfg.MaxPhotoBytes)

	kept := orchestrator.DefaultConfig().WithLimits(inbound.Limits{})
	assert.Equal(t, orchestrator.DefaultConfig(), kept)
}
