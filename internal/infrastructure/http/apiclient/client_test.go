package apiclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/alchemorsel/pantrychef/internal/application/orchestrator"
	apprecipe "github.com/alchemorsel/pantrychef/internal/application/recipe"
	"github.com/alchemorsel/pantrychef/internal/application/user"
	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/config"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/http/apiclient"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/http/apiserver"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/pantrychef/internal/ports/inbound"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
	"github.com/alchemorsel/pantrychef/pkg/validation"
	"github.com/alchemorsel/pantrychef/test/testutils"
)

type ClientTestSuite struct {
	suite.Suite
	identity *testutils.MockIdentityService
	actions  *testutils.MockActions
	sessions *orchestrator.SessionObserver
	session  *outbound.Session
	server   *httptest.Server
	client   *apiclient.Client
	factory  *testutils.RecipeFactory
	ctx      context.Context
}

func (s *ClientTestSuite) SetupTest() {
	cfg, err := config.Load("")
	s.Require().NoError(err)
	cfg.RateLimit.Enable = false

	log := zaptest.NewLogger(s.T())
	store := memory.NewDocumentStore()
	s.identity = new(testutils.MockIdentityService)
	s.actions = new(testutils.MockActions)
	s.session = testutils.Session(gofakeit.New(21))
	s.factory = testutils.NewRecipeFactory(21)
	s.ctx = context.Background()

	s.identity.On("Resolve", mock.Anything, s.session.Token).Return(s.session, nil).Maybe()

	srv := apiserver.NewServer(cfg, log, apiserver.Dependencies{
		Actions:  s.actions,
		Library:  apprecipe.NewLibraryService(store, log),
		Accounts: user.NewAccountService(s.identity, store, validation.New(), user.NewSessionHub(4), log),
		Sessions: s.identity,
	})
	s.server = httptest.NewServer(srv.Handler())

	s.sessions = orchestrator.NewSessionObserver()
	s.client = apiclient.New(s.server.URL, 5*time.Second, s.sessions, log)
}

func (s *ClientTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientTestSuite) TestRunDetectIngredients() {
	input := inbound.DetectIngredientsInput{PhotoDataURI: testutils.PhotoDataURI()}
	s.actions.On("RunDetectIngredients", mock.Anything, input).
		Return(inbound.Succeed([]string{"tomato", "basil"})).Once()

	env := s.client.RunDetectIngredients(s.ctx, input)

	s.True(env.Success)
	s.Equal([]string{"tomato", "basil"}, env.Data)
}

func (s *ClientTestSuite) TestRunGenerateRecipes_FailedEnvelope() {
	s.actions.On("RunGenerateRecipes", mock.Anything, mock.Anything).
		Return(inbound.Fail[[]recipe.Recipe]("Failed to generate recipes.")).Once()

	env := s.client.RunGenerateRecipes(s.ctx, recipe.NewGenerationRequest(
		[]string{"egg", "rice", "leek"}, recipe.DefaultPreferences()))

	s.False(env.Success)
	s.Equal("Failed to generate recipes.", env.Error)
}

func (s *ClientTestSuite) TestUnreachableServerBecomesEnvelope() {
	s.server.Close()

	env := s.client.RunDetectIngredients(s.ctx, inbound.DetectIngredientsInput{PhotoDataURI: testutils.PhotoDataURI()})

	s.False(env.Success)
	s.NotEmpty(env.Error)
}

func (s *ClientTestSuite) TestLimits() {
	limits, err := s.client.Limits(s.ctx)

	s.Require().NoError(err)
	s.Equal(3, limits.MinIngredients)
	s.Equal(int64(20<<20), limits.MaxPhotoBytes)
}

func (s *ClientTestSuite) TestLibraryRequiresSession() {
	_, err := s.client.SavedRecipes(s.ctx, s.session.UserID)
	s.True(apperrors.Is(err, apperrors.CodeUnauthorized))
}

func (s *ClientTestSuite) TestLibraryRoundTrip() {
	s.sessions.Set(s.session)
	r := s.factory.Recipe()

	s.Require().NoError(s.client.ToggleFavorite(s.ctx, s.session.UserID, r, false))

	saved, err := s.client.SavedRecipes(s.ctx, s.session.UserID)
	s.Require().NoError(err)
	s.Require().Len(saved, 1)
	s.Equal(r.Slug(), saved[0].ID)
	s.Equal(r.Title, saved[0].Recipe.Title)

	s.Require().NoError(s.client.ToggleFavorite(s.ctx, s.session.UserID, r, true))
	saved, err = s.client.SavedRecipes(s.ctx, s.session.UserID)
	s.Require().NoError(err)
	s.Empty(saved)

	record := recipe.NewHistoryRecord([]string{"egg", "rice", "leek"}, recipe.DefaultPreferences(), s.factory.Recipes(2))
	id, err := s.client.RecordGeneration(s.ctx, s.session.UserID, record)
	s.Require().NoError(err)
	s.NotEmpty(id)

	history, err := s.client.History(s.ctx, s.session.UserID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Len(history[0].Recipes, 2)
}

func (s *ClientTestSuite) TestStructuredErrorsSurvive() {
	s.identity.On("SignInWithPassword", mock.Anything, "cook@example.com", "Wr0ng$pass").
		Return(nil, apperrors.NewInvalidCredentialsError()).Once()

	_, err := s.client.Login(s.ctx, user.LoginCommand{Email: "cook@example.com", Password: "Wr0ng$pass"})

	appErr, ok := apperrors.As(err)
	s.Require().True(ok)
	s.Equal(apperrors.CodeInvalidCredentials, appErr.Code)
	s.Equal(http.StatusUnauthorized, appErr.StatusCode())
}

func (s *ClientTestSuite) TestOrchestratorOverHTTP() {
	s.sessions.Set(s.session)
	recipes := s.factory.Recipes(3)
	s.actions.On("RunGenerateRecipes", mock.Anything, mock.Anything).
		Return(inbound.Succeed(recipes)).Once()

	orch := orchestrator.New(s.client, s.client, s.sessions, orchestrator.DefaultConfig(), zaptest.NewLogger(s.T()))
	for _, name := range []string{"egg", "rice", "leek"} {
		s.Require().NoError(orch.AddIngredient(name))
	}

	got, err := orch.Generate(s.ctx)
	s.Require().NoError(err)
	s.Len(got, 3)

	on, err := orch.ToggleFavorite(s.ctx, recipes[0])
	s.Require().NoError(err)
	s.True(on)

	orch.Close()

	history, err := s.client.History(s.ctx, s.session.UserID)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func TestVerifyConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := apiclient.New(srv.URL, time.Second, nil, zaptest.NewLogger(t))
	require.True(t, client.VerifyConnection(context.Background()))

	srv.Close()
	require.False(t, client.VerifyConnection(context.Background()))
}
