package recipe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	apprecipe "github.com/alchemorsel/pantrychef/internal/application/recipe"
	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
	"github.com/alchemorsel/pantrychef/test/testutils"
)

type LibraryServiceTestSuite struct {
	suite.Suite
	store   *memory.DocumentStore
	service *apprecipe.LibraryService
	factory *testutils.RecipeFactory
	ctx     context.Context
}

func (s *LibraryServiceTestSuite) SetupTest() {
	s.store = memory.NewDocumentStore()
	s.service = apprecipe.NewLibraryService(s.store, zaptest.NewLogger(s.T()))
	s.factory = testutils.NewRecipeFactory(3)
	s.ctx = context.Background()
}

func (s *LibraryServiceTestSuite) TestToggleFavorite_TitleWithSlash() {
	r := s.factory.Recipe()
	r.Title = "Sweet/Sour Chicken"

	s.Require().NoError(s.service.ToggleFavorite(s.ctx, "u1", r, false))

	doc, err := s.store.Get(s.ctx, apprecipe.SavedRecipePath("u1", "sweet/sour-chicken"))
	s.Require().NoError(err)
	s.Equal("sweet/sour-chicken", doc[outbound.IDField])

	saved, err := s.service.SavedRecipes(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(saved, 1)
	s.Equal("sweet/sour-chicken", saved[0].ID)
	s.Equal(recipe.Slug(r.Title), saved[0].ID)

	s.Require().NoError(s.service.ToggleFavorite(s.ctx, "u1", r, true))

	saved, err = s.service.SavedRecipes(s.ctx, "u1")
	s.Require().NoError(err)
	s.Empty(saved)
}

func (s *LibraryServiceTestSuite) TestToggleFavorite_SaveThenRemove() {
	r := s.factory.Recipe()
	r.Title = "Fluffy Pancakes"

	s.Require().NoError(s.service.ToggleFavorite(s.ctx, "u1", r, false))

	doc, err := s.store.Get(s.ctx, "users/u1/savedRecipes/fluffy-pancakes")
	s.Require().NoError(err)
	s.Equal("fluffy-pancakes", doc["id"])
	s.NotEmpty(doc["savedAt"])

	saved, err := s.service.SavedRecipes(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(saved, 1)
	s.Equal("fluffy-pancakes", saved[0].ID)
	s.Equal(r, saved[0].Recipe)
	s.WithinDuration(time.Now(), saved[0].SavedAt, time.Minute)

	s.Require().NoError(s.service.ToggleFavorite(s.ctx, "u1", r, true))

	saved, err = s.service.SavedRecipes(s.ctx, "u1")
	s.Require().NoError(err)
	s.Empty(saved)
}

func (s *LibraryServiceTestSuite) TestToggleFavorite_SameSlugOverwrites() {
	first := s.factory.Recipe()
	first.Title = "Egg Soup"
	second := s.factory.Recipe()
	second.Title = "egg  soup"

	s.Require().NoError(s.service.ToggleFavorite(s.ctx, "u1", first, false))
	s.Require().NoError(s.service.ToggleFavorite(s.ctx, "u1", second, false))

	saved, err := s.service.SavedRecipes(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(saved, 1)
	s.Equal("egg  soup", saved[0].Recipe.Title)
}

func (s *LibraryServiceTestSuite) TestToggleFavorite_RequiresUser() {
	err := s.service.ToggleFavorite(s.ctx, "", s.factory.Recipe(), false)
	s.True(apperrors.Is(err, apperrors.CodeUnauthorized))
}

func (s *LibraryServiceTestSuite) TestSavedRecipes_NewestFirst() {
	recipes := s.factory.Recipes(3)
	for _, r := range recipes {
		s.Require().NoError(s.service.ToggleFavorite(s.ctx, "u1", r, false))
		time.Sleep(2 * time.Millisecond)
	}

	saved, err := s.service.SavedRecipes(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(saved, 3)
	s.Equal(recipes[2].Title, saved[0].Recipe.Title)
	s.Equal(recipes[0].Title, saved[2].Recipe.Title)
}

func (s *LibraryServiceTestSuite) TestRecordGenerationAndHistory() {
	prefs := recipe.Preferences{
		Cuisines:            []string{"Italian"},
		MealType:            "Breakfast",
		DietaryRestrictions: []string{},
		SpiceLevel:          "Mild",
	}
	first := recipe.NewHistoryRecord([]string{"egg", "flour", "milk"}, prefs, s.factory.Recipes(3))
	second := recipe.NewHistoryRecord([]string{"rice", "beans", "corn"}, prefs, s.factory.Recipes(2))

	id1, err := s.service.RecordGeneration(s.ctx, "u1", first)
	s.Require().NoError(err)
	time.Sleep(2 * time.Millisecond)
	id2, err := s.service.RecordGeneration(s.ctx, "u1", second)
	s.Require().NoError(err)
	s.NotEqual(id1, id2)

	history, err := s.service.History(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(id2, history[0].ID)
	s.Equal(id1, history[1].ID)
	s.Equal(first.Ingredients, history[1].Ingredients)
	s.Equal(prefs, history[1].Preferences)
	s.Len(history[1].Recipes, 3)
	s.False(history[0].GeneratedAt.IsZero())

	other, err := s.service.History(s.ctx, "u2")
	s.Require().NoError(err)
	s.Empty(other)
}

type failingStore struct {
	mock.Mock
	outbound.DocumentStore
}

func (f *failingStore) Put(ctx context.Context, path string, doc outbound.Document) error {
	return f.Called(path).Error(0)
}

func (s *LibraryServiceTestSuite) TestToggleFavorite_StoreError() {
	store := new(failingStore)
	store.On("Put", mock.Anything).Return(errors.New("unavailable"))
	service := apprecipe.NewLibraryService(store, zaptest.NewLogger(s.T()))

	err := service.ToggleFavorite(s.ctx, "u1", s.factory.Recipe(), false)

	s.True(apperrors.Is(err, apperrors.CodeDatabaseError))
	store.AssertNumberOfCalls(s.T(), "Put", 1)
}

func TestLibraryServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LibraryServiceTestSuite))
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "users/u1/savedRecipes/egg-soup", apprecipe.SavedRecipePath("u1", "egg-soup"))
	assert.Equal(t, "users/u1/recipeHistory", apprecipe.HistoryPath("u1"))
}
