package ai_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/alchemorsel/pantrychef/internal/application/ai"
	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
	"github.com/alchemorsel/pantrychef/pkg/validation"
	"github.com/alchemorsel/pantrychef/test/testutils"
)

type DetectionPipelineTestSuite struct {
	suite.Suite
	completion *testutils.MockCompletionService
	pipeline   *ai.DetectionPipeline
}

func (s *DetectionPipelineTestSuite) SetupTest() {
	s.completion = new(testutils.MockCompletionService)
	p, err := ai.NewDetectionPipeline(s.completion, validation.New(), zaptest.NewLogger(s.T()))
	s.Require().NoError(err)
	s.pipeline = p
}

func (s *DetectionPipelineTestSuite) TestDetect_SendsPhotoAsMedia() {
	s.completion.On("Complete", mock.Anything, mock.Anything).
		Return(`{"ingredients":["cherry tomatoes","basil","mozzarella"]}`, nil).Once()

	uri := testutils.PhotoDataURI()
	out, err := s.pipeline.Detect(context.Background(), ai.DetectionInput{PhotoDataURI: uri})

	s.Require().NoError(err)
	s.Equal([]string{"cherry tomatoes", "basil", "mozzarella"}, out.Ingredients)

	req := s.completion.Requests()[0]
	s.Require().Len(req.Messages, 1)
	s.Require().Len(req.Messages[0].Media, 1)
	s.Equal(uri, req.Messages[0].Media[0].URL)
	s.Equal("image/png", req.Messages[0].Media[0].ContentType)
	s.Contains(req.Messages[0].Text, "cherry tomatoes")
}

func (s *DetectionPipelineTestSuite) TestDetect_EmptyListIsValid() {
	s.completion.On("Complete", mock.Anything, mock.Anything).Return(`{"ingredients":[]}`, nil).Once()

	out, err := s.pipeline.Detect(context.Background(), ai.DetectionInput{PhotoDataURI: testutils.PhotoDataURI()})

	s.Require().NoError(err)
	s.Empty(out.Ingredients)
	s.completion.AssertNumberOfCalls(s.T(), "Complete", 1)
}

func (s *DetectionPipelineTestSuite) TestDetect_MalformedURI() {
	for _, uri := range []string{"", "not a uri", "data:text/plain;base64,aGVsbG8="} {
		_, err := s.pipeline.Detect(context.Background(), ai.DetectionInput{PhotoDataURI: uri})
		s.True(apperrors.Is(err, apperrors.CodeValidationFailed), uri)
	}
	s.completion.AssertNotCalled(s.T(), "Complete", mock.Anything, mock.Anything)
}

func (s *DetectionPipelineTestSuite) TestDetect_RepairsMissingField() {
	s.completion.On("Complete", mock.Anything, mock.Anything).Return(`{"items":["egg"]}`, nil).Once()
	s.completion.On("Complete", mock.Anything, mock.Anything).Return(`{"ingredients":["egg"]}`, nil).Once()

	out, err := s.pipeline.Detect(context.Background(), ai.DetectionInput{PhotoDataURI: testutils.PhotoDataURI()})

	s.Require().NoError(err)
	s.Equal([]string{"egg"}, out.Ingredients)
	s.completion.AssertNumberOfCalls(s.T(), "Complete", 2)
}

func TestDetectionPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(DetectionPipelineTestSuite))
}

type GenerationPipelineTestSuite struct {
	suite.Suite
	completion *testutils.MockCompletionService
	factory    *testutils.RecipeFactory
	pipeline   *ai.GenerationPipeline
}

func (s *GenerationPipelineTestSuite) SetupTest() {
	s.completion = new(testutils.MockCompletionService)
	s.factory = testutils.NewRecipeFactory(42)
	p, err := ai.NewGenerationPipeline(s.completion, validation.New(), zaptest.NewLogger(s.T()))
	s.Require().NoError(err)
	s.pipeline = p
}

func (s *GenerationPipelineTestSuite) request() recipe.GenerationRequest {
	return recipe.GenerationRequest{
		Ingredients: []recipe.Ingredient{
			{Name: "egg", Quantity: "2", Unit: "piece"},
			{Name: "flour"},
			{Name: "milk"},
		},
		Cuisine:             "Italian",
		MealType:            "Breakfast",
		DietaryRestrictions: []string{"Vegetarian"},
		SpiceLevel:          "Mild",
	}
}

func (s *GenerationPipelineTestSuite) TestGenerate_RendersRequest() {
	recipes := s.factory.Recipes(3)
	s.completion.On("Complete", mock.Anything, mock.Anything).Return(testutils.MustJSON(recipes), nil).Once()

	out, err := s.pipeline.Generate(context.Background(), s.request())

	s.Require().NoError(err)
	s.Equal(recipes, out)

	text := s.completion.Requests()[0].Messages[0].Text
	s.Contains(text, "egg (2 piece), flour, milk")
	s.Contains(text, "- Cuisine: Italian")
	s.Contains(text, "- Meal type: Breakfast")
	s.Contains(text, "MUST comply with Vegetarian")
	s.Contains(text, "- Spice level: Mild")
	s.Equal("array", s.completion.Requests()[0].Schema.Document["type"])
}

func (s *GenerationPipelineTestSuite) TestGenerate_TooFewIngredients() {
	req := s.request()
	req.Ingredients = req.Ingredients[:2]

	_, err := s.pipeline.Generate(context.Background(), req)

	s.True(apperrors.Is(err, apperrors.CodeValidationFailed))
	s.completion.AssertNotCalled(s.T(), "Complete", mock.Anything, mock.Anything)
}

func (s *GenerationPipelineTestSuite) TestGenerate_UnknownMealType() {
	req := s.request()
	req.MealType = "Brunch"

	_, err := s.pipeline.Generate(context.Background(), req)

	s.True(apperrors.Is(err, apperrors.CodeValidationFailed))
	s.completion.AssertNotCalled(s.T(), "Complete", mock.Anything, mock.Anything)
}

func (s *GenerationPipelineTestSuite) TestGenerate_EmptyListPassesThrough() {
	s.completion.On("Complete", mock.Anything, mock.Anything).Return(`[]`, nil).Once()

	out, err := s.pipeline.Generate(context.Background(), s.request())

	s.Require().NoError(err)
	s.Empty(out)
}

func (s *GenerationPipelineTestSuite) TestGenerate_SchemaErrorAfterRepair() {
	bad := s.factory.Recipe()
	bad.CookingTimeMinutes = 0
	payload := testutils.MustJSON([]recipe.Recipe{bad})
	s.completion.On("Complete", mock.Anything, mock.Anything).Return(payload, nil).Twice()

	_, err := s.pipeline.Generate(context.Background(), s.request())

	s.True(apperrors.Is(err, apperrors.CodeSchemaMismatch))
	s.completion.AssertNumberOfCalls(s.T(), "Complete", 2)
	s.Contains(s.completion.Requests()[1].Messages[2].Text, "cookingTime")
}

func (s *GenerationPipelineTestSuite) TestGenerate_SchemaTypesMatchRecipe() {
	s.completion.On("Complete", mock.Anything, mock.Anything).Return(testutils.MustJSON(s.factory.Recipes(3)), nil).Once()

	_, err := s.pipeline.Generate(context.Background(), s.request())
	s.Require().NoError(err)

	items, ok := s.completion.Requests()[0].Schema.Document["items"].(map[string]any)
	s.Require().True(ok)
	props, ok := items["properties"].(map[string]any)
	s.Require().True(ok)

	for _, field := range []string{"cookingTime", "servings"} {
		prop, ok := props[field].(map[string]any)
		s.Require().True(ok, field)
		s.Equal("integer", prop["type"], "%s decodes into an int", field)
	}
}

func TestGenerationPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(GenerationPipelineTestSuite))
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "image/jpeg", ai.MediaType("data:image/jpeg;base64,AAAA"))
	assert.Equal(t, "image/png", ai.MediaType("data:IMAGE/PNG,AAAA"))
	assert.Equal(t, "", ai.MediaType("https://example.com/a.png"))
	require.Equal(t, "", ai.MediaType("data:"))
}
