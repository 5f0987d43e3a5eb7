package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
)

func TestGenerationRequestRules(t *testing.T) {
	validate := New()

	valid := recipe.GenerationRequest{
		Ingredients:         []recipe.Ingredient{{Name: "egg"}, {Name: "flour"}, {Name: "milk"}},
		Cuisine:             "Italian",
		MealType:            "Breakfast",
		DietaryRestrictions: []string{},
		SpiceLevel:          "Extra Hot",
	}
	assert.NoError(t, validate.Struct(valid))

	t.Run("too few ingredients", func(t *testing.T) {
		req := valid
		req.Ingredients = req.Ingredients[:2]
		assertFailsOn(t, validate.Struct(req), "GenerationRequest.ingredients", "min")
	})

	t.Run("unknown meal type", func(t *testing.T) {
		req := valid
		req.MealType = "Brunch"
		assertFailsOn(t, validate.Struct(req), "GenerationRequest.mealType", "mealtype")
	})

	t.Run("unknown spice level", func(t *testing.T) {
		req := valid
		req.SpiceLevel = "Volcanic"
		assertFailsOn(t, validate.Struct(req), "GenerationRequest.spiceLevel", "spicelevel")
	})

	t.Run("blank ingredient name", func(t *testing.T) {
		req := valid
		req.Ingredients = []recipe.Ingredient{{Name: "egg"}, {Name: ""}, {Name: "milk"}}
		assertFailsOn(t, validate.Struct(req), "GenerationRequest.ingredients[1].name", "required")
	})
}

func TestRecipeRules(t *testing.T) {
	validate := New()

	r := recipe.Recipe{
		Title:              "Fluffy Pancakes",
		Description:        "Light breakfast pancakes",
		Cuisine:            "American",
		MealType:           "Breakfast",
		SpiceLevel:         "None",
		CookingTimeMinutes: 20,
		Difficulty:         recipe.DifficultyEasy,
		Servings:           4,
		Ingredients:        []recipe.Ingredient{{Name: "flour", Quantity: "200", Unit: "g"}},
		Instructions:       []string{"Mix", "Cook"},
		DietaryCompliance:  []string{},
	}
	require.NoError(t, validate.Struct(r))

	r.Difficulty = "easy"
	assertFailsOn(t, validate.Struct(r), "Recipe.difficulty", "oneof")

	r.Difficulty = recipe.DifficultyHard
	r.DietaryCompliance = nil
	assertFailsOn(t, validate.Struct(r), "Recipe.dietaryCompliance", "required")
}

func TestAccountRules(t *testing.T) {
	type signUp struct {
		DisplayName string `json:"displayName" validate:"display_name"`
		Password    string `json:"password" validate:"strong_password"`
	}

	validate := New()
	assert.NoError(t, validate.Struct(signUp{DisplayName: "Ana", Password: "Str0ng!pass"}))
	assertFailsOn(t, validate.Struct(signUp{DisplayName: "A", Password: "Str0ng!pass"}), "signUp.displayName", "display_name")
	assertFailsOn(t, validate.Struct(signUp{DisplayName: "Ana", Password: "weakpass"}), "signUp.password", "strong_password")
}

func assertFailsOn(t *testing.T, err error, namespace, tag string) {
	t.Helper()

	var fieldErrs validator.ValidationErrors
	require.ErrorAs(t, err, &fieldErrs)
	for _, fe := range fieldErrs {
		if fe.Namespace() == namespace {
			assert.Equal(t, tag, fe.Tag())
			return
		}
	}
	t.Fatalf("no error for %s in %v", namespace, err)
}

func TestDataURISize(t *testing.T) {
	assert.Equal(t, int64(3), DataURISize("data:image/png;base64,AAAA"))
	assert.Equal(t, int64(1), DataURISize("data:image/png;base64,AA=="))
	assert.Equal(t, int64(9), DataURISize("not a uri"))
}
