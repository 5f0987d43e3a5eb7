package testutils

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
)

// RecipeFactory provides methods to create test recipes
type RecipeFactory struct {
	faker *gofakeit.Faker
}

// NewRecipeFactory creates a new recipe factory with seeded faker
func NewRecipeFactory(seed int64) *RecipeFactory {
	return &RecipeFactory{
		faker: gofakeit.New(seed),
	}
}

// Recipe returns a recipe that satisfies the generation output schema
func (f *RecipeFactory) Recipe() recipe.Recipe {
	difficulties := []recipe.Difficulty{recipe.DifficultyEasy, recipe.DifficultyMedium, recipe.DifficultyHard}

	ingredients := make([]recipe.Ingredient, 0, 4)
	for i := 0; i < 4; i++ {
		ingredients = append(ingredients, recipe.Ingredient{
			Name:     f.faker.Vegetable(),
			Quantity: fmt.Sprintf("%d", f.faker.Number(1, 500)),
			Unit:     f.faker.RandomString([]string{"g", "ml", "cup", "tbsp", "piece"}),
		})
	}

	return recipe.Recipe{
		Title:              fmt.Sprintf("%s %s", f.faker.Adjective(), f.faker.Dinner()),
		Description:        f.faker.Sentence(12),
		Cuisine:            f.faker.RandomString(recipe.Cuisines),
		MealType:           f.faker.RandomString(recipe.MealTypes),
		SpiceLevel:         f.faker.RandomString(recipe.SpiceLevels),
		CookingTimeMinutes: f.faker.Number(5, 120),
		Difficulty:         difficulties[f.faker.Number(0, len(difficulties)-1)],
		Servings:           f.faker.Number(1, 8),
		Ingredients:        ingredients,
		Instructions:       []string{f.faker.Sentence(8), f.faker.Sentence(8), f.faker.Sentence(8)},
		Tips:               f.faker.Sentence(6),
		DietaryCompliance:  []string{},
	}
}

// Recipes returns n recipes with distinct titles
func (f *RecipeFactory) Recipes(n int) []recipe.Recipe {
	recipes := make([]recipe.Recipe, 0, n)
	for i := 0; i < n; i++ {
		r := f.Recipe()
		r.Title = fmt.Sprintf("%s %d", r.Title, i+1)
		recipes = append(recipes, r)
	}
	return recipes
}

// Ingredients returns n distinct ingredient names
func (f *RecipeFactory) Ingredients(n int) []string {
	seen := make(map[string]struct{}, n)
	names := make([]string, 0, n)
	for len(names) < n {
		name := f.faker.Vegetable()
		if _, ok := seen[name]; ok {
			name = fmt.Sprintf("%s %d", name, len(names))
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// MustJSON marshals v or panics; handy for scripting completion responses
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// PhotoDataURI returns a small image/png data URI
func PhotoDataURI() string {
	// 1x1 transparent PNG
	png := []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
		0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
		0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
		0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

// Session returns a signed-in session for a fake user
func Session(faker *gofakeit.Faker) *outbound.Session {
	now := time.Now().UTC()
	return &outbound.Session{
		ID:              faker.UUID(),
		UserID:          faker.UUID(),
		Email:           strings.ToLower(faker.Email()),
		DisplayName:     faker.Name(),
		Provider:        "password",
		Token:           faker.LetterN(32),
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(time.Hour),
	}
}
