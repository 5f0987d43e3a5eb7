// Package recipe contains the domain model of generated recipes, the
// preferences that steer generation, and the records kept per user.
package recipe

import (
	"time"
)

// Difficulty is the effort level of a generated recipe.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Ingredient is a named ingredient with an optional quantity and unit.
// The name is the identity key for deduplication.
type Ingredient struct {
	Name     string `json:"name" validate:"required"`
	Quantity string `json:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

// Recipe is a single generated recipe.
type Recipe struct {
	Title              string       `json:"title" validate:"required"`
	Description        string       `json:"description" validate:"required"`
	Cuisine            string       `json:"cuisine" validate:"required"`
	MealType           string       `json:"mealType" validate:"required"`
	SpiceLevel         string       `json:"spiceLevel" validate:"required"`
	CookingTimeMinutes int          `json:"cookingTime" validate:"gt=0"`
	Difficulty         Difficulty   `json:"difficulty" validate:"oneof=Easy Medium Hard"`
	Servings           int          `json:"servings" validate:"gt=0"`
	Ingredients        []Ingredient `json:"ingredients" validate:"required,min=1,dive"`
	Instructions       []string     `json:"instructions" validate:"required,min=1,dive,required"`
	Tips               string       `json:"tips,omitempty"`
	DietaryCompliance  []string     `json:"dietaryCompliance" validate:"required"`
}

// Slug returns the identifier under which the recipe is saved.
func (r Recipe) Slug() string {
	return Slug(r.Title)
}

// SavedRecipe is a recipe a user marked as favorite. ID always equals the
// slug of the recipe title.
type SavedRecipe struct {
	ID      string    `json:"id"`
	Recipe  Recipe    `json:"recipe"`
	SavedAt time.Time `json:"savedAt"`
}

// NewSavedRecipe builds the favorite record for r.
func NewSavedRecipe(r Recipe) SavedRecipe {
	return SavedRecipe{ID: r.Slug(), Recipe: r}
}

// HistoryRecord captures one successful generation for a user. Records are
// append-only.
type HistoryRecord struct {
	ID          string       `json:"id,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
	Preferences Preferences  `json:"preferences"`
	Recipes     []Recipe     `json:"recipes"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// NewHistoryRecord builds a history record from the ingredient names and
// preferences a generation was requested with.
func NewHistoryRecord(names []string, prefs Preferences, recipes []Recipe) HistoryRecord {
	return HistoryRecord{
		Ingredients: IngredientsFromNames(names),
		Preferences: prefs,
		Recipes:     recipes,
	}
}

// IngredientsFromNames wraps plain names into ingredients without quantities.
func IngredientsFromNames(names []string) []Ingredient {
	ingredients := make([]Ingredient, 0, len(names))
	for _, name := range names {
		ingredients = append(ingredients, Ingredient{Name: name})
	}
	return ingredients
}
