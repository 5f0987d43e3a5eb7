package recipe

import (
	"slices"
	"strings"
	"unicode"
)

// Catalog values offered to users when choosing preferences.
var (
	Cuisines = []string{
		"Italian", "Mexican", "Chinese", "Indian", "Thai", "Mediterranean",
		"American", "French", "Japanese", "Korean", "Middle Eastern",
	}

	DietaryRestrictions = []string{
		"None", "Vegetarian", "Vegan", "Gluten-Free", "Dairy-Free", "Nut-Free",
		"Egg-Free", "Soy-Free", "Shellfish-Free", "Low-Carb/Keto", "Paleo",
		"Halal", "Kosher",
	}

	MealTypes = []string{"Breakfast", "Lunch", "Dinner", "Snack", "Dessert", "Beverage"}

	SpiceLevels = []string{"None", "Mild", "Medium", "Hot", "Extra Hot"}
)

const (
	DefaultMealType   = "Dinner"
	DefaultSpiceLevel = "Medium"
	AnyCuisine        = "Any"
)

// IsMealType reports whether v is a catalog meal type.
func IsMealType(v string) bool {
	return slices.Contains(MealTypes, v)
}

// IsSpiceLevel reports whether v is a catalog spice level.
func IsSpiceLevel(v string) bool {
	return slices.Contains(SpiceLevels, v)
}

// Preferences steer a generation request. Cuisines may be empty, meaning
// any cuisine.
type Preferences struct {
	Cuisines            []string `json:"cuisine"`
	MealType            string   `json:"mealType"`
	DietaryRestrictions []string `json:"dietaryRestrictions"`
	SpiceLevel          string   `json:"spiceLevel"`
}

// DefaultPreferences returns the preferences a new session starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		Cuisines:            []string{},
		MealType:            DefaultMealType,
		DietaryRestrictions: []string{},
		SpiceLevel:          DefaultSpiceLevel,
	}
}

// Validate checks meal type and spice level against the catalog.
func (p Preferences) Validate() error {
	if !IsMealType(p.MealType) {
		return ErrUnknownMealType
	}
	if !IsSpiceLevel(p.SpiceLevel) {
		return ErrUnknownSpiceLevel
	}
	return nil
}

// CuisineLabel renders the chosen cuisines for a generation request.
func (p Preferences) CuisineLabel() string {
	if len(p.Cuisines) == 0 {
		return AnyCuisine
	}
	return strings.Join(p.Cuisines, ", ")
}

// Clone returns a deep copy so a request snapshot cannot be changed later.
func (p Preferences) Clone() Preferences {
	return Preferences{
		Cuisines:            append([]string{}, p.Cuisines...),
		MealType:            p.MealType,
		DietaryRestrictions: append([]string{}, p.DietaryRestrictions...),
		SpiceLevel:          p.SpiceLevel,
	}
}

// GenerationRequest is the input of recipe generation.
type GenerationRequest struct {
	Ingredients         []Ingredient `json:"ingredients" validate:"required,min=3,dive"`
	Cuisine             string       `json:"cuisine" validate:"required"`
	MealType            string       `json:"mealType" validate:"required,mealtype"`
	DietaryRestrictions []string     `json:"dietaryRestrictions" validate:"dive,required"`
	SpiceLevel          string       `json:"spiceLevel" validate:"required,spicelevel"`
}

// NewGenerationRequest assembles a request from ingredient names and preferences.
func NewGenerationRequest(names []string, prefs Preferences) GenerationRequest {
	return GenerationRequest{
		Ingredients:         IngredientsFromNames(names),
		Cuisine:             prefs.CuisineLabel(),
		MealType:            prefs.MealType,
		DietaryRestrictions: append([]string{}, prefs.DietaryRestrictions...),
		SpiceLevel:          prefs.SpiceLevel,
	}
}

// Slug lowercases title and replaces each run of whitespace with a single
// hyphen. Leading and trailing runs are kept as hyphens.
func Slug(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	inSpace := false
	for _, r := range title {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
