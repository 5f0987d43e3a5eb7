package recipe

import "errors"

// Domain errors for ingredient and recipe handling

var (
	// Ingredient set errors
	ErrBlankIngredient     = errors.New("ingredient name must not be blank")
	ErrDuplicateIngredient = errors.New("ingredient already exists in the list")

	// Preference errors
	ErrUnknownMealType   = errors.New("unknown meal type")
	ErrUnknownSpiceLevel = errors.New("unknown spice level")

	// Generation errors
	ErrNotEnoughIngredients = errors.New("not enough ingredients to generate recipes")
	ErrNoRecipesGenerated   = errors.New("no recipes were generated")
)
