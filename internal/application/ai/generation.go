package ai

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/application/prompt"
	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
)

const generationTemplate = `Generate 3 diverse recipes using these ingredients: {{range $i, $ing := .Ingredients}}{{if $i}}, {{end}}{{$ing.Name}}{{if $ing.Quantity}} ({{$ing.Quantity}} {{$ing.Unit}}){{end}}{{end}}

Requirements:
- Cuisine: {{.Cuisine}}
- Meal type: {{.MealType}}
- Dietary restrictions: MUST comply with {{if .DietaryRestrictions}}{{join .DietaryRestrictions ", "}}{{else}}None{{end}}
- Spice level: {{.SpiceLevel}}
- Difficulty: Include varied difficulty levels (at least one easy option)
- Use at least 80% of provided ingredients
- Clearly indicate any additional ingredients needed

For each recipe, provide:
1. Title (creative, appetizing)
2. Description (2-3 sentences highlighting key flavors)
3. Cooking time in minutes (prep + cook)
4. Difficulty (Easy/Medium/Hard)
5. Servings (whole number)
6. Ingredients with precise measurements
7. Step-by-step instructions (numbered, clear, concise)
8. Cooking tips (optional but helpful)

Return response as a JSON array with this structure:
[{
  "title": string,
  "description": string,
  "cuisine": string,
  "mealType": string,
  "spiceLevel": string,
  "cookingTime": integer,
  "difficulty": string,
  "servings": integer,
  "ingredients": [{"name": string, "quantity": string, "unit": string}],
  "instructions": [string],
  "tips": string,
  "dietaryCompliance": [string]
}]`

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

var ingredientSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":     stringProp("The name of the ingredient."),
		"quantity": stringProp("The quantity of the ingredient."),
		"unit":     stringProp("The unit of measurement for the ingredient."),
	},
	"required": []string{"name"},
}

var recipeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":       stringProp("The title of the recipe."),
		"description": stringProp("A brief description of the recipe."),
		"cuisine":     stringProp("The cuisine type of the recipe."),
		"mealType":    stringProp("The meal type of the recipe."),
		"spiceLevel":  stringProp("The spice level of the recipe."),
		"cookingTime": map[string]any{"type": "integer", "description": "The total cooking time in whole minutes (prep + cook)."},
		"difficulty": map[string]any{
			"type":        "string",
			"enum":        []string{string(recipe.DifficultyEasy), string(recipe.DifficultyMedium), string(recipe.DifficultyHard)},
			"description": "The difficulty level of the recipe.",
		},
		"servings": map[string]any{"type": "integer", "description": "The number of servings the recipe makes."},
		"ingredients": map[string]any{
			"type":        "array",
			"items":       ingredientSchema,
			"description": "A list of ingredients required for the recipe.",
		},
		"instructions": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Step-by-step instructions for preparing the recipe.",
		},
		"tips": stringProp("Optional cooking tips or variations."),
		"dietaryCompliance": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "A list of dietary compliances the recipe adheres to (e.g., Vegetarian, Gluten-Free).",
		},
	},
	"required": []string{
		"title", "description", "cuisine", "mealType", "spiceLevel", "cookingTime",
		"difficulty", "servings", "ingredients", "instructions", "dietaryCompliance",
	},
}

var generationSchema = outbound.OutputSchema{
	Name:        "generated_recipes",
	Description: "Recipes generated from the provided ingredients",
	Document: map[string]any{
		"type":  "array",
		"items": recipeSchema,
	},
}

// GenerationPipeline turns ingredients and preferences into recipes.
type GenerationPipeline struct {
	prompt *prompt.Prompt[recipe.GenerationRequest, []recipe.Recipe]
	logger *zap.Logger
}

// NewGenerationPipeline builds the generation prompt on top of completion.
func NewGenerationPipeline(
	completion outbound.CompletionService,
	validate *validator.Validate,
	logger *zap.Logger,
	opts ...prompt.Option,
) (*GenerationPipeline, error) {
	p, err := prompt.New[recipe.GenerationRequest, []recipe.Recipe](prompt.Definition[recipe.GenerationRequest]{
		Name:     "generateRecipes",
		Template: generationTemplate,
		Schema:   generationSchema,
	}, completion, validate, logger, opts...)
	if err != nil {
		return nil, err
	}

	return &GenerationPipeline{
		prompt: p,
		logger: logger.Named("generation"),
	}, nil
}

// Generate returns the validated recipes. The list may be empty; callers
// decide how to treat that. Count and ingredient coverage rules are left to
// the model.
func (p *GenerationPipeline) Generate(ctx context.Context, req recipe.GenerationRequest) ([]recipe.Recipe, error) {
	p.logger.Info("Generating recipes",
		zap.Int("ingredients", len(req.Ingredients)),
		zap.String("cuisine", req.Cuisine),
		zap.String("meal_type", req.MealType),
	)

	recipes, err := p.prompt.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Recipes generated", zap.Int("count", len(recipes)))
	return recipes, nil
}
