// Package validation builds the struct validator shared by the prompts,
// the HTTP handlers and the account commands.
package validation

import (
	"encoding/base64"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alchemorsel/pantrychef/internal/domain/recipe"
	"github.com/alchemorsel/pantrychef/internal/domain/user"
)

// New returns a validator with the domain rules registered. Field names in
// errors use the json tag so messages match the wire format.
func New() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	// Registration only fails for empty tags or nil functions.
	_ = validate.RegisterValidation("mealtype", validateMealType)
	_ = validate.RegisterValidation("spicelevel", validateSpiceLevel)
	_ = validate.RegisterValidation("strong_password", validateStrongPassword)
	_ = validate.RegisterValidation("display_name", validateDisplayName)

	return validate
}

func validateMealType(fl validator.FieldLevel) bool {
	return recipe.IsMealType(fl.Field().String())
}

func validateSpiceLevel(fl validator.FieldLevel) bool {
	return recipe.IsSpiceLevel(fl.Field().String())
}

func validateStrongPassword(fl validator.FieldLevel) bool {
	return user.ValidatePassword(fl.Field().String()) == nil
}

func validateDisplayName(fl validator.FieldLevel) bool {
	return user.ValidateDisplayName(fl.Field().String()) == nil
}

// DataURISize returns the decoded byte size of a base64 data URI, or the raw
// length for anything else.
func DataURISize(uri string) int64 {
	comma := strings.IndexByte(uri, ',')
	if !strings.HasPrefix(uri, "data:") || comma < 0 || !strings.HasSuffix(uri[:comma], ";base64") {
		return int64(len(uri))
	}
	payload := strings.TrimRight(uri[comma+1:], "=")
	return int64(base64.RawStdEncoding.DecodedLen(len(payload)))
}
