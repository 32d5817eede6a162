package validation

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/velocab/ridecore/pkg/common"
)

// Validate is the global validator instance, shared with gin's binding
// engine so request structs and service-level checks use the same rules.
var Validate *validator.Validate

func init() {
	if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Validate = engine
	} else {
		Validate = validator.New()
	}
}

// ValidateStruct validates a struct's binding tags outside of a gin request
// and maps failures to the validation error kind.
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		return common.NewValidationError(formatFieldErrors(fieldErrors))
	}
	return common.NewInvalidInputError("invalid request", err)
}

func formatFieldErrors(fieldErrors validator.ValidationErrors) string {
	msgs := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
