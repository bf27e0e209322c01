package dto

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var reflinkCodeRegex = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("reflink_code", validateReflinkCode)
}

func GetValidator() *validator.Validate {
	return validate
}

// validateReflinkCode enforces the shareable code format: alphanumeric plus
// dash/underscore, 3 to 50 characters.
func validateReflinkCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()

	if len(code) < 3 || len(code) > 50 {
		return false
	}

	return reflinkCodeRegex.MatchString(code)
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors"`
}

func FormatValidationErrors(err error) []ValidationError {
	var errors []ValidationError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			var message string

			switch fieldError.Tag() {
			case "required":
				message = fieldError.Field() + " is required"
			case "email":
				message = "Invalid email format"
			case "min":
				message = fieldError.Field() + " must be at least " + fieldError.Param() + " characters"
			case "max":
				message = fieldError.Field() + " must be at most " + fieldError.Param() + " characters"
			case "oneof":
				message = fieldError.Field() + " must be one of: " + fieldError.Param()
			case "gte":
				message = fieldError.Field() + " must be at least " + fieldError.Param()
			case "reflink_code":
				message = "Code must be 3-50 characters of letters, numbers, dash or underscore"
			default:
				message = fieldError.Field() + " is invalid"
			}

			errors = append(errors, ValidationError{
				Field:   fieldError.Field(),
				Message: message,
			})
		}
	}

	return errors
}

func CreateValidationErrorResponse(err error) ValidationErrorResponse {
	return ValidationErrorResponse{
		Code:    400,
		Message: "Validation failed",
		Errors:  FormatValidationErrors(err),
	}
}
