package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/koolaai/support_api/shared"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	validate.RegisterValidation("attachment_type", validateAttachmentType)
}

func GetValidator() *validator.Validate {
	return validate
}

func validateAttachmentType(fl validator.FieldLevel) bool {
	return shared.AllowedAttachmentTypes[strings.ToLower(fl.Field().String())]
}

type ValidationError struct {
	Field   string `json:"field" example:"attachments[0].size"`
	Message string `json:"message" example:"Attachment exceeds 5MB limit"`
}

func FormatValidationErrors(err error) []ValidationError {
	var errs []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			var message string
			field := fieldError.Field()

			switch fieldError.Tag() {
			case "required":
				message = field + " is required"
			case "min":
				message = field + " must be at least " + fieldError.Param()
			case "max":
				message = field + " must be at most " + fieldError.Param()
			case "lte":
				if field == "size" {
					message = "Attachment exceeds 5MB limit"
				} else {
					message = field + " must be at most " + fieldError.Param()
				}
			case "gte":
				message = field + " must be at least " + fieldError.Param()
			case "attachment_type":
				message = fmt.Sprintf("Attachment type %v is not allowed", fieldError.Value())
			case "oneof":
				message = field + " must be one of: " + fieldError.Param()
			default:
				message = field + " is invalid"
			}

			errs = append(errs, ValidationError{
				Field:   fieldError.Namespace(),
				Message: message,
			})
		}
	}

	return errs
}

type Validator interface {
	Validate() error
}

// AsAppError turns a validator failure into a 400 carrying field details.
func AsAppError(err error) error {
	if err == nil {
		return nil
	}
	details := FormatValidationErrors(err)
	if len(details) == 0 {
		return shared.NewBadRequestError(err, "Invalid request payload.")
	}
	return shared.NewValidationError(details[0].Message, details)
}
