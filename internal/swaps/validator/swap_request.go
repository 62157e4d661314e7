package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"slotswap/pkg/logger"
	"slotswap/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type SwapRequestValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSwapRequestValidator(log *logger.Logger) *SwapRequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	return &SwapRequestValidator{
		validate: v,
		logger:   log,
	}
}

// jsonFieldName reports fields by their wire name so messages match the
// request body the caller sent.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func (v *SwapRequestValidator) ValidateRequest(input *model.SwapRequestInput) error {
	return v.check(input)
}

func (v *SwapRequestValidator) ValidateResponse(input *model.SwapResponseInput) error {
	return v.check(input)
}

// ParseStatusFilter accepts an empty filter or one of the request statuses.
func (v *SwapRequestValidator) ParseStatusFilter(raw string) (model.SwapStatus, error) {
	status := model.SwapStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if status == "" || status.IsValid() {
		return status, nil
	}
	return "", ValidationErrors{{
		Field:   "status",
		Message: "status must be one of: PENDING ACCEPTED REJECTED CANCELLED",
	}}
}

func (v *SwapRequestValidator) check(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return v.translateValidationErrors(validationErrs)
	}
	return err
}

func (v *SwapRequestValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "nefield":
			message = "a slot cannot be swapped with itself"
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
