package validator

import (
	"errors"
	"fmt"
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
	if len(v) == 0 {
		return ""
	}
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type SlotValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSlotValidator(log *logger.Logger) *SlotValidator {
	v := validator.New()

	if err := v.RegisterValidation("notblank", validateNotBlank); err != nil {
		log.Fatal("Failed to register 'notblank' validator", "error", err)
	}

	return &SlotValidator{
		validate: v,
		logger:   log,
	}
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func (v *SlotValidator) ValidateInput(input *model.SlotInput) error {
	return v.check(input)
}

// ValidateSlot checks a slot after an update has been merged into it.
func (v *SlotValidator) ValidateSlot(slot *model.Slot) error {
	return v.check(slot)
}

func (v *SlotValidator) ValidateStatus(change *model.StatusChange) error {
	return v.check(change)
}

func (v *SlotValidator) check(s any) error {
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

func (v *SlotValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required", "notblank":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "gtfield":
			message = "end_time must be after start_time"
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
