package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var (
	// ErrValidation is returned when an input is missing a required field or has a bad value.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an operation references an entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an insert would violate a uniqueness constraint.
	ErrConflict = errors.New("already exists")

	// ErrUnauthorized is returned for unknown phones and wrong passwords alike.
	ErrUnauthorized = errors.New("invalid phone or password")

	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)
	ErrPhoneExists  = fmt.Errorf("%w: phone", ErrConflict)
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct tag validation and folds failures into ErrValidation.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(parts, ", "))
}

func missing(field string) error {
	return fmt.Errorf("%w: %s is required", ErrValidation, field)
}

// notFound converts gorm's record-not-found into the given sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
