package domain

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if label := f.Tag.Get("label"); label != "" {
				return label
			}
			return f.Name
		})
	})
	return validate
}

// Validate checks the field constraints a stored user must satisfy.
func (u *User) Validate() error {
	err := validatorInstance().Struct(u)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate user: %w", err)
	}

	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), describe(fe))
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gte", "lte":
		return fmt.Sprintf("must be between %d and %d", MinAge, MaxAge)
	default:
		return "is invalid"
	}
}
