package user

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "user-records-api/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json field names so messages match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("email_domain", validateEmailDomain); err != nil {
		panic(fmt.Sprintf("register email_domain validation: %v", err))
	}
	return v
}

// validateEmailDomain requires at least one dot in the part after the last "@".
func validateEmailDomain(fl validator.FieldLevel) bool {
	email := fl.Field().String()
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// ValidateCreate normalizes and checks a create payload. It performs no I/O.
func ValidateCreate(in CreateUserRequest) (CreateUserRequest, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	if err := validate.Struct(in); err != nil {
		return CreateUserRequest{}, formatValidationError(err)
	}
	return in, nil
}

// formatValidationError converts the first validator failure into a ValidationError.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return pkgerrors.NewValidationError("", err.Error())
	}

	e := validationErrors[0]
	var msg string
	switch e.Tag() {
	case "required":
		msg = "is required"
	case "email":
		msg = "must be a valid email"
	case "email_domain":
		msg = "must have a domain containing a dot"
	case "min":
		msg = fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		msg = fmt.Sprintf("must be at most %s characters", e.Param())
	default:
		msg = "is invalid"
	}
	return pkgerrors.NewValidationError(e.Field(), msg)
}
