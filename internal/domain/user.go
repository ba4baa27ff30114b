package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"data-audit/internal/audit"
)

// ErrInvalidUser indicates that a user failed validation.
var ErrInvalidUser = errors.New("invalid user")

// User is the audited record. Its audit fields are owned by the storage layer.
type User struct {
	ID       int64
	Name     string `validate:"required,notblank"`
	Username string `validate:"required,notblank"`
	audit.Fields
}

// AuditFields exposes the embedded audit fields to the populator.
func (u *User) AuditFields() *audit.Fields {
	if u == nil {
		return nil
	}
	return &u.Fields
}

// Validate checks the business attributes.
func (u *User) Validate() error {
	if u == nil {
		return fmt.Errorf("%w: nil user", ErrInvalidUser)
	}
	if err := validate.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, strings.ToLower(fe.Field())+" is required")
			}
			return fmt.Errorf("%w: %s", ErrInvalidUser, strings.Join(msgs, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank validation: %v", err))
	}
	return v
}
