package account

import (
	"strings"

	"github.com/kwccc073/vuetify-shop-back/internal/validation"
)

// Registration is the input accepted when creating an account.
type Registration struct {
	Handle   string `json:"account" validate:"required,min=4,max=20,alphanum"`
	Password string `json:"password" validate:"required,min=4,max=20"`
	Email    string `json:"email" validate:"required,email"`
}

var registrationMessages = validation.Messages{
	"account.required":  "account is required",
	"account.min":       "account must be at least 4 characters",
	"account.max":       "account must be at most 20 characters",
	"account.alphanum":  "account may only contain letters and digits",
	"password.required": "password is required",
	"password.min":      "password must be at least 4 characters",
	"password.max":      "password must be at most 20 characters",
	"email.required":    "email is required",
	"email.email":       "email format is invalid",
}

func (r *Registration) Normalize() {
	r.Handle = strings.TrimSpace(r.Handle)
	r.Email = strings.TrimSpace(r.Email)
}

// Validate reports the first offending field as a *validation.Error.
func (r Registration) Validate(v *validation.Validator) error {
	return v.Struct(r, registrationMessages)
}
