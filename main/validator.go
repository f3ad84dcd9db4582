package main

import (
	"net/mail"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// init before main function
func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())
	_ = Validate.RegisterValidation("valid_mailbox", ValidateMailbox)
}

// ValidateMailbox accepts a bare address or a display name form like "CoCraft <no-reply@cocraft.app>"
func ValidateMailbox(fl validator.FieldLevel) bool {
	addr, err := mail.ParseAddress(fl.Field().String())
	if err != nil {
		return false
	}
	return emailRegex.MatchString(addr.Address)
}
