package handlers

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/go-playground/validator/v10"
)

var personNamePattern = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑ\s]+$`)

// NewValidator builds the request validator. Rules are read from the
// `binding` struct tag, same as gin's default engine, plus the user rules.
// Phone numbers are checked against region (ISO 3166 code, e.g. "PE").
func NewValidator(region string) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")

	region = strings.ToUpper(region)

	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	})

	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		var lower, upper, digit bool
		for _, r := range fl.Field().String() {
			switch {
			case unicode.IsLower(r):
				lower = true
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsDigit(r):
				digit = true
			}
		}
		return lower && upper && digit
	})

	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		_, ok := user.CanonicalPhone(fl.Field().String(), region)
		return ok
	})

	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := user.ParseDate(fl.Field().String())
		return err == nil
	})

	// past runs after isodate, so an unparseable value never reaches it
	_ = v.RegisterValidation("past", func(fl validator.FieldLevel) bool {
		bd, err := user.ParseDate(fl.Field().String())
		if err != nil {
			return false
		}
		_, err = user.AgeAt(bd, time.Now().UTC())
		return err == nil
	})

	return v
}
