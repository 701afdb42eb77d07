package api

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)

var (
	validatorsOnce sync.Once
	validatorsErr  error
)

// RegisterValidators installs the username and password rules on gin's validator engine.
func RegisterValidators() error {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validatorsErr = errors.New("gin validator engine is not validator/v10")
			return
		}
		v.RegisterTagNameFunc(fieldName)
		if err := v.RegisterValidation("username", validUsername); err != nil {
			validatorsErr = err
			return
		}
		validatorsErr = v.RegisterValidation("password", validPassword)
	})
	return validatorsErr
}

// fieldName reports json or form names in validation errors.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func validUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

func validPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) < 6 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}
