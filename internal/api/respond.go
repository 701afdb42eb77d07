package api

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"vidstream/internal/apperr"
)

// respondError writes the public form of err; internal failures are logged under op.
func respondError(c *gin.Context, op string, err error) {
	kind, msg := apperr.Public(err)
	if kind == apperr.KindInternal {
		log.Printf("%s: %v", op, err)
	}
	c.JSON(apperr.Status(kind), gin.H{"error": msg, "code": kind})
}

func respondInvalid(c *gin.Context, msg string) {
	respondError(c, "", apperr.InvalidOperation(msg))
}

// respondBindError turns a binding failure into a 400 naming the first bad field.
func respondBindError(c *gin.Context, err error) {
	respondInvalid(c, validationMessage(err))
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request body"
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "username":
		return "username must be 3-50 characters and contain only letters, numbers and underscores"
	case "password":
		return "password must be at least 6 characters and contain an uppercase letter, a lowercase letter and a number"
	case "email":
		return "a valid email is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondInvalid(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	s := c.Query(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
