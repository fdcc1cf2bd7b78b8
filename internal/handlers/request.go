package handlers

import (
	"errors"
	"fmt"
	"log"
	"reflect"
	"strconv"
	"strings"

	"storefront/internal/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// parseAndValidate binds the JSON body into dst and validates it. When it
// returns false the 400 response has already been written.
func parseAndValidate(c *fiber.Ctx, validate *validator.Validate, dst interface{}) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		log.Printf("Error parsing request body for %s: %v", c.Path(), err)
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
			})
		}
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}
	return true, nil
}

// writeError maps err to its status code and a {"message": ...} body.
// Storage and unknown failures are logged and answered with fallback.
func writeError(c *fiber.Ctx, err error, fallback string) error {
	status := apperrors.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("%s %s: %s: %v", c.Method(), c.Path(), fallback, err)
	}
	return c.Status(status).JSON(fiber.Map{
		"message": apperrors.PublicMessage(err, fallback),
	})
}

func uintParam(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.Validation(fmt.Sprintf("Invalid %s", name))
	}
	return uint(id), nil
}

func floatQuery(c *fiber.Ctx, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, apperrors.Validation(fmt.Sprintf("Invalid %s", name))
	}
	return &v, nil
}
