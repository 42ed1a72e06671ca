package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/towersched/towersched/internal/common/schederrors"
)

// Validate checks the validate tags of c. Each violated tag is reported as an
// *schederrors.ErrInvalidArgument within a *multierror.Error.
func Validate(c interface{}) error {
	err := validator.New().Struct(c)
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errors.WithStack(err)
	}
	var result *multierror.Error
	for _, fieldErr := range validationErrors {
		result = multierror.Append(result, &schederrors.ErrInvalidArgument{
			Name:    stripPrefix(fieldErr.Namespace()),
			Value:   fieldErr.Value(),
			Message: constraintMessage(fieldErr),
		})
	}
	return result.ErrorOrNil()
}

func constraintMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fieldErr.Param())
	case "gtefield":
		return fmt.Sprintf("must be at least the value of %s", fieldErr.Param())
	default:
		return fmt.Sprintf("violates %s=%s", fieldErr.Tag(), fieldErr.Param())
	}
}

// LogValidationErrors logs one line per invalid field of an error returned by Validate.
func LogValidationErrors(err error) {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		log.Errorf("ConfigError: %s", err)
		return
	}
	for _, e := range merr.Errors {
		log.Errorf("ConfigError: %s", e)
	}
}

// stripPrefix drops the name of the top-level struct from a field namespace.
func stripPrefix(s string) string {
	if idx := strings.Index(s, "."); idx != -1 {
		return s[idx+1:]
	}
	return s
}
