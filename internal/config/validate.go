package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if _, err := Lookup(c.Profile); err != nil {
		return err
	}
	if c.Settings != nil {
		return c.Settings.Validate()
	}
	return nil
}

func (s *Settings) Validate() error {
	if s == nil {
		return nil
	}
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func validateProfile(p *Profile) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, formatValidationError(err))
	}
	for _, a := range p.Algorithms {
		for name, param := range a.Params {
			if param == nil {
				return fmt.Errorf("profile %s: algorithm %s: param %s is nil", p.Name, a.Name, name)
			}
			if param.Min > param.Max {
				return fmt.Errorf("profile %s: algorithm %s: param %s has min > max", p.Name, a.Name, name)
			}
		}
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, e.Param())
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
