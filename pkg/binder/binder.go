package binder

import (
	"context"
	"reflect"
	"strings"

	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/creasty/defaults"
	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Binder normalizes the params structs passed into the services. It uses
// mold to clean up the params, defaults to fill in zero fields, and
// validator to validate them. Field names in error messages come from the
// json tags.
type Binder struct {
	conform  *mold.Transformer
	validate *validator.Validate
}

// New initializes a new Binder instance with the appropriate validation
// functions registered.
func New() (*Binder, error) {
	conform := modifiers.New()
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	err := validate.RegisterValidation("color", colorValidator)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Binder{conform, validate}, nil
}

// Bind modifies, defaults, and validates the given params struct. Validation
// failures come back as a validation error describing the first offending
// field.
func (b *Binder) Bind(ctx context.Context, i interface{}) error {
	if err := b.conform.Struct(ctx, i); err != nil {
		return errors.WithStack(err)
	}

	if err := defaults.Set(i); err != nil {
		return errors.WithStack(err)
	}

	if err := b.validate.Struct(i); err != nil {
		errs := err.(validator.ValidationErrors)
		msg := formatValidationError(errs[0])
		return errcodes.ValidationError(msg)
	}
	return nil
}
