package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field error types reported in validation failures.
const (
	ErrTypeMissing     = "missing"
	ErrTypeInvalidType = "type_error"
	ErrTypeInvalidJSON = "json_invalid"
)

// bodyLoc is the root location of request body fields.
const bodyLoc = "body"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError describes a single problem with a request payload.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationError is returned when a payload does not match the item shape.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", strings.Join(f.Loc, "."), f.Msg))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// ItemInput is the client-supplied item payload used by create and update.
// Pointer fields distinguish an absent field from its zero value.
type ItemInput struct {
	Name        *string  `json:"name" validate:"required"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"required"`
	OnOffer     *bool    `json:"on_offer"`
}

// DecodeItemInput reads and validates an item payload.
// Any failure is returned as a *ValidationError.
func DecodeItemInput(r io.Reader) (*ItemInput, error) {
	var input ItemInput
	dec := json.NewDecoder(r)
	if err := dec.Decode(&input); err != nil {
		return nil, decodeError(err)
	}

	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, invalidJSONError()
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	return &input, nil
}

// Validate checks that all required fields are present.
func (in *ItemInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating item: %w", err)
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fieldErrorFor(fe))
	}

	return &ValidationError{Fields: fields}
}

// Item builds an item from the payload, applying defaults.
// The identifier is left empty; the store assigns it.
func (in *ItemInput) Item() Item {
	item := Item{}
	if in.Name != nil {
		item.Name = *in.Name
	}
	if in.Description != nil {
		d := *in.Description
		item.Description = &d
	}
	if in.Price != nil {
		item.Price = *in.Price
	}
	if in.OnOffer != nil {
		item.OnOffer = *in.OnOffer
	}
	return item
}

func fieldErrorFor(fe validator.FieldError) FieldError {
	switch fe.Tag() {
	case "required":
		return FieldError{
			Loc:  []string{bodyLoc, fe.Field()},
			Msg:  "field required",
			Type: ErrTypeMissing,
		}
	default:
		return FieldError{
			Loc:  []string{bodyLoc, fe.Field()},
			Msg:  fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
			Type: fe.Tag(),
		}
	}
}

// decodeError converts a JSON decoding failure into a ValidationError.
func decodeError(err error) *ValidationError {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError

	switch {
	case errors.As(err, &typeErr):
		loc := []string{bodyLoc}
		if typeErr.Field != "" {
			loc = append(loc, strings.Split(typeErr.Field, ".")...)
		}
		return &ValidationError{Fields: []FieldError{{
			Loc:  loc,
			Msg:  fmt.Sprintf("value is not a valid %s", typeErr.Type.String()),
			Type: ErrTypeInvalidType,
		}}}
	case errors.Is(err, io.EOF):
		return &ValidationError{Fields: []FieldError{{
			Loc:  []string{bodyLoc},
			Msg:  "field required",
			Type: ErrTypeMissing,
		}}}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return invalidJSONError()
	default:
		return &ValidationError{Fields: []FieldError{{
			Loc:  []string{bodyLoc},
			Msg:  err.Error(),
			Type: ErrTypeInvalidJSON,
		}}}
	}
}

func invalidJSONError() *ValidationError {
	return &ValidationError{Fields: []FieldError{{
		Loc:  []string{bodyLoc},
		Msg:  "invalid JSON",
		Type: ErrTypeInvalidJSON,
	}}}
}
