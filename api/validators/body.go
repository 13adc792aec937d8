package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
)

// MaxBodyBytes bounds every JSON request body.
const MaxBodyBytes = 1 << 20

var validate = func() *validator.Validate {
	v := validator.New()
	// Report JSON field names so clients can map errors back to their payload.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		default:
			return name
		}
	})
	return v
}()

var fieldMessages = map[string]func(validator.FieldError) string{
	"required": func(validator.FieldError) string { return "is required" },
	"email":    func(validator.FieldError) string { return "must be a valid email" },
	"uuid":     func(validator.FieldError) string { return "must be a valid uuid" },
	"uuid4":    func(validator.FieldError) string { return "must be a valid uuid" },
	"min":      func(fe validator.FieldError) string { return "must be at least " + fe.Param() },
	"max":      func(fe validator.FieldError) string { return "must be at most " + fe.Param() },
	"gt":       func(fe validator.FieldError) string { return "must be greater than " + fe.Param() },
	"oneof":    func(fe validator.FieldError) string { return fmt.Sprintf("must be one of [%s]", fe.Param()) },
	"datetime": func(fe validator.FieldError) string { return "must match layout " + fe.Param() },
}

// DecodeJSONBody decodes exactly one JSON document into dest, rejecting
// unknown fields and trailing data, then runs dest's validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return bodyError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid request body").
			WithDetails(map[string]any{"error": "body must contain a single JSON object"})
	}

	if err := validate.Struct(dest); err != nil {
		return fieldErrors(err)
	}
	return nil
}

func bodyError(err error) error {
	detail := err.Error()
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		detail = fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit)
	}
	if errors.Is(err, io.EOF) {
		detail = "body is empty"
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
		WithDetails(map[string]any{"error": detail})
}

func fieldErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg := "is invalid"
		if render, ok := fieldMessages[fe.Tag()]; ok {
			msg = render(fe)
		}
		details[fe.Field()] = msg
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}
