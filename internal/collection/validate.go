package collection

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/leca/cardvault/internal/imageproc"
)

// newValidator returns a validator that reports fields by their JSON names
// and understands the image_ref tag (http(s) URL or base64 data URI).
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("image_ref", func(fl validator.FieldLevel) bool {
		return isImageRef(fl.Field().String())
	})
	return v
}

func isImageRef(s string) bool {
	if imageproc.IsDataURI(s) {
		return strings.HasPrefix(s, "data:image/")
	}
	u, err := url.ParseRequestURI(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// FieldError is a validation failure of a single request field. It matches
// ErrValidation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return ErrValidation.Error() + ": " + e.Message
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// validationError converts validator output into a FieldError with a
// readable message naming the first offending field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fe.Field() + " is required"
	case "min":
		if fe.Param() == "1" {
			msg = fe.Field() + " is required"
			break
		}
		msg = fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), "'", ""))
	case "alphanum":
		msg = fe.Field() + " may only contain letters and digits"
	case "image_ref":
		msg = fe.Field() + " must be an http(s) URL or an image data URI"
	default:
		msg = fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
	return &FieldError{Field: fe.Field(), Message: msg}
}
