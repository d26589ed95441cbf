package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxJSONBodyBytes caps JSON request bodies. Uploads go through multipart
// parsing and are limited separately.
const MaxJSONBodyBytes = 1 << 20

// ErrBodyTooLarge is returned when a JSON body exceeds MaxJSONBodyBytes.
var ErrBodyTooLarge = errors.New("request body too large")

var validate = newValidator()

// newValidator reports fields by their JSON names so validation messages
// match what the client sent.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// DecodeJSON decodes the request body into v.
func DecodeJSON(r *http.Request, v interface{}) error {
	body := io.LimitReader(r.Body, MaxJSONBodyBytes+1)
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if len(data) > MaxJSONBodyBytes {
		return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, MaxJSONBodyBytes)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return io.EOF
	}
	return json.Unmarshal(data, v)
}

// DecodeOptionalJSON is DecodeJSON for endpoints whose body may be omitted;
// an empty body leaves v at its zero value.
func DecodeOptionalJSON(r *http.Request, v interface{}) error {
	if err := DecodeJSON(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ValidateRequest runs the struct's own Validate method when it has one,
// and the tag validator otherwise.
func ValidateRequest(v interface{}) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return validate.Struct(v)
}
