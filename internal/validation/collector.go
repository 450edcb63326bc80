package validation

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strconv"
	"strings"
)

// Collector accumulates failures found while reading request input, before
// and alongside tag validation.
type Collector struct {
	details []ErrorDetail
}

// Add records a failure.
func (c *Collector) Add(d ErrorDetail) {
	c.details = append(c.details, d)
}

// Missing records a required value that was not supplied.
func (c *Collector) Missing(loc ...any) {
	c.Add(ErrorDetail{Loc: loc, Msg: "field required", Type: "value_error.missing"})
}

// Int parses an integer parameter. It returns nil when the parameter is
// absent, or malformed (recording a failure).
func (c *Collector) Int(raw string, present bool, loc ...any) *int {
	if !present {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		c.Add(ErrorDetail{Loc: loc, Msg: "value is not a valid integer", Type: "type_error.integer"})
		return nil
	}
	return &n
}

// String returns a pointer to raw when the parameter is present.
func (c *Collector) String(raw string, present bool) *string {
	if !present {
		return nil
	}
	return &raw
}

// DecodeJSON decodes a request body into dst, recording malformed or mistyped
// input under the given location prefix.
func (c *Collector) DecodeJSON(body io.Reader, dst any, prefix ...any) bool {
	err := json.NewDecoder(body).Decode(dst)
	if err == nil {
		return true
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		c.Missing(prefix...)
	case errors.As(err, &syntaxErr):
		c.Add(ErrorDetail{
			Loc:  append(append([]any{}, prefix...), syntaxErr.Offset),
			Msg:  "invalid JSON: " + syntaxErr.Error(),
			Type: "value_error.jsondecode",
		})
	case errors.As(err, &typeErr):
		loc := append([]any{}, prefix...)
		if typeErr.Field != "" {
			for _, part := range strings.Split(typeErr.Field, ".") {
				loc = append(loc, part)
			}
		}
		msg, typ := typeMismatch(typeErr.Type)
		c.Add(ErrorDetail{Loc: loc, Msg: msg, Type: typ})
	default:
		c.Add(ErrorDetail{Loc: prefix, Msg: err.Error(), Type: "value_error.jsondecode"})
	}
	return false
}

func typeMismatch(t reflect.Type) (string, string) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "value is not a valid integer", "type_error.integer"
	case reflect.Float32, reflect.Float64:
		return "value is not a valid float", "type_error.float"
	case reflect.String:
		return "str type expected", "type_error.str"
	case reflect.Bool:
		return "value could not be parsed to a boolean", "type_error.bool"
	case reflect.Slice, reflect.Array:
		return "value is not a valid list", "type_error.list"
	default:
		return "value is not a valid dict", "type_error.dict"
	}
}

// Merge adds the details of a validation *Error, skipping locations that
// already failed while parsing. Any other non-nil error is returned.
func (c *Collector) Merge(err error) error {
	if err == nil {
		return nil
	}
	var verr *Error
	if !errors.As(err, &verr) {
		return err
	}
	seen := make(map[string]bool, len(c.details))
	for _, d := range c.details {
		seen[locString(d.Loc)] = true
	}
	for _, d := range verr.Details {
		if !seen[locString(d.Loc)] {
			c.Add(d)
		}
	}
	return nil
}

// Err returns the collected failures as *Error, or nil when there are none.
func (c *Collector) Err() error {
	if len(c.details) == 0 {
		return nil
	}
	return &Error{Details: c.details}
}
