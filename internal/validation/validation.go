// Package validation checks request input against constraints declared in struct
// tags and reports failures as structured details.
//
// Tags understood besides the validator built-ins:
//
//	pattern=<regexp>   the value must match the expression at its start
//
// The external name of a field (used in error locations) comes from its
// path, query, header or cookie tag, which also names the location, or from
// its json tag for request bodies.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrorDetail describes one failed constraint.
type ErrorDetail struct {
	Loc  []any          `json:"loc"`
	Msg  string         `json:"msg"`
	Type string         `json:"type"`
	Ctx  map[string]any `json:"ctx,omitempty"`
}

// Error is a list of failed constraints.
type Error struct {
	Details []ErrorDetail
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, fmt.Sprintf("%s: %s", locString(d.Loc), d.Msg))
	}
	return fmt.Sprintf("%d validation error(s): %s", len(e.Details), strings.Join(parts, "; "))
}

// Validator interprets validation tags on structs.
type Validator struct {
	validate *validator.Validate
}

// Sources are the request locations a field tag may name.
var sources = []string{"path", "query", "header", "cookie"}

// New creates a Validator with the pattern tag registered.
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(fieldName)
	_ = validate.RegisterValidation("pattern", matchPattern)
	return &Validator{validate: validate}
}

// RegisterValidation adds a custom tag.
func (v *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return v.validate.RegisterValidation(tag, fn)
}

// Struct validates s. Failures are returned as *Error with each location
// starting with prefix; other errors (e.g. s is not a struct) are returned as is.
func (v *Validator) Struct(s any, prefix ...any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &Error{Details: make([]ErrorDetail, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Details = append(out.Details, describe(fe, prefix))
	}
	return out
}

// fieldName yields "<source>.<name>" for parameter fields, so the source
// becomes the first element of the error location.
func fieldName(fld reflect.StructField) string {
	for _, src := range sources {
		if name := fld.Tag.Get(src); name != "" {
			return src + "." + name
		}
	}
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

var patterns sync.Map // string -> *regexp.Regexp

func compiledPattern(expr string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(expr); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(`^(?:` + expr + `)`)
	if err != nil {
		return nil, err
	}
	patterns.Store(expr, re)
	return re, nil
}

func matchPattern(fl validator.FieldLevel) bool {
	re, err := compiledPattern(fl.Param())
	if err != nil {
		return false
	}
	return re.MatchString(fl.Field().String())
}

func describe(fe validator.FieldError, prefix []any) ErrorDetail {
	d := ErrorDetail{Loc: append(append([]any{}, prefix...), splitNamespace(fe.Namespace())...)}
	param := fe.Param()
	list := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array

	switch fe.Tag() {
	case "required":
		d.Msg, d.Type = "field required", "value_error.missing"
	case "min":
		if list {
			d.Msg, d.Type = fmt.Sprintf("ensure this value has at least %s items", param), "value_error.list.min_items"
		} else if fe.Kind() == reflect.String {
			d.Msg, d.Type = fmt.Sprintf("ensure this value has at least %s characters", param), "value_error.any_str.min_length"
		} else {
			d.Msg, d.Type = "ensure this value is greater than or equal to "+param, "value_error.number.not_ge"
		}
		d.Ctx = limit(param)
	case "max":
		if list {
			d.Msg, d.Type = fmt.Sprintf("ensure this value has at most %s items", param), "value_error.list.max_items"
		} else if fe.Kind() == reflect.String {
			d.Msg, d.Type = fmt.Sprintf("ensure this value has at most %s characters", param), "value_error.any_str.max_length"
		} else {
			d.Msg, d.Type = "ensure this value is less than or equal to "+param, "value_error.number.not_le"
		}
		d.Ctx = limit(param)
	case "gt":
		d.Msg, d.Type, d.Ctx = "ensure this value is greater than "+param, "value_error.number.not_gt", limit(param)
	case "gte":
		d.Msg, d.Type, d.Ctx = "ensure this value is greater than or equal to "+param, "value_error.number.not_ge", limit(param)
	case "lt":
		d.Msg, d.Type, d.Ctx = "ensure this value is less than "+param, "value_error.number.not_lt", limit(param)
	case "lte":
		d.Msg, d.Type, d.Ctx = "ensure this value is less than or equal to "+param, "value_error.number.not_le", limit(param)
	case "pattern":
		d.Msg = fmt.Sprintf("string does not match regex %q", param)
		d.Type = "value_error.str.regex"
		d.Ctx = map[string]any{"pattern": param}
	case "oneof":
		d.Msg = "unexpected value; permitted: " + strings.Join(strings.Fields(param), ", ")
		d.Type = "value_error.const"
	default:
		d.Msg = fmt.Sprintf("failed on the '%s' tag", fe.Tag())
		d.Type = "value_error." + fe.Tag()
	}
	return d
}

func limit(param string) map[string]any {
	if n, err := strconv.Atoi(param); err == nil {
		return map[string]any{"limit_value": n}
	}
	if f, err := strconv.ParseFloat(param, 64); err == nil {
		return map[string]any{"limit_value": f}
	}
	return map[string]any{"limit_value": param}
}

// splitNamespace turns "Top.query.name" or "Top.items[2].name" into a location
// without the top-level struct name.
func splitNamespace(ns string) []any {
	parts := strings.Split(ns, ".")
	if len(parts) > 0 {
		parts = parts[1:]
	}
	loc := make([]any, 0, len(parts))
	for _, part := range parts {
		for part != "" {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				loc = append(loc, part)
				break
			}
			if open > 0 {
				loc = append(loc, part[:open])
			}
			end := strings.IndexByte(part[open:], ']')
			if end < 0 {
				loc = append(loc, part[open:])
				break
			}
			idx := part[open+1 : open+end]
			if n, err := strconv.Atoi(idx); err == nil {
				loc = append(loc, n)
			} else {
				loc = append(loc, idx)
			}
			part = part[open+end+1:]
		}
	}
	return loc
}

func locString(loc []any) string {
	parts := make([]string, len(loc))
	for i, l := range loc {
		parts[i] = fmt.Sprint(l)
	}
	return strings.Join(parts, ".")
}
