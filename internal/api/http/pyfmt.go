package http

import (
	"strconv"
	"strings"
)

// Helpers rendering values the way the tutorial's text responses show them.

const none = "None"

func optionalString(s *string) string {
	if s == nil {
		return none
	}
	return *s
}

func optionalInt(n *int) string {
	if n == nil {
		return none
	}
	return strconv.Itoa(*n)
}

func intList(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// quote renders s as a quoted literal: single quotes unless s contains one and no double quote.
func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}

func quoteOptional(s *string) string {
	if s == nil {
		return none
	}
	return quote(*s)
}

type modelField struct {
	name  string
	value string
}

// modelStr renders fields as "a=1 b='x'".
func modelStr(fields []modelField) string {
	return joinFields(fields, " ")
}

// modelRepr renders fields as "Name(a=1, b='x')".
func modelRepr(name string, fields []modelField) string {
	return name + "(" + joinFields(fields, ", ") + ")"
}

func joinFields(fields []modelField, sep string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.name + "=" + f.value
	}
	return strings.Join(parts, sep)
}

func reprList(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}
