package command

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Kind names the type a schema field is coerced to. Using a Kind as a
// field's Default marks the field mandatory.
type Kind int

const (
	String Kind = iota
	Int
	Float
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	}

	return "string"
}

// Field declares one positional argument of a command.
//
// Default is either a concrete default value (its type fixes the
// coercion) or a Kind, which makes the field mandatory. If Choices is
// set, Choices[0] plays the role of Default and supplied values must be
// members of Choices.
type Field struct {
	Name    string
	Default any
	Choices []any
}

// ArgumentError reports a schema violation in a command's argument
// string. It is a value handlers turn into reply text, never a reason
// to abort dispatch.
type ArgumentError struct {
	Field string
	Msg   string
}

func (e *ArgumentError) Error() string {
	return e.Msg
}

// Args is the result of parsing an argument string against a schema.
type Args struct {
	// Raw is the original argument string.
	Raw string
	// Tail is the remaining text after the last declared field, if the
	// input held more tokens than the schema declares.
	Tail string

	values map[string]any
	parsed bool
}

// Parse re-parses against a schema. Parsing an already-parsed result
// returns it unchanged, so handlers may re-parse a result another
// handler built.
func (a *Args) Parse(schema []Field) (*Args, error) {
	if a.parsed {
		return a, nil
	}

	return ParseArgs(a.Raw, schema)
}

// Get returns the coerced value of a field, nil if unknown.
func (a *Args) Get(name string) any {
	return a.values[name]
}

// String returns a string field, "" if unknown or of another kind.
func (a *Args) String(name string) string {
	v, _ := a.values[name].(string)
	return v
}

// Int returns an int field, 0 if unknown or of another kind.
func (a *Args) Int(name string) int {
	v, _ := a.values[name].(int)
	return v
}

// Float returns a float field, 0 if unknown or of another kind.
func (a *Args) Float(name string) float64 {
	v, _ := a.values[name].(float64)
	return v
}

// ParseArgs splits raw on whitespace runs, assigns tokens positionally
// to the schema fields, coerces them, validates choice membership and
// fills in defaults. Text beyond the last declared field is preserved
// in Tail. Errors are always of type *ArgumentError.
func ParseArgs(raw string, schema []Field) (*Args, error) {
	out := &Args{
		Raw:    raw,
		values: make(map[string]any, len(schema)),
	}

	tokens, tail := splitTokens(raw, len(schema))
	out.Tail = tail

	for i, field := range schema {
		var token string
		var supplied bool
		if i < len(tokens) {
			token = tokens[i]
			supplied = true
		}

		val, err := field.resolve(token, supplied)
		if err != nil {
			return nil, err
		}
		out.values[field.Name] = val
	}

	out.parsed = true

	return out, nil
}

// resolve turns a raw token (or its absence) into the field's value.
func (f Field) resolve(token string, supplied bool) (any, error) {
	def := f.Default
	if len(f.Choices) > 0 {
		def = f.Choices[0]
	}

	kind := String
	mandatory := false
	switch v := def.(type) {
	case Kind:
		kind = v
		mandatory = true
	case string:
		kind = String
	case int:
		kind = Int
	case float64:
		kind = Float
	}

	if !supplied {
		if mandatory {
			return nil, &ArgumentError{
				Field: f.Name,
				Msg:   fmt.Sprintf("%s is a mandatory argument", f.Name),
			}
		}
		return def, nil
	}

	val, err := coerce(token, kind)
	if err != nil {
		return nil, &ArgumentError{
			Field: f.Name,
			Msg:   fmt.Sprintf("%s cannot be converted to %s", token, kind),
		}
	}

	if len(f.Choices) > 0 && !choiceAllowed(val, f.Choices) {
		return nil, &ArgumentError{
			Field: f.Name,
			Msg: fmt.Sprintf("%v is not a valid value for %s. Valid: %s",
				val, f.Name, choiceList(f.Choices)),
		}
	}

	return val, nil
}

func coerce(token string, kind Kind) (any, error) {
	switch kind {
	case Int:
		return strconv.Atoi(token)
	case Float:
		return strconv.ParseFloat(token, 64)
	}

	return token, nil
}

func choiceAllowed(val any, choices []any) bool {
	for _, c := range choices {
		if _, ok := c.(Kind); ok {
			continue
		}
		if c == val {
			return true
		}
	}

	return false
}

func choiceList(choices []any) string {
	parts := make([]string, 0, len(choices))
	for _, c := range choices {
		if _, ok := c.(Kind); ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%v", c))
	}

	return strings.Join(parts, ", ")
}

// splitTokens splits s on whitespace runs into at most max tokens and
// returns the trimmed remainder separately.
func splitTokens(s string, max int) ([]string, string) {
	tokens := make([]string, 0, max)
	rest := strings.TrimSpace(s)

	for len(tokens) < max && rest != "" {
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i < 0 {
			tokens = append(tokens, rest)
			rest = ""
			break
		}
		tokens = append(tokens, rest[:i])
		rest = strings.TrimLeftFunc(rest[i:], unicode.IsSpace)
	}

	return tokens, rest
}
