// Package prompt fills instruction templates with request variables.
//
// Templates use {name} placeholders. Literal braces are written {{ and }}.
// A brace that does not open a well-formed placeholder is copied as is.
package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// FormatInstructionsVar is always bound to the schema's format instructions.
const FormatInstructionsVar = "format_instructions"

var ErrMissingVariable = errors.New("missing template variable")

type MissingVariableError struct {
	Names []string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variable(s): %s", strings.Join(e.Names, ", "))
}

func (e *MissingVariableError) Is(target error) bool {
	return target == ErrMissingVariable
}

// Assemble substitutes every placeholder in template. It fails without
// producing a prompt if any placeholder has no value in vars.
func Assemble(template string, vars map[string]string, formatInstructions string) (string, error) {
	lookup := func(name string) (string, bool) {
		if name == FormatInstructionsVar {
			if v, ok := vars[name]; ok {
				return v, true
			}
			return formatInstructions, true
		}
		v, ok := vars[name]
		return v, ok
	}

	var (
		b       strings.Builder
		missing []string
		seen    = map[string]bool{}
	)
	b.Grow(len(template))

	for i := 0; i < len(template); {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			b.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			b.WriteByte('}')
			i += 2
		case c == '{':
			name, end, ok := placeholderAt(template, i)
			if !ok {
				b.WriteByte(c)
				i++
				continue
			}
			if v, found := lookup(name); found {
				b.WriteString(v)
			} else if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
			i = end
		default:
			b.WriteByte(c)
			i++
		}
	}

	if len(missing) > 0 {
		return "", &MissingVariableError{Names: missing}
	}
	return b.String(), nil
}

// Variables lists the placeholder names of template in order of first use.
func Variables(template string) []string {
	var names []string
	seen := map[string]bool{}
	for i := 0; i < len(template); i++ {
		if template[i] != '{' {
			continue
		}
		if i+1 < len(template) && template[i+1] == '{' {
			i++
			continue
		}
		if name, end, ok := placeholderAt(template, i); ok {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			i = end - 1
		}
	}
	return names
}

// placeholderAt parses "{name}" starting at template[start].
func placeholderAt(template string, start int) (name string, end int, ok bool) {
	j := start + 1
	for j < len(template) && isNameByte(template[j], j == start+1) {
		j++
	}
	if j == start+1 || j >= len(template) || template[j] != '}' {
		return "", 0, false
	}
	return template[start+1 : j], j + 1, true
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
