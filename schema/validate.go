package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FieldError is one structural mismatch at Path.
type FieldError struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Found    string `json:"found"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: expected %s, found %s", e.Path, e.Expected, e.Found)
}

type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	lines := make([]string, len(fe))
	for i, e := range fe {
		lines[i] = "- " + e.String()
	}
	return strings.Join(lines, "\n")
}

// Outcome is either Valid with a normalized Value or Invalid with Errors.
type Outcome struct {
	Valid  bool
	Value  map[string]any
	Errors FieldErrors
}

// Validate checks candidate against root. Candidate is a decoded JSON value
// (map[string]any, []any, string, float64, json.Number, bool, nil). It is
// never modified; the normalized Value is a deep copy with null fields
// dropped and numbers as float64.
func Validate(root Descriptor, candidate any) Outcome {
	v := &validator{}
	obj, ok := candidate.(map[string]any)
	if !ok {
		v.fail("(root)", "object", describe(candidate))
		return Outcome{Errors: v.errs}
	}
	normalized := v.object(root, "", obj)
	if len(v.errs) > 0 {
		return Outcome{Errors: v.errs}
	}
	return Outcome{Valid: true, Value: normalized}
}

type validator struct {
	errs FieldErrors
}

func (v *validator) fail(path, expected, found string) {
	v.errs = append(v.errs, FieldError{Path: path, Expected: expected, Found: found})
}

func (v *validator) object(d Descriptor, path string, obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))

	known := make(map[string]bool, len(d.Children))
	for _, child := range d.Children {
		known[child.Name] = true
		childPath := joinPath(path, child.Name)
		raw, present := obj[child.Name]
		conditional := child.RequiredWhen != nil && child.RequiredWhen.matches(obj)
		if !present || raw == nil {
			if child.Required {
				v.fail(childPath, expectation(child), "missing")
			} else if conditional {
				v.fail(childPath, conditionalExpectation(child), "missing")
			}
			continue
		}
		if conditional && child.Type == TypeList {
			if items, ok := raw.([]any); ok && len(items) == 0 {
				v.fail(childPath, conditionalExpectation(child), "0 items")
			}
		}
		if nv, ok := v.value(child, childPath, raw); ok {
			out[child.Name] = nv
		}
	}

	// Fields outside the schema are carried through untouched.
	extras := make([]string, 0)
	for k := range obj {
		if !known[k] {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	for _, k := range extras {
		if obj[k] != nil {
			out[k] = dropNulls(obj[k])
		}
	}

	if d.MinItems != nil && len(out) < *d.MinItems {
		v.fail(displayPath(path), fmt.Sprintf("min_items=%d", *d.MinItems), strconv.Itoa(len(out)))
	}
	return out
}

func (v *validator) value(d Descriptor, path string, raw any) (any, bool) {
	switch d.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			v.fail(path, "string", describe(raw))
			return nil, false
		}
		return s, true
	case TypeNumber:
		n, ok := toNumber(raw)
		if !ok {
			v.fail(path, "number", describe(raw))
			return nil, false
		}
		return n, true
	case TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			v.fail(path, "boolean", describe(raw))
			return nil, false
		}
		return b, true
	case TypeEnum:
		return v.enum(d.AllowedValues, path, raw)
	case TypeObject:
		obj, ok := raw.(map[string]any)
		if !ok {
			v.fail(path, "object", describe(raw))
			return nil, false
		}
		return v.object(d, path, obj), true
	case TypeList:
		return v.list(d, path, raw)
	}
	v.fail(path, string(d.Type), describe(raw))
	return nil, false
}

func (v *validator) enum(allowed []string, path string, raw any) (any, bool) {
	s, ok := raw.(string)
	if !ok {
		v.fail(path, enumExpectation(allowed), describe(raw))
		return nil, false
	}
	for _, a := range allowed {
		if s == a {
			return s, true
		}
	}
	v.fail(path, enumExpectation(allowed), strconv.Quote(s))
	return nil, false
}

func (v *validator) list(d Descriptor, path string, raw any) (any, bool) {
	items, ok := raw.([]any)
	if !ok {
		v.fail(path, "list", describe(raw))
		return nil, false
	}

	if d.MinItems != nil && len(items) < *d.MinItems {
		v.fail(path, fmt.Sprintf("min_items=%d", *d.MinItems), strconv.Itoa(len(items)))
	}
	if d.MaxItems != nil && len(items) > *d.MaxItems {
		v.fail(path, fmt.Sprintf("max_items=%d", *d.MaxItems), strconv.Itoa(len(items)))
	}

	out := make([]any, 0, len(items))
	for i, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if item == nil {
			v.fail(itemPath, itemExpectation(d), "null")
			continue
		}
		var (
			nv any
			ok bool
		)
		if len(d.Children) > 0 {
			obj, isObj := item.(map[string]any)
			if !isObj {
				v.fail(itemPath, "object", describe(item))
				continue
			}
			nv, ok = v.object(Descriptor{Children: d.Children}, itemPath, obj), true
		} else {
			nv, ok = v.value(Descriptor{Type: d.ItemType, AllowedValues: d.AllowedValues}, itemPath, item)
		}
		if ok {
			out = append(out, nv)
		}
	}
	return out, true
}

func toNumber(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func dropNulls(raw any) any {
	switch t := raw.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			if v != nil {
				out[k] = dropNulls(v)
			}
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, v := range t {
			if v != nil {
				out = append(out, dropNulls(v))
			}
		}
		return out
	}
	return raw
}

// describe names the JSON type of raw for error messages.
func describe(raw any) string {
	switch t := raw.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, json.Number:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", t)
	}
}

func expectation(d Descriptor) string {
	switch d.Type {
	case TypeEnum:
		return enumExpectation(d.AllowedValues)
	case TypeList:
		return "list of " + itemExpectation(d)
	}
	return string(d.Type)
}

func conditionalExpectation(d Descriptor) string {
	e := expectation(d)
	if d.Type == TypeList {
		e = "non-empty " + e
	}
	return fmt.Sprintf("%s when %s is %s", e, d.RequiredWhen.Field, enumExpectation(d.RequiredWhen.Values))
}

func itemExpectation(d Descriptor) string {
	if len(d.Children) > 0 {
		return "object"
	}
	if d.ItemType == TypeEnum {
		return enumExpectation(d.AllowedValues)
	}
	return string(d.ItemType)
}

func enumExpectation(allowed []string) string {
	quoted := make([]string, len(allowed))
	for i, a := range allowed {
		quoted[i] = strconv.Quote(a)
	}
	return "one of [" + strings.Join(quoted, ", ") + "]"
}

func displayPath(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}
