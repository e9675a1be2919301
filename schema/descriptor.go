// Package schema describes the JSON documents the language model is asked to
// produce, renders them as prompt instructions, and checks candidate output
// against them.
package schema

import (
	"fmt"
	"strings"
)

type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeEnum    FieldType = "enum"
	TypeList    FieldType = "list"
	TypeObject  FieldType = "object"
)

func (t FieldType) known() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeEnum, TypeList, TypeObject:
		return true
	}
	return false
}

// Descriptor is one node of a schema tree. A list with Children holds
// objects; a list without Children holds values of ItemType.
type Descriptor struct {
	Name          string       `yaml:"name" json:"name"`
	Type          FieldType    `yaml:"type" json:"type"`
	Description   string       `yaml:"description,omitempty" json:"description,omitempty"`
	Required      bool         `yaml:"required,omitempty" json:"required,omitempty"`
	AllowedValues []string     `yaml:"allowed_values,omitempty" json:"allowed_values,omitempty"`
	Children      []Descriptor `yaml:"children,omitempty" json:"children,omitempty"`
	ItemType      FieldType    `yaml:"item_type,omitempty" json:"item_type,omitempty"`
	MinItems      *int         `yaml:"min_items,omitempty" json:"min_items,omitempty"`
	MaxItems      *int         `yaml:"max_items,omitempty" json:"max_items,omitempty"`
	RequiredWhen  *Condition   `yaml:"required_when,omitempty" json:"required_when,omitempty"`
}

// Condition holds when the sibling Field is a string equal to one of Values.
// A field required under a condition must be present and, for lists,
// non-empty.
type Condition struct {
	Field  string   `yaml:"field" json:"field"`
	Values []string `yaml:"values" json:"values"`
}

func (c Condition) matches(obj map[string]any) bool {
	s, ok := obj[c.Field].(string)
	if !ok {
		return false
	}
	for _, v := range c.Values {
		if s == v {
			return true
		}
	}
	return false
}

func (d Descriptor) Child(name string) (Descriptor, bool) {
	for _, c := range d.Children {
		if c.Name == name {
			return c, true
		}
	}
	return Descriptor{}, false
}

// Check reports descriptors that Validate could not apply.
func (d Descriptor) Check() error {
	return d.check("")
}

func (d Descriptor) check(path string) error {
	if path == "" {
		path = "(root)"
	}
	if !d.Type.known() {
		return fmt.Errorf("%s: unknown type %q", path, d.Type)
	}
	switch d.Type {
	case TypeEnum:
		if len(d.AllowedValues) == 0 {
			return fmt.Errorf("%s: enum without allowed_values", path)
		}
	case TypeList:
		if len(d.Children) == 0 {
			if !d.ItemType.known() || d.ItemType == TypeList || d.ItemType == TypeObject {
				return fmt.Errorf("%s: list needs children or a primitive item_type", path)
			}
			if d.ItemType == TypeEnum && len(d.AllowedValues) == 0 {
				return fmt.Errorf("%s: enum items without allowed_values", path)
			}
		}
	case TypeObject:
	default:
		if len(d.Children) > 0 {
			return fmt.Errorf("%s: %s field cannot have children", path, d.Type)
		}
	}
	if d.MinItems != nil && *d.MinItems < 0 {
		return fmt.Errorf("%s: negative min_items", path)
	}
	if d.MinItems != nil && d.MaxItems != nil && *d.MaxItems < *d.MinItems {
		return fmt.Errorf("%s: max_items below min_items", path)
	}

	seen := make(map[string]bool, len(d.Children))
	for _, c := range d.Children {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%s: child without a name", path)
		}
		if seen[c.Name] {
			return fmt.Errorf("%s: duplicate child %q", path, c.Name)
		}
		seen[c.Name] = true
		if err := checkCondition(d, c, path); err != nil {
			return err
		}
		if err := c.check(joinPath(pathOrEmpty(path), c.Name)); err != nil {
			return err
		}
	}
	return nil
}

func checkCondition(parent, c Descriptor, path string) error {
	if c.RequiredWhen == nil {
		return nil
	}
	cond := c.RequiredWhen
	if len(cond.Values) == 0 {
		return fmt.Errorf("%s: %s required_when without values", path, c.Name)
	}
	sibling, ok := parent.Child(cond.Field)
	if !ok || cond.Field == c.Name {
		return fmt.Errorf("%s: %s required_when refers to unknown sibling %q", path, c.Name, cond.Field)
	}
	if sibling.Type == TypeEnum {
		for _, v := range cond.Values {
			if !contains(sibling.AllowedValues, v) {
				return fmt.Errorf("%s: %s required_when value %q is not allowed for %s", path, c.Name, v, cond.Field)
			}
		}
	} else if sibling.Type != TypeString {
		return fmt.Errorf("%s: %s required_when needs a string or enum sibling, %s is %s", path, c.Name, cond.Field, sibling.Type)
	}
	return nil
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

func pathOrEmpty(path string) string {
	if path == "(root)" {
		return ""
	}
	return path
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func IntPtr(v int) *int {
	return &v
}
