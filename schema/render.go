package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderFormatInstructions describes the JSON shape of root in plain text.
// Output depends only on the descriptor, so identical schemas give
// byte-identical instructions.
func RenderFormatInstructions(root Descriptor) string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object wrapped in <json></json> tags. ")
	b.WriteString("Do not add comments inside the JSON. Omit optional fields you cannot fill rather than inventing values.\n")
	if root.Description != "" {
		b.WriteString(root.Description)
		b.WriteString("\n")
	}
	b.WriteString("The JSON object has these fields:\n")
	renderChildren(&b, root.Children, 0)
	return b.String()
}

func renderChildren(b *strings.Builder, children []Descriptor, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, c := range children {
		fmt.Fprintf(b, "%s- %q (%s)", indent, c.Name, strings.Join(qualifiers(c), ", "))
		if c.Description != "" {
			b.WriteString(": ")
			b.WriteString(c.Description)
		}
		b.WriteString("\n")
		if len(c.Children) > 0 {
			if c.Type == TypeList {
				fmt.Fprintf(b, "%s  Each item is an object with:\n", indent)
			}
			renderChildren(b, c.Children, depth+1)
		}
	}
}

func qualifiers(d Descriptor) []string {
	var q []string
	switch d.Type {
	case TypeList:
		q = append(q, "list of "+itemName(d))
	case TypeEnum:
		q = append(q, "string")
	default:
		q = append(q, string(d.Type))
	}
	switch {
	case d.Required:
		q = append(q, "required")
	case d.RequiredWhen != nil:
		quoted := make([]string, len(d.RequiredWhen.Values))
		for i, v := range d.RequiredWhen.Values {
			quoted[i] = strconv.Quote(v)
		}
		q = append(q, fmt.Sprintf("required and non-empty when %q is %s", d.RequiredWhen.Field, strings.Join(quoted, " or ")))
	default:
		q = append(q, "optional")
	}
	if len(d.AllowedValues) > 0 {
		quoted := make([]string, len(d.AllowedValues))
		for i, v := range d.AllowedValues {
			quoted[i] = strconv.Quote(v)
		}
		q = append(q, "one of "+strings.Join(quoted, ", "))
	}
	if d.MinItems != nil {
		q = append(q, fmt.Sprintf("at least %d items", *d.MinItems))
	}
	if d.MaxItems != nil {
		q = append(q, fmt.Sprintf("at most %d items", *d.MaxItems))
	}
	return q
}

func itemName(d Descriptor) string {
	if len(d.Children) > 0 {
		return "objects"
	}
	if d.ItemType == TypeEnum {
		return "strings"
	}
	return string(d.ItemType) + "s"
}
