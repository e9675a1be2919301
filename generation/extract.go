package generation

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	jsonTagPattern     = regexp.MustCompile(`(?s)<json>(.*)</json>`)
	jsonOpenTagPattern = regexp.MustCompile(`(?s)<json>(.*)<json>`)
	fencePattern       = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n(.*?)```")
	explainPattern     = regexp.MustCompile(`(?s)<explain>(.*)</explain>`)
	explanationPattern = regexp.MustCompile(`(?s)<explanation>(.*)</explanation>`)
)

// ExtractJSON pulls the JSON object out of a model response. It looks for a
// <json> tag first (models sometimes close it with a second <json>), then a
// fenced code block, then the outermost braces. Comments inside the JSON are
// tolerated.
func ExtractJSON(raw string) (map[string]any, string, error) {
	body := ""
	switch {
	case jsonTagPattern.MatchString(raw):
		body = jsonTagPattern.FindStringSubmatch(raw)[1]
	case jsonOpenTagPattern.MatchString(raw):
		body = jsonOpenTagPattern.FindStringSubmatch(raw)[1]
	case fencePattern.MatchString(raw):
		body = fencePattern.FindStringSubmatch(raw)[1]
	default:
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end < start {
			return nil, "", &ParseError{Reason: "no JSON block found"}
		}
		body = raw[start : end+1]
	}

	body = strings.TrimSpace(stripComments(body))
	if body == "" {
		return nil, "", &ParseError{Reason: "empty JSON block"}
	}

	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, "", &ParseError{Reason: err.Error()}
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, "", &ParseError{Reason: "top-level JSON value is not an object"}
	}
	return obj, extractExplanation(raw), nil
}

func extractExplanation(raw string) string {
	if m := explainPattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := explanationPattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// stripComments removes // and /* */ comments that sit outside strings.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 3
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
