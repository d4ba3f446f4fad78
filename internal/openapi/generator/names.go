package generator

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/unkn0wn-root/commandpost/internal/openapi/model"
)

// staticSegments returns the path segments that are not templated, which
// become the command path.
func staticSegments(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		seg = strings.TrimSpace(seg)
		if seg == "" || strings.HasPrefix(seg, "{") {
			continue
		}
		if name := flagName(seg); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func actionVerb(method model.HTTPMethod) string {
	switch method {
	case model.MethodGet:
		return ""
	case model.MethodPost:
		return "create"
	case model.MethodPut:
		return "update"
	case model.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(string(method))
	}
}

func deriveRequestName(op model.Operation) string {
	if op.ID != "" {
		return op.ID
	}
	b := strings.Builder{}
	b.WriteString(strings.ToLower(string(op.Method)))
	for _, segment := range strings.Split(strings.Trim(op.Path, "/"), "/") {
		if clean := sanitizeSegmentForName(segment); clean != "" {
			b.WriteString(capitalize(clean))
		}
	}
	return b.String()
}

func sanitizeSegmentForName(segment string) string {
	segment = strings.Trim(segment, "{}")
	var builder strings.Builder
	for _, r := range segment {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(unicode.ToLower(r))
		}
	}
	return builder.String()
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// camelIdent turns a command word into an exported Go identifier fragment.
func camelIdent(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// kebab lowers camelCase words into a dash separated command name.
func kebab(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevLower = true
		default:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
			prevLower = false
		}
	}
	return strings.Trim(b.String(), "-")
}

// flagName keeps a parameter name recognisable while making it safe as a
// cobra flag or command word.
func flagName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('-')
	}
	return strings.Trim(b.String(), "-")
}

func defaultValue(p model.Parameter) string {
	if !p.Example.HasValue || p.Location == model.InPath {
		return ""
	}
	return stringifyExample(p.Example.Value)
}

func stringifyExample(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64, float32, int, int32, int64, uint, uint64, bool:
		return fmt.Sprint(v)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(data)
}

func composeDescription(summary, description string) string {
	summary = strings.TrimSpace(summary)
	description = strings.TrimSpace(description)
	switch {
	case summary == "":
		return description
	case description == "":
		return summary
	default:
		return summary + "\n\n" + description
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
