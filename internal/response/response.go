// Package response holds the normalized response shape and the helpers used
// to render it.
package response

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/alecthomas/chroma/quick"
	"github.com/aymanbagabas/go-udiff"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

// Descriptor is what the executor hands back for every completed round
// trip, whatever the status code.
type Descriptor struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	ElapsedMs  int64             `json:"timeMs"`
	SizeBytes  int64             `json:"size"`
}

const DefaultStyle = "monokai"

// Header looks name up case-insensitively.
func (d Descriptor) Header(name string) string {
	if v, ok := d.Headers[name]; ok {
		return v
	}
	for k, v := range d.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// IsJSON reports whether the body should be treated as JSON.
func IsJSON(headers map[string]string, body string) bool {
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") && strings.Contains(strings.ToLower(v), "application/json") {
			return true
		}
	}
	trimmed := strings.TrimSpace(body)
	if len(trimmed) < 2 {
		return false
	}
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	return (first == '{' && last == '}') || (first == '[' && last == ']')
}

// Pretty re-indents a JSON document with two spaces.
func Pretty(body string) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(body), "", "  "); err != nil {
		return "", errdef.Wrap(errdef.CodeEncoding, err, "pretty print json")
	}
	return buf.String(), nil
}

// Format returns the display text for d: indented JSON when possible, the
// raw body otherwise.
func Format(d Descriptor) string {
	if !IsJSON(d.Headers, d.Body) {
		return d.Body
	}
	pretty, err := Pretty(d.Body)
	if err != nil {
		return d.Body
	}
	return pretty
}

// Lexer picks a chroma lexer name from the content type.
func Lexer(d Descriptor) string {
	ct := strings.ToLower(d.Header("Content-Type"))
	switch {
	case IsJSON(d.Headers, d.Body):
		return "json"
	case strings.Contains(ct, "html"):
		return "html"
	case strings.Contains(ct, "xml"):
		return "xml"
	case strings.Contains(ct, "yaml"):
		return "yaml"
	default:
		return "plaintext"
	}
}

// Highlight writes text coloured for a 256-colour terminal.
func Highlight(w io.Writer, text, lexer, style string) error {
	if style == "" {
		style = DefaultStyle
	}
	if err := quick.Highlight(w, text, lexer, "terminal256", style); err != nil {
		return errdef.Wrap(errdef.CodeEncoding, err, "highlight %s", lexer)
	}
	return nil
}

// Diff renders a unified diff between two bodies. Equal inputs give "".
func Diff(leftLabel, rightLabel, left, right string) string {
	return udiff.Unified(leftLabel, rightLabel, left, right)
}
