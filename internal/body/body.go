// Package body encodes the selected body variant into a transmittable payload.
package body

import (
	"strings"

	"github.com/unkn0wn-root/commandpost/internal/kv"
)

type Type string

const (
	TypeNone       Type = "none"
	TypeRaw        Type = "raw"
	TypeFormData   Type = "form-data"
	TypeURLEncoded Type = "x-www-form-urlencoded"
)

const (
	ContentTypeMultipart  = "multipart/form-data"
	ContentTypeURLEncoded = "application/x-www-form-urlencoded"
)

func ParseType(raw string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none", "":
		return TypeNone, true
	case "raw", "json", "text":
		return TypeRaw, true
	case "form-data", "formdata", "multipart":
		return TypeFormData, true
	case "x-www-form-urlencoded", "urlencoded", "url-encoded", "form":
		return TypeURLEncoded, true
	default:
		return TypeNone, false
	}
}

// Spec keeps every variant so toggling Type never discards edits.
type Spec struct {
	Type       Type     `json:"type"`
	Raw        string   `json:"raw"`
	FormData   *kv.List `json:"formData,omitempty"`
	URLEncoded *kv.List `json:"urlEncoded,omitempty"`
}

// NewSpec returns a raw spec with empty form lists ready for editing.
func NewSpec() Spec {
	return Spec{Type: TypeRaw, FormData: kv.New(), URLEncoded: kv.New()}
}

// Field is one multipart field. Value is literal text or, when IsFile is
// set, a path the executor reads.
type Field struct {
	Key    string
	Value  string
	IsFile bool
}

type Encoded struct {
	Body        string
	FormData    []Field
	ContentType string
}

// Encode renders spec. The method is accepted but never gates the body, so a
// GET with a payload is sent as given.
func Encode(_ string, spec Spec) Encoded {
	switch spec.Type {
	case TypeRaw:
		return Encoded{Body: spec.Raw}
	case TypeFormData:
		return Encoded{
			FormData:    formFields(spec.FormData),
			ContentType: ContentTypeMultipart,
		}
	case TypeURLEncoded:
		var entries []kv.Entry
		if spec.URLEncoded != nil {
			entries = spec.URLEncoded.Effective()
		}
		return Encoded{
			Body:        kv.EncodePairs(entries),
			ContentType: ContentTypeURLEncoded,
		}
	default:
		return Encoded{}
	}
}

// Duplicate keys collapse onto the first position with the last value.
func formFields(list *kv.List) []Field {
	if list == nil {
		return nil
	}
	var fields []Field
	pos := make(map[string]int)
	for _, e := range list.Effective() {
		f := Field{Key: e.Key, Value: e.Value, IsFile: e.IsFile}
		if i, ok := pos[e.Key]; ok {
			fields[i] = f
			continue
		}
		pos[e.Key] = len(fields)
		fields = append(fields, f)
	}
	return fields
}
