// Package request assembles immutable request descriptors from the
// parameter, auth and body models.
package request

import (
	"encoding/json"
	"sort"

	"github.com/unkn0wn-root/commandpost/internal/body"
)

const DefaultTimeoutMs = 5000

// FormPart is the persisted shape of one form-data field.
type FormPart struct {
	Value  string `json:"value"`
	IsFile bool   `json:"isFile"`
}

// Data is the wire/JSON shape of a descriptor. It is a plain value that can
// be edited freely; Descriptor is the frozen form.
type Data struct {
	Method   string              `json:"method"`
	URL      string              `json:"url"`
	Headers  map[string]string   `json:"headers"`
	Body     string              `json:"body"`
	FormData map[string]FormPart `json:"formData"`
	Timeout  int                 `json:"timeout"`
}

// Descriptor is never mutated after construction. Accessors return copies.
type Descriptor struct {
	method    string
	url       string
	headers   map[string]string
	body      string
	form      []body.Field
	timeoutMs int
}

// FromData freezes d. Form fields are ordered by key since JSON objects carry
// no order. A non-nil FormData, even empty, marks a form-data request.
func FromData(d Data) Descriptor {
	desc := Descriptor{
		method:    d.Method,
		url:       d.URL,
		headers:   copyHeaders(d.Headers),
		body:      d.Body,
		timeoutMs: d.Timeout,
	}
	if d.FormData != nil {
		desc.form = make([]body.Field, 0, len(d.FormData))
		keys := make([]string, 0, len(d.FormData))
		for k := range d.FormData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			part := d.FormData[k]
			desc.form = append(desc.form, body.Field{Key: k, Value: part.Value, IsFile: part.IsFile})
		}
	}
	return desc
}

func (d Descriptor) Method() string    { return d.method }
func (d Descriptor) URL() string       { return d.url }
func (d Descriptor) Body() string      { return d.body }
func (d Descriptor) TimeoutMs() int    { return d.timeoutMs }
func (d Descriptor) HasFormData() bool { return d.form != nil }

func (d Descriptor) Headers() map[string]string {
	return copyHeaders(d.headers)
}

// Header returns the value stored under exactly name.
func (d Descriptor) Header(name string) (string, bool) {
	v, ok := d.headers[name]
	return v, ok
}

// FormFields returns form-data fields in encoder order.
func (d Descriptor) FormFields() []body.Field {
	if d.form == nil {
		return nil
	}
	out := make([]body.Field, len(d.form))
	copy(out, d.form)
	return out
}

func (d Descriptor) FormData() map[string]FormPart {
	if d.form == nil {
		return nil
	}
	out := make(map[string]FormPart, len(d.form))
	for _, f := range d.form {
		out[f.Key] = FormPart{Value: f.Value, IsFile: f.IsFile}
	}
	return out
}

func (d Descriptor) Data() Data {
	return Data{
		Method:   d.method,
		URL:      d.url,
		Headers:  d.Headers(),
		Body:     d.body,
		FormData: d.FormData(),
		Timeout:  d.timeoutMs,
	}
}

func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data())
}

func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var raw Data
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = FromData(raw)
	return nil
}

func copyHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
