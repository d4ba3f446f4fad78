// Package kv holds the ordered key/value entry lists behind query params,
// headers and form fields.
package kv

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type Entry struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	IsFile      bool   `json:"isFile,omitempty"`
}

// Blank reports whether the entry is an unused placeholder row.
func (e Entry) Blank() bool {
	return e.Key == "" && e.Value == ""
}

// Effective reports whether the entry takes part in request construction.
func (e Entry) Effective() bool {
	return e.Enabled && e.Key != ""
}

type Field string

const (
	FieldKey         Field = "key"
	FieldValue       Field = "value"
	FieldDescription Field = "description"
	FieldEnabled     Field = "enabled"
	FieldIsFile      Field = "isFile"
)

// List is never empty. The zero value is not usable; use New or FromPairs.
type List struct {
	entries []Entry
	newID   func() string
}

func New() *List {
	l := &List{newID: uuid.NewString}
	l.entries = []Entry{l.blank()}
	return l
}

// Pair is a key/value used to seed a list.
type Pair struct {
	Key    string
	Value  string
	IsFile bool
}

// FromPairs builds an enabled entry per pair followed by a trailing placeholder.
func FromPairs(pairs ...Pair) *List {
	l := &List{newID: uuid.NewString}
	for _, p := range pairs {
		e := l.blank()
		e.Key = p.Key
		e.Value = p.Value
		e.IsFile = p.IsFile
		l.entries = append(l.entries, e)
	}
	l.entries = append(l.entries, l.blank())
	return l
}

// ParsePair splits "key=value" (or "key:value" when sep is ':').
func ParsePair(raw string, sep string) Pair {
	key, value, _ := strings.Cut(raw, sep)
	return Pair{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)}
}

func (l *List) blank() Entry {
	gen := l.newID
	if gen == nil {
		gen = uuid.NewString
	}
	return Entry{ID: gen(), Enabled: true}
}

func (l *List) Len() int {
	return len(l.entries)
}

func (l *List) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *List) Get(id string) (Entry, bool) {
	if idx := l.index(id); idx >= 0 {
		return l.entries[idx], true
	}
	return Entry{}, false
}

// AppendEmpty adds a fresh placeholder row and returns its id.
func (l *List) AppendEmpty() string {
	e := l.blank()
	l.entries = append(l.entries, e)
	return e.ID
}

// Update replaces one field of the entry with the given id. Boolean fields
// accept strconv.ParseBool input. It reports whether anything was changed.
func (l *List) Update(id string, field Field, value string) bool {
	idx := l.index(id)
	if idx < 0 {
		return false
	}
	e := &l.entries[idx]
	switch field {
	case FieldKey:
		e.Key = value
	case FieldValue:
		e.Value = value
	case FieldDescription:
		e.Description = value
	case FieldEnabled:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false
		}
		e.Enabled = b
	case FieldIsFile:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false
		}
		e.IsFile = b
	default:
		return false
	}
	return true
}

// Edit is Update plus the auto-grow policy: editing the last row so that it
// holds a key or value appends a new placeholder.
func (l *List) Edit(id string, field Field, value string) bool {
	if !l.Update(id, field, value) {
		return false
	}
	last := l.entries[len(l.entries)-1]
	if last.ID == id && !last.Blank() {
		l.AppendEmpty()
	}
	return true
}

func (l *List) SetEnabled(id string, enabled bool) bool {
	return l.Update(id, FieldEnabled, strconv.FormatBool(enabled))
}

func (l *List) SetIsFile(id string, isFile bool) bool {
	return l.Update(id, FieldIsFile, strconv.FormatBool(isFile))
}

// Remove deletes the entry wherever it sits. Removing the only entry leaves a
// fresh placeholder so the list never becomes empty.
func (l *List) Remove(id string) bool {
	idx := l.index(id)
	if idx < 0 {
		return false
	}
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	if len(l.entries) == 0 {
		l.entries = []Entry{l.blank()}
	}
	return true
}

// Effective returns enabled entries with a non-empty key in insertion order.
func (l *List) Effective() []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.Effective() {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns an independent copy sharing no backing storage.
func (l *List) Clone() *List {
	if l == nil {
		return New()
	}
	return &List{entries: l.Entries(), newID: l.newID}
}

func (l *List) index(id string) int {
	for i, e := range l.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (l *List) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.entries)
}

func (l *List) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	l.newID = uuid.NewString
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = l.newID()
		}
	}
	if len(entries) == 0 {
		entries = []Entry{l.blank()}
	}
	l.entries = entries
	return nil
}
