package kv

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
)

func TestNewListHasPlaceholder(t *testing.T) {
	l := New()
	if l.Len() != 1 {
		t.Fatalf("expected one placeholder, got %d", l.Len())
	}
	e := l.Entries()[0]
	if !e.Blank() || !e.Enabled || e.ID == "" {
		t.Fatalf("unexpected placeholder %#v", e)
	}
	if len(l.Effective()) != 0 {
		t.Fatalf("placeholder must not be effective")
	}
}

func TestEditAutoGrowsOnLastRow(t *testing.T) {
	l := New()
	first := l.Entries()[0].ID

	if !l.Edit(first, FieldKey, "page") {
		t.Fatalf("edit failed")
	}
	if l.Len() != 2 {
		t.Fatalf("expected auto-grow to 2 entries, got %d", l.Len())
	}

	// editing a row that is not last never grows the list
	l.Edit(first, FieldValue, "1")
	if l.Len() != 2 {
		t.Fatalf("expected 2 entries after editing a middle row, got %d", l.Len())
	}

	// Update alone never grows
	last := l.Entries()[1].ID
	l.Update(last, FieldKey, "size")
	if l.Len() != 2 {
		t.Fatalf("Update must not append, got %d entries", l.Len())
	}
	l.AppendEmpty()
	if l.Len() != 3 || !l.Entries()[2].Blank() {
		t.Fatalf("AppendEmpty did not add a placeholder")
	}
}

func TestRemoveNeverEmpties(t *testing.T) {
	l := New()
	only := l.Entries()[0].ID
	if !l.Remove(only) {
		t.Fatalf("remove failed")
	}
	if l.Len() != 1 {
		t.Fatalf("expected list to keep one entry, got %d", l.Len())
	}
	if l.Entries()[0].ID == only {
		t.Fatalf("expected a fresh placeholder after removing the only entry")
	}
	if l.Remove("missing") {
		t.Fatalf("removing unknown id must report false")
	}
}

func TestEffectiveFiltersAndKeepsOrder(t *testing.T) {
	l := FromPairs(
		Pair{Key: "a", Value: "1"},
		Pair{Key: "", Value: "orphan"},
		Pair{Key: "b", Value: "2"},
		Pair{Key: "c", Value: "3"},
	)
	entries := l.Entries()
	l.SetEnabled(entries[2].ID, false)

	got := l.Effective()
	if len(got) != 2 {
		t.Fatalf("expected 2 effective entries, got %d", len(got))
	}
	if got[0].Key != "a" || got[1].Key != "c" {
		t.Fatalf("unexpected order %q, %q", got[0].Key, got[1].Key)
	}
}

func TestRandomMutationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := New()
	for i := 0; i < 500; i++ {
		entries := l.Entries()
		target := entries[rng.Intn(len(entries))].ID
		switch rng.Intn(5) {
		case 0:
			l.Remove(target)
		case 1:
			l.Edit(target, FieldKey, fmt.Sprintf("k%d", rng.Intn(3)))
		case 2:
			l.Edit(target, FieldValue, fmt.Sprintf("v%d", i))
		case 3:
			l.SetEnabled(target, rng.Intn(2) == 0)
		case 4:
			l.Edit(target, FieldKey, "")
		}
		if l.Len() < 1 {
			t.Fatalf("step %d: list became empty", i)
		}

		var want []string
		for _, e := range l.Entries() {
			if e.Enabled && e.Key != "" {
				want = append(want, e.ID)
			}
		}
		got := l.Effective()
		if len(got) != len(want) {
			t.Fatalf("step %d: effective mismatch %d vs %d", i, len(got), len(want))
		}
		for j := range got {
			if got[j].ID != want[j] {
				t.Fatalf("step %d: effective order mismatch at %d", i, j)
			}
		}
	}
}

func TestUpdateRejectsBadBool(t *testing.T) {
	l := New()
	id := l.Entries()[0].ID
	if l.Update(id, FieldEnabled, "maybe") {
		t.Fatalf("expected invalid bool to be rejected")
	}
	if !l.Update(id, FieldIsFile, "true") {
		t.Fatalf("expected isFile update to succeed")
	}
	if e, _ := l.Get(id); !e.IsFile {
		t.Fatalf("isFile not stored")
	}
}

func TestJSONRoundTripAssignsIDs(t *testing.T) {
	var l List
	if err := json.Unmarshal([]byte(`[{"key":"a","value":"1","enabled":true}]`), &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if l.Len() != 1 || l.Entries()[0].ID == "" {
		t.Fatalf("expected id to be assigned, got %#v", l.Entries())
	}

	var empty List
	if err := json.Unmarshal([]byte(`[]`), &empty); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if empty.Len() != 1 {
		t.Fatalf("empty json must still yield a placeholder")
	}
}

func TestParsePair(t *testing.T) {
	p := ParsePair(" Accept : text/plain ", ":")
	if p.Key != "Accept" || p.Value != "text/plain" {
		t.Fatalf("unexpected pair %#v", p)
	}
	p = ParsePair("q=a=b", "=")
	if p.Key != "q" || p.Value != "a=b" {
		t.Fatalf("expected value to keep later separators, got %#v", p)
	}
}
