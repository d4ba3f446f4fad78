package errdef

import (
	"errors"
	"io"
	"testing"
)

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(CodeNetwork, io.ErrUnexpectedEOF, "perform request")
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if CodeOf(err) != CodeNetwork {
		t.Fatalf("expected network code, got %q", CodeOf(err))
	}
	if got := err.Error(); got != "perform request: unexpected EOF" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(CodePersistence, nil, "save"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIsWalksNestedCodes(t *testing.T) {
	inner := New(CodeValidation, "missing client id")
	outer := Wrap(CodePersistence, inner, "save environment")
	if !Is(outer, CodeValidation) {
		t.Fatalf("expected nested validation code to be found")
	}
	if !Is(outer, CodePersistence) {
		t.Fatalf("expected outer persistence code to be found")
	}
	if Is(outer, CodeNetwork) {
		t.Fatalf("did not expect network code")
	}
	if CodeOf(errors.New("plain")) != CodeUnknown {
		t.Fatalf("expected unknown code for plain errors")
	}
}
