package errdef

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeUnknown     Code = "unknown"
	CodeValidation  Code = "validation"
	CodeNetwork     Code = "network"
	CodeEncoding    Code = "encoding"
	CodePersistence Code = "persistence"
	CodeGeneration  Code = "generation"
	CodeSpecParse   Code = "spec_parse"
	CodeFilesystem  Code = "filesystem"
	CodeConfig      Code = "config"
)

// Error carries a classification code alongside a human readable message.
// The wrapped cause stays reachable through errors.Unwrap.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns nil when err is nil so call sites can wrap unconditionally.
func Wrap(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf reports the outermost code found in the chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// Message returns the text meant for users.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Label is the short category name shown in notices.
func Label(code Code) string {
	switch code {
	case CodeValidation:
		return "validation error"
	case CodeNetwork:
		return "network error"
	case CodeEncoding:
		return "encoding error"
	case CodePersistence:
		return "persistence error"
	case CodeGeneration:
		return "generation error"
	case CodeSpecParse:
		return "spec parse error"
	case CodeFilesystem:
		return "filesystem error"
	case CodeConfig:
		return "config error"
	default:
		return "error"
	}
}
