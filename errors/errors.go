package errors

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// Code classifies an error by how the caller should treat it, not by where it
// came from. The taxonomy is small on purpose: expected failures in this kit
// are absorbed internally, so codes exist mainly for logs and assertions.
type Code int

const (
	CodeUnknown     Code = iota // unclassified failure
	CodeInvalid                 // caller supplied a bad argument or config
	CodeNotFound                // requested value is absent
	CodeCorrupt                 // persisted value could not be decoded
	CodeStorage                 // durable store read/write fault
	CodeUnreachable             // no usable network path
	CodeExpired                 // session or cached value past its deadline
	CodeExhausted               // retry budget spent
)

// String returns the code's stable label.
func (c Code) String() string {
	switch c {
	case CodeInvalid:
		return "invalid"
	case CodeNotFound:
		return "not_found"
	case CodeCorrupt:
		return "corrupt"
	case CodeStorage:
		return "storage"
	case CodeUnreachable:
		return "unreachable"
	case CodeExpired:
		return "expired"
	case CodeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a code, message, metadata and cause chain.
type Error struct {
	Code     Code              `json:"code"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	cause    error
}

// Error renders "code=..., message=..." with optional metadata and cause.
func (e *Error) Error() string {
	var msg strings.Builder

	msg.WriteString("code=")
	msg.WriteString(e.Code.String())
	msg.WriteString(", message=")
	msg.WriteString(e.Message)

	if len(e.Metadata) > 0 {
		msg.WriteString(", metadata={")
		first := true
		for k, v := range e.Metadata {
			if !first {
				msg.WriteString(", ")
			}
			msg.WriteString(k)
			msg.WriteByte('=')
			msg.WriteString(v)
			first = false
		}
		msg.WriteByte('}')
	}

	if e.cause != nil {
		msg.WriteString(", cause=")
		msg.WriteString(e.cause.Error())
	}

	return msg.String()
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether err is an *Error with the same code.
func (e *Error) Is(err error) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return e.Code == ke.Code
	}
	return false
}

// WithMetadata returns a copy of the error with the given metadata merged in.
func (e *Error) WithMetadata(m map[string]string) *Error {
	if len(m) == 0 {
		return e
	}

	err := e.clone()
	if err.Metadata == nil {
		err.Metadata = make(map[string]string, len(m))
	}
	maps.Copy(err.Metadata, m)
	return err
}

// WithCause returns a copy of the error with the given cause attached.
func (e *Error) WithCause(cause error) *Error {
	if cause == nil {
		return e
	}

	err := e.clone()
	err.cause = cause
	return err
}

func (e *Error) clone() *Error {
	var metadata map[string]string
	if len(e.Metadata) > 0 {
		metadata = make(map[string]string, len(e.Metadata))
		maps.Copy(metadata, e.Metadata)
	}

	return &Error{
		Code:     e.Code,
		Message:  e.Message,
		Metadata: metadata,
		cause:    e.cause,
	}
}

// GetCause returns the underlying cause of the error.
func (e *Error) GetCause() error {
	return e.cause
}

// New creates a new error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	var message string
	if len(args) == 0 {
		message = format
	} else {
		message = fmt.Sprintf(format, args...)
	}

	return &Error{
		Code:    code,
		Message: message,
	}
}

// FromError converts a generic error to *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	if ke, ok := err.(*Error); ok {
		return ke
	}

	return New(CodeUnknown, "%v", err)
}

// CodeOf returns the code carried by err, or CodeUnknown when err carries none.
func CodeOf(err error) Code {
	if err == nil {
		return CodeUnknown
	}

	var ke *Error
	if errors.As(err, &ke) {
		return ke.Code
	}
	return CodeUnknown
}

// Wrap wraps an error with additional context while preserving the chain.
// Returns nil if the input error is nil.
func Wrap(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}

	return New(code, format, args...).WithCause(err)
}
