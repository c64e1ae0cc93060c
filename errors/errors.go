package errors

import (
	"encoding/json"
	"fmt"
)

type Code int

const (
	// Internal indicates an unclassified pipeline failure
	Internal Code = 500
	// Unavailable indicates a store/broker connectivity failure - callers are expected to crash & resume from checkpoint
	Unavailable Code = 503
	// NotFound indicates a missing entity, queue message or dispatcher
	NotFound Code = 404
	// Validation indicates a malformed payload or raw change event - not retryable
	Validation Code = 400
)

// Error is a coded pipeline error
type Error struct {
	Code     Code     `json:"code"`
	Messages []string `json:"messages"`
	Err      error    `json:"err,omitempty"`
}

// Error returns the Error as a json string
func (e *Error) Error() string {
	bits, _ := json.Marshal(e)
	return string(bits)
}

// Unwrap returns the underlying error(if any)
func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a new coded error
func New(code Code, msg string, args ...any) error {
	return &Error{
		Code:     code,
		Messages: []string{fmt.Sprintf(msg, args...)},
	}
}

// Wrap wraps the given error with a code and message. A nil error yields nil.
func Wrap(err error, code Code, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if ok {
		if msg != "" {
			e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
		}
		if code > 0 {
			e.Code = code
		}
		return e
	}
	e = &Error{
		Code: code,
		Err:  err,
	}
	if msg != "" {
		e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
	}
	return e
}

// Extract extracts the coded Error from the given error
func Extract(err error) *Error {
	e, ok := err.(*Error)
	if !ok {
		return &Error{
			Code: Internal,
			Err:  err,
		}
	}
	return e
}
