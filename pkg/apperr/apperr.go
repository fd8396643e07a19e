// Package apperr defines the failure kinds shared by managers, controllers
// and the transport. A manager returns an *Error as a value; the channel bus
// turns it into the response envelope.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindValidation  Kind = "VALIDATION"
	KindNotFound    Kind = "NOT_FOUND"
	KindConflict    Kind = "CONFLICT"
	KindPersistence Kind = "PERSISTENCE"
	KindTransport   Kind = "TRANSPORT"
)

type Error struct {
	Kind     Kind
	Messages []string
	Err      error
}

func (e *Error) Error() string {
	msg := strings.Join(e.Messages, ", ")
	if e.Err != nil && msg == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Message joins the human-readable messages into the single line used for
// the envelope's error field.
func (e *Error) Message() string {
	return strings.Join(e.Messages, ", ")
}

func Validation(messages ...string) error {
	return &Error{Kind: KindValidation, Messages: messages}
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Messages: []string{message}}
}

func Conflict(message string) error {
	return &Error{Kind: KindConflict, Messages: []string{message}}
}

// Persistence wraps a store failure; the message is prefixed to err's text.
func Persistence(message string, err error) error {
	return &Error{
		Kind:     KindPersistence,
		Messages: []string{fmt.Sprintf("%s: %v", message, err)},
		Err:      err,
	}
}

func Transport(err error) error {
	return &Error{
		Kind:     KindTransport,
		Messages: []string{fmt.Sprintf("Erreur serveur: %v", err)},
		Err:      err,
	}
}

// As extracts the *Error from err's chain. Plain errors are reported as
// Transport failures.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Transport(err).(*Error)
}

func KindOf(err error) Kind {
	if e := As(err); e != nil {
		return e.Kind
	}
	return ""
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

func IsValidation(err error) bool { return KindOf(err) == KindValidation }

func IsConflict(err error) bool { return KindOf(err) == KindConflict }

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
