package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the user facing status it produces.
type Kind string

const (
	KindInternal          Kind = "internal"
	KindInvalid           Kind = "invalid"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindMissingCredential Kind = "missing_credential"
	KindRemoteStore       Kind = "remote_store"
	KindCheckService      Kind = "check_service"
)

// Status is the HTTP status an error of this kind is reported with.
func (k Kind) Status() int {
	switch k {
	case KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindMissingCredential:
		return http.StatusPreconditionFailed
	case KindRemoteStore, KindCheckService:
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// Error represents a universal error type between the layers.
type Error struct {
	Kind    Kind
	Status  int
	Err     error // The error this wraps
	Details []Detail
}

type Detail struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s, details: %v", e.Kind, e.Status, e.Err, e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type transport struct {
	Message string   `json:"message"`
	Kind    Kind     `json:"kind"`
	Details []Detail `json:"details"`
	Status  int      `json:"status"`
}

func (s *Error) MarshalJSON() ([]byte, error) {
	var msg string
	if s.Err != nil {
		msg = s.Err.Error()
	}

	return json.Marshal(transport{
		Message: msg,
		Kind:    s.Kind,
		Details: s.Details,
		Status:  s.Status,
	})
}

func (s *Error) UnmarshalJSON(byts []byte) error {
	t := transport{}
	if err := json.Unmarshal(byts, &t); err != nil {
		return err
	}

	s.Err = errors.New(t.Message)
	s.Kind = t.Kind
	s.Details = t.Details
	s.Status = t.Status
	return nil
}

// E builds an [Error] from its arguments: a string or error for the cause, an
// int for the status, a [Kind], or details. The status defaults to the one of
// the kind.
func E(args ...any) *Error {
	ret := &Error{
		Kind:    KindInternal,
		Status:  0,
		Err:     nil,
		Details: nil,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case int:
			ret.Status = arg
		case Kind:
			ret.Kind = arg
		case Detail:
			ret.Details = append(ret.Details, arg)
		case []Detail:
			ret.Details = append(ret.Details, arg...)
		}
	}
	if ret.Status == 0 {
		ret.Status = ret.Kind.Status()
	}

	return ret
}

// KindOf returns the kind of the error, or [KindInternal] if it isn't an [Error].
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}
