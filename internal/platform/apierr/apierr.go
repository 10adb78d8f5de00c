package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure talking to the training API.
type Kind string

const (
	KindServerUnreachable Kind = "server_unreachable"
	KindNotFound          Kind = "not_found"
	KindGeneric           Kind = "generic"
)

const (
	MsgServerUnreachable = "Server is not responding. Please check if it is running."
	MsgNotFound          = "Resource not found."
	MsgUnknown           = "An unknown error occurred"
)

type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return MsgUnknown
}

func (e *Error) Unwrap() error { return e.Err }

// New keeps the status/code/err shape used by HTTP handlers.
func New(status int, code string, err error) *Error {
	kind := KindGeneric
	if status == http.StatusNotFound {
		kind = KindNotFound
	}
	e := &Error{Kind: kind, Status: status, Code: code, Err: err}
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// Unreachable wraps a transport failure (no HTTP status was received).
func Unreachable(err error) *Error {
	return &Error{
		Kind:    KindServerUnreachable,
		Code:    string(KindServerUnreachable),
		Message: MsgServerUnreachable,
		Err:     err,
	}
}

func NotFound() *Error {
	return &Error{
		Kind:    KindNotFound,
		Status:  http.StatusNotFound,
		Code:    string(KindNotFound),
		Message: MsgNotFound,
	}
}

func Generic(status int, message string) *Error {
	if message == "" {
		message = MsgUnknown
	}
	return &Error{Kind: KindGeneric, Status: status, Code: string(KindGeneric), Message: message}
}

// KindOf reports the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus picks the status a gateway should answer with when err came from upstream.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindServerUnreachable:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	}
	if e.Status >= 400 && e.Status < 500 {
		return e.Status
	}
	return http.StatusBadGateway
}
