package chessdto

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the client-visible failure class.
type ErrorKind string

const (
	KindBadRequest   ErrorKind = "bad request"
	KindUnauthorized ErrorKind = "unauthorized"
	KindAlreadyTaken ErrorKind = "already taken"
	KindInvalidMove  ErrorKind = "invalid move"
	KindInternal     ErrorKind = "internal"
)

var (
	ErrBadRequest   = &DomainError{Kind: KindBadRequest}
	ErrUnauthorized = &DomainError{Kind: KindUnauthorized}
	ErrAlreadyTaken = &DomainError{Kind: KindAlreadyTaken}
	ErrInvalidMove  = &DomainError{Kind: KindInvalidMove}
	ErrInternal     = &DomainError{Kind: KindInternal}
)

// DomainError carries a kind for transport mapping plus an optional detail
// message and cause for logs. Two domain errors match under errors.Is when
// their kinds match.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return string(e.Kind) + ": " + e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Kind != "":
		return string(e.Kind)
	}
	return "chess service error"
}

func (e *DomainError) Unwrap() error { return e.Err }

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Kind == e.Kind
}

// Status maps the kind onto an HTTP status code.
func (e *DomainError) Status() int { return StatusOf(e.Kind) }

// PublicMessage is the text clients see; detail and cause stay server side.
func (e *DomainError) PublicMessage() string { return "Error: " + string(e.Kind) }

func StatusOf(kind ErrorKind) int {
	switch kind {
	case KindBadRequest, KindInvalidMove:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindAlreadyTaken:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func New(kind ErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

func Wrap(kind ErrorKind, err error) *DomainError {
	return &DomainError{Kind: kind, Err: err}
}

func Internal(err error) *DomainError { return Wrap(KindInternal, err) }

// AsDomain returns err as a domain error, classifying anything else as internal.
func AsDomain(err error) *DomainError {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return Internal(err)
}

// ErrorResponse is the JSON body of every failed HTTP call.
type ErrorResponse struct {
	Message string `json:"message"`
}

// ResponseError is what the client facade returns for a non-2xx response.
type ResponseError struct {
	Status  int
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("http status %d", e.Status)
}
