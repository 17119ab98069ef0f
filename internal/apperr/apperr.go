package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Unexpected Kind = iota
	Validation
	AuthenticationRequired
	AuthorizationDenied
	NotFound
	Conflict
	Throttled
)

func (k Kind) Status() int {
	switch k {
	case Validation, Conflict:
		return http.StatusBadRequest
	case AuthenticationRequired:
		return http.StatusUnauthorized
	case AuthorizationDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Throttled:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case AuthenticationRequired:
		return "authentication_required"
	case AuthorizationDenied:
		return "authorization_denied"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Throttled:
		return "throttled"
	default:
		return "unexpected"
	}
}

type Code string

const (
	CodeMissingField         Code = "missing_field"
	CodeInvalidCatalog       Code = "invalid_catalog"
	CodeCatalogEntryNotFound Code = "catalog_entry_not_found"
	CodeDuplicateName        Code = "duplicate_name"
	CodeReferencedEntry      Code = "referenced_entry"
	CodeInvalidReference     Code = "invalid_reference"
	CodePersonNotFound       Code = "person_not_found"
	CodeTicketNotFound       Code = "ticket_not_found"
	CodeInvalidStatus        Code = "invalid_status"
	CodeInvalidRole          Code = "invalid_role"
	CodeInvalidInput         Code = "invalid_input"
	CodeSelfModification     Code = "self_modification"
	CodeDuplicateAccount     Code = "duplicate_account"
	CodeAccountNotFound      Code = "account_not_found"
	CodeInvalidCredentials   Code = "invalid_credentials"
	CodeRateLimited          Code = "rate_limited"
	CodeSequenceTaken        Code = "sequence_taken"
)

// Error is the error type every service returns for expected failures.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind and Code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

func New(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Invalid(code Code, format string, args ...any) *Error {
	return New(Validation, code, format, args...)
}

func Missing(field string) *Error {
	return &Error{Kind: Validation, Code: CodeMissingField, Message: "Falta campo " + field}
}

func Absent(code Code, format string, args ...any) *Error {
	return New(NotFound, code, format, args...)
}

func Duplicate(code Code, format string, args ...any) *Error {
	return New(Conflict, code, format, args...)
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: AuthenticationRequired, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: AuthorizationDenied, Message: msg}
}

func TooManyRequests(msg string) *Error {
	return &Error{Kind: Throttled, Code: CodeRateLimited, Message: msg}
}

// Wrap turns an unexpected failure into an *Error, keeping typed errors as they are.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: Unexpected, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
