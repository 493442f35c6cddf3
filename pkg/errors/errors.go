// insurance-portal/pkg/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes shared by the payment core and the HTTP layer.
const (
	CodeConfig       = "CONFIG"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInvalidInput = "INVALID_INPUT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL"
)

type E struct {
	Code    string
	Message string
	Err     error
}

func (e E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e E) Unwrap() error { return e.Err }

func New(code, msg string) error {
	return E{Code: code, Message: msg}
}

func Wrap(code, msg string, err error) error {
	return E{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the first E in err's chain, or CodeInternal.
func CodeOf(err error) string {
	var e E
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the user-facing message of err. Errors that are not E
// never leak their text.
func MessageOf(err error) string {
	var e E
	if stderrors.As(err, &e) && e.Code != CodeInternal {
		return e.Message
	}
	return "internal server error"
}

func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
