// Package apperr carries typed application errors from services to the HTTP
// boundary. Each error has a Kind that decides the status code and a stable
// Code clients can switch on.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Kind string

const (
	KindNotFound   Kind = "NOT_FOUND"
	KindValidation Kind = "VALIDATION"
	KindConflict   Kind = "CONFLICT"
	KindInternal   Kind = "INTERNAL"
)

const (
	CodePatientNotFound         = "PATIENT_NOT_FOUND"
	CodePatientDuplicate        = "PATIENT_DUPLICATE"
	CodeOdontogramNotFound      = "ODONTOGRAM_NOT_FOUND"
	CodeOdontogramConflict      = "ODONTOGRAM_CONFLICT"
	CodeTransaction             = "TRANSACTION_ERROR"
	CodeAppointmentNotFound     = "APPOINTMENT_NOT_FOUND"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeFinalStatus             = "FINAL_STATUS"
	CodeAppointmentNotDeletable = "APPOINTMENT_NOT_DELETABLE"
	CodeInvalidFace             = "INVALID_FACE"
	CodePracticeNotFound        = "PRACTICE_NOT_FOUND"
	CodePracticeDuplicate       = "PRACTICE_DUPLICATE"
	CodePracticeInUse           = "PRACTICE_IN_USE"
	CodeInsurerNotFound         = "INSURER_NOT_FOUND"
	CodeInsurerDuplicate        = "INSURER_DUPLICATE"
	CodeLocalityNotFound        = "LOCALITY_NOT_FOUND"
	CodeValidation              = "VALIDATION"
	CodeInternal                = "INTERNAL"
)

// Error is an application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message}
}

// ValidationCode is a validation failure with a more specific code.
func ValidationCode(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Conflict(code, message string, err error) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message, Err: err}
}

func Internal(code, message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: code, Message: message, Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsNotFound(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindNotFound
}

// HasCode reports whether err carries an *Error with the given code.
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

func statusFor(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HTTPError converts err to an echo error with a {"code","message"} body.
// Internal errors and untyped errors get a generic message; their cause is
// kept as the echo Internal error for logging only.
func HTTPError(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he
	}

	appErr, ok := As(err)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, body(CodeInternal, "internal server error")).
			SetInternal(err)
	}

	status := statusFor(appErr.Kind)
	msg := appErr.Message
	if status == http.StatusInternalServerError && msg == "" {
		msg = "internal server error"
	}
	he := echo.NewHTTPError(status, body(appErr.Code, msg))
	if appErr.Err != nil {
		he = he.SetInternal(appErr.Err)
	}
	return he
}

func body(code, message string) map[string]string {
	return map[string]string{"code": code, "message": message}
}
