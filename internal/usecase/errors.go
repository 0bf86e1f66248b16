package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// エラーの種類。HTTPErrorがどれか1つをラップする
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrSignatureInvalid = errors.New("invalid signature")
	ErrAmountMismatch   = errors.New("amount mismatch")
	ErrDuplicateEvent   = errors.New("duplicate event")
	ErrForbidden        = errors.New("forbidden")
	ErrValidation       = errors.New("validation error")
	ErrProvider         = errors.New("provider error")
	ErrInternal         = errors.New("internal error")
)

type HTTPError struct {
	Status   int
	Code     string
	Message  string
	Metadata map[string]interface{}

	kind  error
	cause error
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// errors.Is(err, ErrNotFound) のように種類で判定できる
func (e *HTTPError) Is(target error) bool {
	return e.kind != nil && target == e.kind
}

func (e *HTTPError) Unwrap() error {
	return e.cause
}

// 原因（DBエラーなど）。devのときだけレスポンスに出す
func (e *HTTPError) Cause() error {
	return e.cause
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		kind:    kindForStatus(status),
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func newKindError(kind error, status int, code string, message string) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, kind: kind}
}

func (e *HTTPError) withCause(err error) *HTTPError {
	e.cause = err
	return e
}

func (e *HTTPError) withMeta(meta map[string]interface{}) *HTTPError {
	e.Metadata = meta
	return e
}

func configurationError(code string, message string) *HTTPError {
	return newKindError(ErrConfiguration, http.StatusInternalServerError, code, message)
}

func notFoundError(message string) *HTTPError {
	return newKindError(ErrNotFound, http.StatusNotFound, "NOT_FOUND", message)
}

func invalidStateError(status int, message string) *HTTPError {
	return newKindError(ErrInvalidState, status, "INVALID_STATE", message)
}

func signatureError(message string) *HTTPError {
	return newKindError(ErrSignatureInvalid, http.StatusBadRequest, "INVALID_SIGNATURE", message)
}

func amountMismatchError(message string) *HTTPError {
	return newKindError(ErrAmountMismatch, http.StatusBadRequest, "AMOUNT_MISMATCH", message)
}

func forbiddenError(message string) *HTTPError {
	return newKindError(ErrForbidden, http.StatusForbidden, "FORBIDDEN", message)
}

func validationError(message string) *HTTPError {
	return newKindError(ErrValidation, http.StatusUnprocessableEntity, "VALIDATION_ERROR", message)
}

func providerError(message string, cause error) *HTTPError {
	return newKindError(ErrProvider, http.StatusBadGateway, "PROVIDER_ERROR", message).withCause(cause)
}

func dbError(cause error) *HTTPError {
	return newKindError(ErrInternal, http.StatusInternalServerError, "DB_ERROR", "db error").withCause(cause)
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusBadGateway:
		return ErrProvider
	case http.StatusInternalServerError:
		return ErrInternal
	}
	return nil
}
