// Package errors defines the error shape every API response uses.
package errors

import "net/http"

type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Response is the JSON body of a failed request.
type Response struct {
	Error *APIError `json:"error"`
}

// Body wraps e for rendering. A nil error renders as an internal error.
func (e *APIError) Body() Response {
	if e == nil {
		return Response{Error: Internal("")}
	}
	return Response{Error: e}
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, "internal_error", message)
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

// Conflict carries the current state in details so the client can resync.
func Conflict(code, message string, details interface{}) *APIError {
	err := New(http.StatusConflict, code, message)
	err.Details = details
	return err
}

func Unavailable(message string) *APIError {
	if message == "" {
		message = "service unavailable"
	}
	return New(http.StatusServiceUnavailable, "unavailable", message)
}
