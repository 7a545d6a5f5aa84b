package errors

import "net/http"

type HTTPError struct {
	Code       int
	Message    string
	StatusCode int
}

func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

// WithStatus returns a copy answering with statusCode instead of 400.
func (e *HTTPError) WithStatus(statusCode int) *HTTPError {
	cp := *e
	cp.StatusCode = statusCode
	return &cp
}

func (e HTTPError) Error() string {
	return e.Message
}

var (
	ErrUnauthorized = NewHTTPError(401, "Unauthorized").WithStatus(http.StatusUnauthorized)
	ErrRateLimited  = NewHTTPError(429, "Too many requests").WithStatus(http.StatusTooManyRequests)
)
