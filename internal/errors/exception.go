package errors

import (
	"errors"
	"net/http"
)

// Exception carries a stable machine-readable code alongside the message and
// the HTTP status the boundary maps it to. Internal detail (SQL text, stack)
// never goes into Message.
type Exception struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *Exception) Error() string {
	return e.Message
}

const CodeInternal = "internal"

func StatusCode(err error) int {
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func Code(err error) string {
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func HasCode(err error, code string) bool {
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
