package errors

import "net/http"

const CodeForbidden = "forbidden"

// Forbidden reports an authenticated caller without authority over the
// resource.
func Forbidden(message string) *Exception {
	return &Exception{
		Code:       CodeForbidden,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func IsForbidden(err error) bool {
	return HasCode(err, CodeForbidden)
}
