package errors

import "net/http"

const CodeConflict = "conflict"

// Conflict reports a precondition invalidated by a concurrent writer, such
// as a lost accept race or a transition from a stale status.
func Conflict(message string) *Exception {
	return &Exception{
		Code:       CodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func IsConflict(err error) bool {
	return HasCode(err, CodeConflict)
}
