package errors

import "net/http"

const CodeNotFound = "not_found"

func NotFound(message string) *Exception {
	return &Exception{
		Code:       CodeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}
