package errors

import "net/http"

const CodeValidation = "validation_error"

// Validation reports malformed input or a rule violated before any state was
// touched.
func Validation(message string) *Exception {
	return &Exception{
		Code:       CodeValidation,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func IsValidation(err error) bool {
	return HasCode(err, CodeValidation)
}
