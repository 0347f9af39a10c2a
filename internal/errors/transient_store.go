package errors

import "net/http"

const CodeTransientStore = "transient_store_error"

// TransientStore reports a retryable connectivity failure that survived the
// repository layer's backoff budget.
func TransientStore(message string) *Exception {
	return &Exception{
		Code:       CodeTransientStore,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
	}
}

func IsTransientStore(err error) bool {
	return HasCode(err, CodeTransientStore)
}
