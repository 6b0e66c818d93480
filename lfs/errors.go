package lfs

import (
	"errors"
	"net/http"
)

// StatusAndMessage maps err onto the status code and message rendered to the
// client. Anything other than an *HTTPError is an internal error whose detail
// must not leak.
func StatusAndMessage(err error) (int, string) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, httpErr.Message
	}

	return http.StatusInternalServerError, internalErrorMessage
}

// NewErrorResponse builds the error envelope for err.
func NewErrorResponse(err error, requestID string) (int, ErrorResponse) {
	code, message := StatusAndMessage(err)

	return code, ErrorResponse{
		Message:   message,
		RequestID: requestID,
	}
}
