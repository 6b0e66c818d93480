package lfs

import (
	"fmt"
	"net/http"
	"time"
)

const (
	// MediaType is the media type of Git LFS batch requests and responses.
	MediaType = "application/vnd.git-lfs+json"

	// BatchPath is the path of the batch endpoint.
	BatchPath = "/objects/batch"

	// TransferBasic is the only transfer adapter supported.
	TransferBasic = "basic"

	OperationDownload = "download"
	OperationUpload   = "upload"
)

// HTTPRequest is the platform neutral view of an inbound request.
type HTTPRequest struct {
	Path       string
	Method     string
	Headers    Header
	Parameters map[string]string
	Body       string
}

// HTTPResponse is the platform neutral response produced by the facade.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       any
}

// BatchRequest represents a batch request payload.
//
// https://github.com/git-lfs/git-lfs/blob/main/docs/api/batch.md#requests
type BatchRequest struct {
	Operation string
	Objects   []ObjectLfs
	Transfers []string
	Ref       *RefSpec
}

// ObjectLfs identifies an object by its content hash and expected size.
type ObjectLfs struct {
	Oid  string `json:"oid"`
	Size int64  `json:"size"`
}

type RefSpec struct {
	Name string `json:"name"`
}

// BatchResponse represents a batch response payload.
//
// https://github.com/git-lfs/git-lfs/blob/main/docs/api/batch.md#successful-responses
type BatchResponse struct {
	Transfer string          `json:"transfer"`
	Objects  []*ObjectResult `json:"objects"`
}

// ObjectResult is the object item of a BatchResponse. Exactly one of Actions
// and Error is set.
type ObjectResult struct {
	Oid           string             `json:"oid"`
	Size          int64              `json:"size"`
	Authenticated bool               `json:"authenticated"`
	Actions       map[string]*Action `json:"actions"`
	Error         *ObjectError       `json:"error"`
}

// Action tells the client how to transfer one object directly to or from
// storage.
type Action struct {
	Href      string            `json:"href"`
	Header    map[string]string `json:"header"`
	ExpiresIn int               `json:"expires_in,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at"`
}

// ObjectError is a per-object failure embedded in a successful batch
// response. Storage backends may return one to fail a single object without
// aborting the batch.
type ObjectError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("object error %d: %s", e.Code, e.Message)
}

// HTTPError is a request level failure. Adapters render it with its own
// status code.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.Code, e.Message)
}

// ErrorResponse is the envelope of every non-200 response.
type ErrorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

var (
	ErrNotFound      = &HTTPError{Code: http.StatusNotFound, Message: "Not found"}
	ErrNotAcceptable = &HTTPError{Code: http.StatusNotAcceptable, Message: "Not Acceptable"}
	ErrUnprocessable = &HTTPError{Code: http.StatusUnprocessableEntity, Message: "Unprocessable Entity"}
)

const internalErrorMessage = "Internal Server Error"

// NewObjectNotFound returns the error reported for a download of a missing
// object.
func NewObjectNotFound() *ObjectError {
	return &ObjectError{Code: http.StatusNotFound, Message: "The object does not exist on the server"}
}
