package lfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// batchRequestBody is the wire form of a batch request. Pointers tell a
// missing field apart from a zero value.
type batchRequestBody struct {
	Operation *string       `json:"operation" validate:"required"`
	Objects   []*objectBody `json:"objects" validate:"required,dive,required"`
	Transfers []string      `json:"transfers"`
	Ref       *RefSpec      `json:"ref"`
}

type objectBody struct {
	Oid  *string `json:"oid" validate:"required"`
	Size *int64  `json:"size" validate:"required"`
}

// BatchFacade implements the batch endpoint on top of a LargeFileStorage. It
// holds no per-request state and is safe for concurrent use.
type BatchFacade struct {
	storage  LargeFileStorage
	validate *validator.Validate
}

func NewBatchFacade(storage LargeFileStorage) *BatchFacade {
	return &BatchFacade{
		storage:  storage,
		validate: validator.New(),
	}
}

// Process validates request and answers it. Protocol violations are returned
// as *HTTPError; any other error is an internal failure.
func (f *BatchFacade) Process(ctx context.Context, request HTTPRequest) (*HTTPResponse, error) {
	if request.Path != BatchPath || request.Method != http.MethodPost {
		return nil, ErrNotFound
	}

	if !strings.Contains(request.Headers.Get("Accept"), MediaType) {
		return nil, ErrNotAcceptable
	}

	batchRequest, err := f.ParseBatchRequest(request.Body)
	if err != nil {
		return nil, err
	}

	batchResponse, err := f.Batch(ctx, batchRequest)
	if err != nil {
		return nil, err
	}

	return &HTTPResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type": MediaType,
		},
		Body: batchResponse,
	}, nil
}

// ParseBatchRequest decodes a JSON batch request. Transfers default to basic
// when absent.
func (f *BatchFacade) ParseBatchRequest(body string) (*BatchRequest, error) {
	var wire batchRequestBody
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return nil, fmt.Errorf("decoding batch request: %w", err)
	}

	if err := f.validate.Struct(&wire); err != nil {
		return nil, fmt.Errorf("invalid batch request: %w", err)
	}

	batchRequest := &BatchRequest{
		Operation: *wire.Operation,
		Objects:   make([]ObjectLfs, 0, len(wire.Objects)),
		Transfers: wire.Transfers,
	}

	if batchRequest.Transfers == nil {
		batchRequest.Transfers = []string{TransferBasic}
	}

	if wire.Ref != nil && wire.Ref.Name != "" {
		batchRequest.Ref = &RefSpec{Name: wire.Ref.Name}
	}

	for _, object := range wire.Objects {
		batchRequest.Objects = append(batchRequest.Objects, ObjectLfs{
			Oid:  *object.Oid,
			Size: *object.Size,
		})
	}

	return batchRequest, nil
}

// Batch authorizes every object of request. Results keep the order of the
// requested objects and a failure of one object never affects another.
func (f *BatchFacade) Batch(ctx context.Context, request *BatchRequest) (*BatchResponse, error) {
	if !slices.Contains(request.Transfers, TransferBasic) {
		return nil, ErrUnprocessable
	}

	if request.Operation != OperationDownload && request.Operation != OperationUpload {
		return nil, ErrUnprocessable
	}

	objects := make([]*ObjectResult, 0, len(request.Objects))
	for _, object := range request.Objects {
		result, err := f.authorize(ctx, request.Operation, object)
		if err != nil {
			return nil, err
		}

		objects = append(objects, result)
	}

	return &BatchResponse{
		Transfer: TransferBasic,
		Objects:  objects,
	}, nil
}

func (f *BatchFacade) authorize(ctx context.Context, operation string, object ObjectLfs) (*ObjectResult, error) {
	result := &ObjectResult{
		Oid:           object.Oid,
		Size:          object.Size,
		Authenticated: true,
	}

	action, err := f.prepare(ctx, operation, object)

	var objectErr *ObjectError
	if errors.As(err, &objectErr) {
		result.Error = &ObjectError{Code: objectErr.Code, Message: objectErr.Message}
		return result, nil
	}

	if err != nil {
		return nil, fmt.Errorf("preparing %s of %s: %w", operation, object.Oid, err)
	}

	if action == nil {
		return nil, fmt.Errorf("storage returned no %s action for %s", operation, object.Oid)
	}

	result.Actions = map[string]*Action{
		operation: action,
	}

	return result, nil
}

func (f *BatchFacade) prepare(ctx context.Context, operation string, object ObjectLfs) (*Action, error) {
	if operation == OperationUpload {
		return f.storage.PrepareUpload(ctx, object.Oid, object.Size)
	}

	exists, err := f.storage.Exists(ctx, object.Oid)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, NewObjectNotFound()
	}

	return f.storage.PrepareDownload(ctx, object.Oid, object.Size)
}
