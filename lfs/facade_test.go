package lfs

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStorage struct {
	objects     map[string]bool
	existsErr   error
	uploadErr   error
	existsCalls *[]string
}

func newMockStorage(oids ...string) mockStorage {
	m := mockStorage{
		objects:     make(map[string]bool),
		existsCalls: &[]string{},
	}
	for _, oid := range oids {
		m.objects[oid] = true
	}

	return m
}

func (m mockStorage) Exists(ctx context.Context, oid string) (bool, error) {
	*m.existsCalls = append(*m.existsCalls, oid)
	if m.existsErr != nil {
		return false, m.existsErr
	}

	return m.objects[oid], nil
}

func (m mockStorage) PrepareDownload(ctx context.Context, oid string, size int64) (*Action, error) {
	return &Action{Href: "https://storage.example.com/" + oid}, nil
}

func (m mockStorage) PrepareUpload(ctx context.Context, oid string, size int64) (*Action, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}

	return &Action{
		Href:   "https://storage.example.com/" + oid + "?upload",
		Header: map[string]string{"x-ms-blob-type": "BlockBlob"},
	}, nil
}

func batchHTTPRequest(body string) HTTPRequest {
	return HTTPRequest{
		Path:   BatchPath,
		Method: http.MethodPost,
		Headers: NewHeader(map[string]string{
			"Accept": "application/vnd.git-lfs+json; charset=utf-8",
		}),
		Body: body,
	}
}

func assertHTTPError(t *testing.T, err error, code int, message string) {
	t.Helper()

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr), "expected *HTTPError, got %v", err)
	assert.Equal(t, code, httpErr.Code)
	assert.Equal(t, message, httpErr.Message)
}

func TestBatchFacadeRouting(t *testing.T) {
	facade := NewBatchFacade(newMockStorage())

	t.Run("it should reject an unknown path", func(t *testing.T) {
		request := batchHTTPRequest(`{}`)
		request.Path = "/foo"

		_, err := facade.Process(context.TODO(), request)
		assertHTTPError(t, err, 404, "Not found")
	})

	t.Run("it should reject a method other than POST", func(t *testing.T) {
		request := batchHTTPRequest(`{}`)
		request.Method = http.MethodPut

		_, err := facade.Process(context.TODO(), request)
		assertHTTPError(t, err, 404, "Not found")
	})

	t.Run("it should check the route before the accept header", func(t *testing.T) {
		_, err := facade.Process(context.TODO(), HTTPRequest{Path: "/foo", Method: http.MethodGet})
		assertHTTPError(t, err, 404, "Not found")
	})

	t.Run("it should reject a non lfs accept header", func(t *testing.T) {
		request := batchHTTPRequest(`{}`)
		request.Headers = NewHeader(map[string]string{"Accept": "application/json"})

		_, err := facade.Process(context.TODO(), request)
		assertHTTPError(t, err, 406, "Not Acceptable")
	})

	t.Run("it should reject a missing accept header", func(t *testing.T) {
		request := batchHTTPRequest(`{}`)
		request.Headers = nil

		_, err := facade.Process(context.TODO(), request)
		assertHTTPError(t, err, 406, "Not Acceptable")
	})

	t.Run("it should look up the accept header case-insensitively", func(t *testing.T) {
		request := batchHTTPRequest(`{"operation":"upload","objects":[]}`)
		request.Headers = NewHeader(map[string]string{"ACCEPT": MediaType})

		response, err := facade.Process(context.TODO(), request)
		require.NoError(t, err)
		assert.Equal(t, 200, response.StatusCode)
	})
}

func TestBatchFacadeParsing(t *testing.T) {
	facade := NewBatchFacade(newMockStorage())

	t.Run("it should parse a full request", func(t *testing.T) {
		batchRequest, err := facade.ParseBatchRequest(`{
			"operation": "download",
			"transfers": ["lfs-standalone-file", "basic"],
			"ref": {"name": "refs/heads/master"},
			"objects": [{"oid": "12345678", "size": 123}]
		}`)
		require.NoError(t, err)

		assert.Equal(t, "download", batchRequest.Operation)
		assert.Equal(t, []string{"lfs-standalone-file", "basic"}, batchRequest.Transfers)
		require.NotNil(t, batchRequest.Ref)
		assert.Equal(t, "refs/heads/master", batchRequest.Ref.Name)
		assert.Equal(t, []ObjectLfs{{Oid: "12345678", Size: 123}}, batchRequest.Objects)
	})

	t.Run("it should default transfers to basic", func(t *testing.T) {
		batchRequest, err := facade.ParseBatchRequest(`{"operation":"download","objects":[]}`)
		require.NoError(t, err)

		assert.Equal(t, []string{"basic"}, batchRequest.Transfers)
		assert.Nil(t, batchRequest.Ref)
	})

	t.Run("it should fail on malformed json", func(t *testing.T) {
		_, err := facade.Process(context.TODO(), batchHTTPRequest(`{"operation":`))
		require.Error(t, err)

		code, message := StatusAndMessage(err)
		assert.Equal(t, 500, code)
		assert.Equal(t, "Internal Server Error", message)
	})

	t.Run("it should fail when operation is missing", func(t *testing.T) {
		_, err := facade.ParseBatchRequest(`{"objects":[{"oid":"1","size":1}]}`)
		require.Error(t, err)

		var httpErr *HTTPError
		assert.False(t, errors.As(err, &httpErr))
	})

	t.Run("it should fail when objects are missing", func(t *testing.T) {
		_, err := facade.ParseBatchRequest(`{"operation":"download"}`)
		assert.Error(t, err)
	})

	t.Run("it should fail when an object has no size", func(t *testing.T) {
		_, err := facade.ParseBatchRequest(`{"operation":"download","objects":[{"oid":"1"}]}`)
		assert.Error(t, err)
	})

	t.Run("it should accept a zero size", func(t *testing.T) {
		batchRequest, err := facade.ParseBatchRequest(`{"operation":"download","objects":[{"oid":"1","size":0}]}`)
		require.NoError(t, err)
		assert.Equal(t, int64(0), batchRequest.Objects[0].Size)
	})
}

func TestBatchFacadeUnprocessable(t *testing.T) {
	storage := newMockStorage("QaX1WsC2EdC3")
	facade := NewBatchFacade(storage)

	t.Run("it should reject requests without the basic transfer", func(t *testing.T) {
		_, err := facade.Process(context.TODO(), batchHTTPRequest(
			`{"operation":"download","transfers":["unknown"],"objects":[{"oid":"QaX1WsC2EdC3","size":123}]}`))
		assertHTTPError(t, err, 422, "Unprocessable Entity")
	})

	t.Run("it should reject an explicitly empty transfer list", func(t *testing.T) {
		_, err := facade.Process(context.TODO(), batchHTTPRequest(`{"operation":"download","transfers":[],"objects":[]}`))
		assertHTTPError(t, err, 422, "Unprocessable Entity")
	})

	t.Run("it should reject an unsupported operation", func(t *testing.T) {
		_, err := facade.Process(context.TODO(), batchHTTPRequest(
			`{"operation":"delete","objects":[{"oid":"QaX1WsC2EdC3","size":123}]}`))
		assertHTTPError(t, err, 422, "Unprocessable Entity")
	})

	t.Run("it should reject an unsupported operation with no objects", func(t *testing.T) {
		_, err := facade.Process(context.TODO(), batchHTTPRequest(`{"operation":"delete","objects":[]}`))
		assertHTTPError(t, err, 422, "Unprocessable Entity")
	})

	t.Run("it should not touch storage for a rejected request", func(t *testing.T) {
		*storage.existsCalls = []string{}

		_, err := facade.Process(context.TODO(), batchHTTPRequest(
			`{"operation":"delete","objects":[{"oid":"QaX1WsC2EdC3","size":123}]}`))
		require.Error(t, err)
		assert.Empty(t, *storage.existsCalls)
	})
}

func TestBatchFacadeDownload(t *testing.T) {
	t.Run("it should answer the documented download scenario", func(t *testing.T) {
		facade := NewBatchFacade(newMockStorage("12345678"))

		response, err := facade.Process(context.TODO(), batchHTTPRequest(
			`{"operation":"download","objects":[{"oid":"12345678","size":123}]}`))
		require.NoError(t, err)

		assert.Equal(t, 200, response.StatusCode)
		assert.Equal(t, map[string]string{"Content-Type": "application/vnd.git-lfs+json"}, response.Headers)

		b, err := Marshal(response.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"transfer":"basic","objects":[{"oid":"12345678","size":123,"authenticated":true,"actions":{"download":{"href":"https://storage.example.com/12345678"}}}]}`, string(b))
	})

	t.Run("it should report missing objects without failing the batch", func(t *testing.T) {
		storage := newMockStorage("A")
		facade := NewBatchFacade(storage)

		batchResponse, err := facade.Batch(context.TODO(), &BatchRequest{
			Operation: OperationDownload,
			Transfers: []string{TransferBasic},
			Objects:   []ObjectLfs{{Oid: "A", Size: 1}, {Oid: "B", Size: 2}},
		})
		require.NoError(t, err)
		require.Len(t, batchResponse.Objects, 2)

		assert.Equal(t, "A", batchResponse.Objects[0].Oid)
		assert.NotNil(t, batchResponse.Objects[0].Actions[OperationDownload])
		assert.Nil(t, batchResponse.Objects[0].Error)

		assert.Equal(t, "B", batchResponse.Objects[1].Oid)
		assert.True(t, batchResponse.Objects[1].Authenticated)
		assert.Nil(t, batchResponse.Objects[1].Actions)
		assert.Equal(t, &ObjectError{Code: 404, Message: "The object does not exist on the server"}, batchResponse.Objects[1].Error)

		assert.Equal(t, []string{"A", "B"}, *storage.existsCalls)

		b, err := Marshal(batchResponse)
		require.NoError(t, err)
		assert.Equal(t, `{"transfer":"basic","objects":[{"oid":"A","size":1,"authenticated":true,"actions":{"download":{"href":"https://storage.example.com/A"}}},{"oid":"B","size":2,"authenticated":true,"error":{"code":404,"message":"The object does not exist on the server"}}]}`, string(b))
	})

	t.Run("it should keep input order including duplicates", func(t *testing.T) {
		facade := NewBatchFacade(newMockStorage("x", "z"))

		objects := []ObjectLfs{{Oid: "z"}, {Oid: "y"}, {Oid: "x"}, {Oid: "z"}}
		batchResponse, err := facade.Batch(context.TODO(), &BatchRequest{
			Operation: OperationDownload,
			Transfers: []string{TransferBasic},
			Objects:   objects,
		})
		require.NoError(t, err)
		require.Len(t, batchResponse.Objects, len(objects))

		for i, object := range objects {
			assert.Equal(t, object.Oid, batchResponse.Objects[i].Oid)
		}
	})

	t.Run("it should answer identical requests identically", func(t *testing.T) {
		facade := NewBatchFacade(newMockStorage("A"))
		request := batchHTTPRequest(`{"operation":"download","objects":[{"oid":"A","size":1},{"oid":"B","size":2}]}`)

		first, err := facade.Process(context.TODO(), request)
		require.NoError(t, err)
		second, err := facade.Process(context.TODO(), request)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("it should abort the batch when storage fails", func(t *testing.T) {
		storage := newMockStorage("A")
		storage.existsErr = errors.New("connection reset")
		facade := NewBatchFacade(storage)

		_, err := facade.Process(context.TODO(), batchHTTPRequest(`{"operation":"download","objects":[{"oid":"A","size":1}]}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.existsErr)

		code, _ := StatusAndMessage(err)
		assert.Equal(t, 500, code)
	})
}

func TestBatchFacadeUpload(t *testing.T) {
	t.Run("it should prepare every object for upload", func(t *testing.T) {
		storage := newMockStorage()
		facade := NewBatchFacade(storage)

		batchResponse, err := facade.Batch(context.TODO(), &BatchRequest{
			Operation: OperationUpload,
			Transfers: []string{TransferBasic},
			Objects:   []ObjectLfs{{Oid: "QaX1WsC2EdC3", Size: 123}, {Oid: "MkP0NjI9BhU8", Size: 987}},
		})
		require.NoError(t, err)
		require.Len(t, batchResponse.Objects, 2)

		for _, object := range batchResponse.Objects {
			assert.True(t, object.Authenticated)
			assert.Nil(t, object.Error)
			require.NotNil(t, object.Actions[OperationUpload])
			assert.Nil(t, object.Actions[OperationDownload])
			assert.Equal(t, "BlockBlob", object.Actions[OperationUpload].Header["x-ms-blob-type"])
		}

		assert.Empty(t, *storage.existsCalls)
	})

	t.Run("it should fold an object error from storage into the object", func(t *testing.T) {
		storage := newMockStorage()
		storage.uploadErr = &ObjectError{Code: 422, Message: "Invalid object id"}
		facade := NewBatchFacade(storage)

		batchResponse, err := facade.Batch(context.TODO(), &BatchRequest{
			Operation: OperationUpload,
			Transfers: []string{TransferBasic},
			Objects:   []ObjectLfs{{Oid: "../etc", Size: 1}},
		})
		require.NoError(t, err)

		assert.Nil(t, batchResponse.Objects[0].Actions)
		assert.Equal(t, &ObjectError{Code: 422, Message: "Invalid object id"}, batchResponse.Objects[0].Error)
	})

	t.Run("it should abort the batch on other storage errors", func(t *testing.T) {
		storage := newMockStorage()
		storage.uploadErr = errors.New("signing failed")
		facade := NewBatchFacade(storage)

		_, err := facade.Batch(context.TODO(), &BatchRequest{
			Operation: OperationUpload,
			Transfers: []string{TransferBasic},
			Objects:   []ObjectLfs{{Oid: "A", Size: 1}},
		})
		assert.ErrorIs(t, err, storage.uploadErr)
	})
}
