package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vela-games/lfsserver/exporter"
	"github.com/vela-games/lfsserver/lfs"
	"github.com/vela-games/lfsserver/services"
)

type LFSHandler struct {
	facade          *lfs.BatchFacade
	promCollector   *exporter.LFSCollector
	pathPrefix      string
	requestIDHeader string
}

// NewLFSHandler serves the batch endpoint. pathPrefix is stripped from
// request paths before routing and requestIDHeader, when set and present,
// supplies the request id instead of a random one.
func NewLFSHandler(storage lfs.LargeFileStorage, pathPrefix, requestIDHeader string) *LFSHandler {
	return &LFSHandler{
		facade:          lfs.NewBatchFacade(storage),
		promCollector:   exporter.NewCollector(),
		pathPrefix:      strings.TrimSuffix(pathPrefix, "/"),
		requestIDHeader: requestIDHeader,
	}
}

// PostBatch answers batch requests. It is also the fallback for unmatched
// routes so that they get the same error envelope.
func (l LFSHandler) PostBatch(c *gin.Context) {
	requestID := RequestID(c, l.requestIDHeader)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		l.abort(c, requestID, err)
		return
	}

	ctx := services.WithEndpoint(c.Request.Context(), BaseURL(c.Request, l.pathPrefix))

	response, err := l.facade.Process(ctx, lfs.HTTPRequest{
		Path:       l.path(c.Request.URL.Path),
		Method:     c.Request.Method,
		Headers:    lfs.HeaderFromHTTP(c.Request.Header),
		Parameters: parameters(c),
		Body:       string(body),
	})
	if err != nil {
		l.abort(c, requestID, err)
		return
	}

	data, err := lfs.Marshal(response.Body)
	if err != nil {
		l.abort(c, requestID, err)
		return
	}

	batchResponse, _ := response.Body.(*lfs.BatchResponse)
	l.promCollector.ObserveBatch(response.StatusCode, batchResponse)

	for k, v := range response.Headers {
		c.Header(k, v)
	}
	c.Data(response.StatusCode, response.Headers["Content-Type"], data)
}

// path strips the configured prefix. Paths outside the prefix map to "" so
// the facade rejects them.
func (l LFSHandler) path(p string) string {
	if l.pathPrefix == "" {
		return p
	}

	p, ok := strings.CutPrefix(p, l.pathPrefix)
	if !ok {
		return ""
	}

	return p
}

func (l LFSHandler) abort(c *gin.Context, requestID string, err error) {
	code := AbortWithError(c, requestID, err)
	l.promCollector.ObserveBatch(code, nil)
}

// AbortWithError renders err in the error envelope and returns the status
// code used. Internal errors are logged, never rendered.
func AbortWithError(c *gin.Context, requestID string, err error) int {
	code, response := lfs.NewErrorResponse(err, requestID)

	logger := log.FromContext(c.Request.Context()).With("request_id", requestID, "method", c.Request.Method, "path", c.Request.URL.Path)
	if code == http.StatusInternalServerError {
		logger.Error("unexpected error", "err", err)
	} else {
		logger.Debug("request rejected", "code", code, "err", err)
	}

	c.AbortWithStatusJSON(code, response)

	return code
}

// RequestID returns the value of header when set, or a new random id.
func RequestID(c *gin.Context, header string) string {
	if header != "" {
		if id := c.GetHeader(header); id != "" {
			return id
		}
	}

	return uuid.NewString()
}

// BaseURL is the public root URL of the server as seen by the client,
// ending in a slash.
func BaseURL(r *http.Request, pathPrefix string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}

	return scheme + "://" + r.Host + pathPrefix + "/"
}

func parameters(c *gin.Context) map[string]string {
	query := c.Request.URL.Query()
	params := make(map[string]string, len(query))
	for k := range query {
		params[k] = query.Get(k)
	}

	return params
}
