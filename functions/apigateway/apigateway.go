// Package apigateway adapts the batch facade to AWS Lambda behind an API
// Gateway proxy integration.
//
// https://docs.aws.amazon.com/apigateway/latest/developerguide/set-up-lambda-proxy-integrations.html
package apigateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/vela-games/lfsserver/exporter"
	"github.com/vela-games/lfsserver/lfs"
)

type Handler struct {
	facade        *lfs.BatchFacade
	promCollector *exporter.LFSCollector
}

func NewHandler(storage lfs.LargeFileStorage) *Handler {
	return &Handler{
		facade:        lfs.NewBatchFacade(storage),
		promCollector: exporter.NewCollector(),
	}
}

// Handle is the Lambda entry point.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := requestID(ctx)
	logger := log.FromContext(ctx).With("request_id", requestID)
	logger.Debug("proxy request", "method", event.HTTPMethod, "path", event.Path)

	response, err := h.process(ctx, event)
	if err != nil {
		code, envelope := lfs.NewErrorResponse(err, requestID)
		if code == http.StatusInternalServerError {
			logger.Error("unexpected error", "err", err)
		}

		h.promCollector.ObserveBatch(code, nil)

		return render(code, map[string]string{"Content-Type": "application/json"}, envelope)
	}

	batchResponse, _ := response.Body.(*lfs.BatchResponse)
	h.promCollector.ObserveBatch(response.StatusCode, batchResponse)

	proxyResponse, err := render(response.StatusCode, response.Headers, response.Body)
	logger.Debug("proxy response", "code", proxyResponse.StatusCode)

	return proxyResponse, err
}

func (h *Handler) process(ctx context.Context, event events.APIGatewayProxyRequest) (*lfs.HTTPResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 body: %w", err)
		}
		body = string(decoded)
	}

	headers := make(lfs.Header, len(event.Headers)+len(event.MultiValueHeaders))
	for k, v := range event.MultiValueHeaders {
		headers.Set(k, strings.Join(v, ", "))
	}
	for k, v := range event.Headers {
		headers.Set(k, v)
	}

	return h.facade.Process(ctx, lfs.HTTPRequest{
		Path:       event.Path,
		Method:     event.HTTPMethod,
		Headers:    headers,
		Parameters: event.QueryStringParameters,
		Body:       body,
	})
}

func render(code int, headers map[string]string, body any) (events.APIGatewayProxyResponse, error) {
	data, err := lfs.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	return events.APIGatewayProxyResponse{
		StatusCode: code,
		Headers:    headers,
		Body:       string(data),
	}, nil
}

func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}

	return uuid.NewString()
}
