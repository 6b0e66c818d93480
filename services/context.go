package services

import "context"

type endpointKey struct{}

// WithEndpoint records the public base URL of the current request, used by
// backends that serve objects through this server.
func WithEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, endpointKey{}, endpoint)
}

func EndpointFromContext(ctx context.Context) string {
	endpoint, _ := ctx.Value(endpointKey{}).(string)
	return endpoint
}
