package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// APIKeyHeader is the metadata key (and, canonicalized, the HTTP header) carrying the api key.
const APIKeyHeader = "x-api-key"

// APIKeyUnary returns a unary server interceptor that copies the x-api-key metadata value into
// the context. It never rejects: the auth service decides what a missing or unknown key means.
func APIKeyUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if key := extractAPIKey(ctx); key != "" {
			ctx = WithAPIKey(ctx, key)
		}
		return handler(ctx, req)
	}
}

// extractAPIKey returns the api key from ctx metadata, or "" if missing.
func extractAPIKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(APIKeyHeader)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
