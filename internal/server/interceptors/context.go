package interceptors

import "context"

type contextKey struct{ name string }

var (
	apiKeyKey    = contextKey{"api_key"}
	requestIDKey = contextKey{"request_id"}
	clientIPKey  = contextKey{"client_ip"}
)

// WithAPIKey returns a context carrying the caller's api key credential.
func WithAPIKey(ctx context.Context, apiKey string) context.Context {
	return context.WithValue(ctx, apiKeyKey, apiKey)
}

// GetAPIKey returns the api key from context and true if set; otherwise "", false.
func GetAPIKey(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(apiKeyKey).(string)
	return v, ok
}

// WithRequestID returns a context with the request id set.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request id from context and true if set; otherwise "", false.
func GetRequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	return v, ok
}

// WithClientIP returns a context with the resolved client ip set.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetClientIP returns the client ip from context and true if set; otherwise "", false.
func GetClientIP(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(clientIPKey).(string)
	return v, ok
}
