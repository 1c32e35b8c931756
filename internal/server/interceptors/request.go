package interceptors

import (
	"context"
	"net"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// RequestIDHeader is the metadata key a caller may use to propagate its own request id.
const RequestIDHeader = "x-request-id"

// maxRequestIDLen bounds caller-supplied ids before they reach the logs.
const maxRequestIDLen = 128

// RequestUnary returns a unary server interceptor that sets the request id (from x-request-id or
// a new uuid) and the client ip in the context, and echoes the request id in the response header.
func RequestUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDHeader); len(vals) > 0 {
				id = vals[0]
			}
		}
		id = NormalizeRequestID(id)
		ctx = WithRequestID(ctx, id)
		ctx = WithClientIP(ctx, ClientIP(ctx))
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))
		return handler(ctx, req)
	}
}

// NormalizeRequestID returns id trimmed, or a new uuid when id is empty or too long.
func NormalizeRequestID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxRequestIDLen {
		return uuid.NewString()
	}
	return id
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := FirstForwarded(vals[0]); s != "" {
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return HostOnly(p.Addr.String())
	}
	return "unknown"
}

// FirstForwarded returns the first address of an x-forwarded-for list.
func FirstForwarded(v string) string {
	s := strings.TrimSpace(v)
	if i := strings.Index(s, ","); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

// HostOnly strips the port from addr when it has one.
func HostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
