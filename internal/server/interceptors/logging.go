package interceptors

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnary returns a unary server interceptor that logs each RPC with its code and duration.
// Internal, Unknown and Unavailable are logged at error level, other failures at warn.
// skipMethods is the set of full method names to not log (e.g. health checks).
func LoggingUnary(logger *zap.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		}
		if id, ok := GetRequestID(ctx); ok {
			fields = append(fields, zap.String("request_id", id))
		}
		if ip, ok := GetClientIP(ctx); ok {
			fields = append(fields, zap.String("client_ip", ip))
		}
		switch code {
		case codes.OK:
			logger.Info("grpc request", fields...)
		case codes.Internal, codes.Unknown, codes.Unavailable:
			logger.Error("grpc request", fields...)
		default:
			logger.Warn("grpc request", fields...)
		}
		return resp, err
	}
}
