package handler

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"identity-service/backend/internal/identity/service"
	"identity-service/backend/internal/logging"
	"identity-service/backend/internal/server/interceptors"
)

const internalMessage = "internal error"

var kinds = []struct {
	kind   error
	code   codes.Code
	status int
}{
	{service.ErrInvalidArgument, codes.InvalidArgument, http.StatusBadRequest},
	{service.ErrConflict, codes.AlreadyExists, http.StatusConflict},
	{service.ErrUnauthorized, codes.Unauthenticated, http.StatusUnauthorized},
	{service.ErrForbidden, codes.PermissionDenied, http.StatusForbidden},
}

// classify returns the transport code and status for err. ok is false for internal errors,
// whose text must not reach the caller.
func classify(err error) (code codes.Code, httpStatus int, ok bool) {
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return k.code, k.status, true
		}
	}
	return codes.Internal, http.StatusInternalServerError, false
}

// logInternal logs err with the operation and request id.
func logInternal(ctx context.Context, logger *zap.Logger, op string, err error) {
	fields := []zap.Field{zap.String("operation", op)}
	if id, ok := interceptors.GetRequestID(ctx); ok {
		fields = append(fields, zap.String("request_id", id))
	}
	logging.LogError(logger, "auth request failed", err, fields...)
}

// toStatus converts a service error to a gRPC status error.
func toStatus(ctx context.Context, logger *zap.Logger, op string, err error) error {
	code, _, ok := classify(err)
	if !ok {
		logInternal(ctx, logger, op, err)
		return status.Error(codes.Internal, internalMessage)
	}
	return status.Error(code, err.Error())
}
