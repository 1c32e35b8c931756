// Package server assembles the gRPC and HTTP servers from the feature handlers.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "identity-service/backend/internal/health/handler"
	identityhandler "identity-service/backend/internal/identity/handler"
	"identity-service/backend/internal/server/interceptors"
)

// Deps holds the dependencies of the gRPC and HTTP handlers.
type Deps struct {
	// Auth serves AuthService. If nil, auth RPCs return Unimplemented and the HTTP auth routes are not mounted.
	Auth identityhandler.AuthAPI
	// HealthPinger is used for readiness (the unit of work's Ping). If nil, the DB check is skipped.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used for readiness (the OPA evaluator). If nil, the policy check is skipped.
	HealthPolicyChecker healthhandler.PolicyChecker
	Logger              *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// quietMethods are served but not request-logged.
var quietMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// RegisterServices registers the gRPC services with s.
//
//   - identity.v1.AuthService → internal/identity/handler
//   - grpc.health.v1.Health   → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	identityhandler.RegisterAuthServiceServer(s, identityhandler.NewAuthServer(deps.Auth, deps.logger()))
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(deps.HealthPinger, deps.HealthPolicyChecker))
}

// NewGRPCServer returns a server with OpenTelemetry instrumentation, the request, api key and
// logging interceptors, and every service registered. opts are appended to the defaults.
func NewGRPCServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.RequestUnary(),
			interceptors.APIKeyUnary(),
			interceptors.LoggingUnary(deps.logger(), quietMethods),
		),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterServices(s, deps)
	return s
}
