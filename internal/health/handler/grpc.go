package handler

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the auth service name clients may pass to Check alongside the empty server-wide name.
const ServiceName = "identity.v1.AuthService"

// checkTimeout bounds each dependency check so a hung database cannot hang the probe.
const checkTimeout = 2 * time.Second

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks that the policy engine can evaluate the active policy.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements grpc.health.v1.Health for readiness/liveness.
type Server struct {
	healthpb.UnimplementedHealthServer
	pinger Pinger
	policy PolicyChecker
}

// NewServer returns a Health server. Either check may be nil and is then skipped.
func NewServer(pinger Pinger, policy PolicyChecker) *Server {
	return &Server{pinger: pinger, policy: policy}
}

// Ready runs the dependency checks and returns the first failure.
func (s *Server) Ready(ctx context.Context) error {
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := s.pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if s.policy != nil {
		policyCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := s.policy.HealthCheck(policyCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("policy engine: %w", err)
		}
	}
	return nil
}

// Check reports SERVING when every dependency check passes and NOT_SERVING otherwise.
// Dependency failures are a status, not an RPC error.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", ServiceName:
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if err := s.Ready(ctx); err != nil {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
