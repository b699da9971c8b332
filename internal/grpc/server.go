package grpcserver

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"sprayDispatch/internal/auth"
)

const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthWatchMethod = "/grpc.health.v1.Health/Watch"
)

// PublicMethods bypass authentication.
var PublicMethods = []string{healthCheckMethod, healthWatchMethod, MethodRequestOTP, MethodVerifyOTP}

// NewGRPCServer builds a server with logging and auth interceptors and
// registers DispatchService and the health service on it.
func NewGRPCServer(svc *Server, log *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if svc == nil {
		panic("dispatch service is required")
	}
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			NewUnaryLoggingInterceptor(log),
			auth.NewUnaryAuthInterceptor(svc.Secret, PublicMethods...),
		),
		grpc.ChainStreamInterceptor(
			NewStreamLoggingInterceptor(log),
			auth.NewStreamAuthInterceptor(svc.Secret, PublicMethods...),
		),
	}, opts...)
	srv := grpc.NewServer(opts...)
	RegisterDispatchServiceServer(srv, svc)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// StartGRPC serves srv on addr in the background and returns a shutdown function.
func StartGRPC(addr string, srv *grpc.Server) (func(context.Context) error, error) {
	if addr == "" {
		addr = ":50051"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	go func() { _ = srv.Serve(lis) }()

	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}, nil
}
