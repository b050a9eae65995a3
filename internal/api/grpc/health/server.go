package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/smart-cane/internal/logger"
)

// Overall is the service name that reports the device as a whole.
const Overall = ""

// Server tracks loop status and serves it over gRPC.
type Server struct {
	health *grpchealth.Server
	// mu protects services.
	mu       sync.Mutex
	services map[string]bool
}

// NewServer creates a status server with every service NOT_SERVING.
func NewServer(services ...string) *Server {
	s := &Server{
		health:   grpchealth.NewServer(),
		services: make(map[string]bool, len(services)),
	}

	for _, service := range services {
		s.SetServing(service, false)
	}

	return s
}

// SetServing updates one loop. The overall status is SERVING while any loop serves.
func (s *Server) SetServing(service string, serving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.services[service] = serving
	s.health.SetServingStatus(service, toStatus(serving))

	overall := false
	for _, up := range s.services {
		overall = overall || up
	}

	s.health.SetServingStatus(Overall, toStatus(overall))
}

// Check answers a health query without the network, for local callers.
func (s *Server) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	response, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}

	return response.GetStatus(), nil
}

// Serve listens on address and blocks until ctx is canceled or the server stops.
func (s *Server) Serve(ctx context.Context, address string) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	return s.ServeListener(ctx, lis)
}

// ServeListener serves on an existing listener until ctx is canceled.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, s.health)

	logger.InfoKV(ctx, "Status server listening", "listen_address", lis.Addr().String())

	// Done is closed after GracefulStop finishes so Serve returns only once
	// the server fully stopped.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Status server stopped")

	return nil
}

func toStatus(serving bool) healthpb.HealthCheckResponse_ServingStatus {
	if serving {
		return healthpb.HealthCheckResponse_SERVING
	}

	return healthpb.HealthCheckResponse_NOT_SERVING
}
