package server

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// IngestService is the health service name reported for the ingestion loop.
const IngestService = "sical.ingest"

// HealthServer exposes the standard gRPC health protocol and reflection.
// Both the overall ("") and IngestService statuses start NOT_SERVING.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	addr   string
	lis    net.Listener
	logger *slog.Logger
}

func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	grpcServer := grpc.NewServer()
	// Health service
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	s := &HealthServer{grpc: grpcServer, health: hs, addr: addr, logger: logger}
	s.SetServing(false)
	return s
}

// SetServing flips the overall and ingestion statuses.
func (s *HealthServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(IngestService, st)
	s.logger.Debug("health status", "status", st.String())
}

// Start listens on the configured address and serves in the background.
func (s *HealthServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.lis = lis
	s.logger.Info("gRPC health serving", "addr", lis.Addr().String())

	go func() {
		if err := s.grpc.Serve(lis); err != nil {
			s.logger.Error("grpc serve", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *HealthServer) Addr() string {
	if s.lis == nil {
		return s.addr
	}
	return s.lis.Addr().String()
}

// Stop reports NOT_SERVING to every watcher and stops the server gracefully.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.logger.Info("gRPC health stopped")
}
