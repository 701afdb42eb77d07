package grpc

import (
	"context"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is reported alongside the overall ("") status.
const ServiceName = "vidstream.Catalog"

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server exposes the standard gRPC health service, driven by database liveness.
type Server struct {
	db     Pinger
	health *health.Server
	srv    *grpc.Server
}

func NewServer(db Pinger) *Server {
	s := &Server{
		db:     db,
		health: health.NewServer(),
		srv:    grpc.NewServer(),
	}
	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)
	return s
}

// CheckDB pings the database and publishes the result; it returns the ping error.
func (s *Server) CheckDB(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	err := s.db.PingContext(ctx)
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return err
}

// Watch re-checks the database every interval until ctx ends.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.CheckDB(ctx); err != nil && ctx.Err() == nil {
			log.Printf("grpc health: database unavailable: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) Serve(lis net.Listener) error {
	log.Printf("gRPC health server listening on %s", lis.Addr())
	return s.srv.Serve(lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

// Health gives in-process access to the health service.
func (s *Server) Health() healthpb.HealthServer {
	return s.health
}
