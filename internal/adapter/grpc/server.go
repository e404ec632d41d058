// Package grpc serves the gRPC health and reflection services used by
// orchestration probes.
package grpc

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/urbanestate/listing-service/internal/platform/logger"
)

// Server bundles the gRPC server with its health service.
type Server struct {
	*grpc.Server
	Health  *health.Server
	service string
	logger  *logger.Logger
}

// NewGRPCServer builds a server with tracing and request logging. Both the
// overall status and service report NOT_SERVING until SetServing is called.
func NewGRPCServer(service string, appLogger *logger.Logger) *Server {
	log := appLogger.Named("GRPCServer")
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(LoggingInterceptor(log)),
	)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &Server{Server: srv, Health: hs, service: service, logger: log}
	s.SetServing(false)
	return s
}

// SetServing updates the overall status and the service status.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.Health.SetServingStatus("", status)
	s.Health.SetServingStatus(s.service, status)
}

// WatchDependency pings on every tick and mirrors the result into the health
// status. It returns when ctx is done.
func (s *Server) WatchDependency(ctx context.Context, interval time.Duration, ping func(context.Context) error) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	check := func() bool {
		pctx, cancel := context.WithTimeout(ctx, interval/2+time.Second)
		defer cancel()
		if err := ping(pctx); err != nil {
			s.logger.Warn("dependency ping failed", zap.Error(err))
			return false
		}
		return true
	}

	serving := check()
	s.SetServing(serving)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := check()
			if ctx.Err() != nil {
				return
			}
			if now != serving {
				s.logger.Info("health status changed", zap.Bool("serving", now))
				serving = now
			}
			s.SetServing(serving)
		}
	}
}

// Shutdown marks the server NOT_SERVING and stops it gracefully.
func (s *Server) Shutdown() {
	s.Health.Shutdown()
	s.GracefulStop()
	s.logger.Info("gRPC server stopped")
}
