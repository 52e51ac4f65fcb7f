package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/nainya/metacatalog/internal/logger"
	"github.com/nainya/metacatalog/internal/metrics"
)

// GrpcMetricsInterceptor creates a gRPC interceptor for metrics and logging
func GrpcMetricsInterceptor(m *metrics.Metrics, log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)

		code := status.Code(err).String()
		if m != nil {
			m.RecordGrpcRequest(info.FullMethod, code, duration)
		}
		log.Debug().
			Str("method", info.FullMethod).
			Str("code", code).
			Dur("duration", duration).
			Msg("grpc request")
		return resp, err
	}
}

// HealthServer serves the standard gRPC health protocol for the service
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	log    *logger.Logger
}

// NewHealthServer creates a gRPC server carrying only the health service
func NewHealthServer(m *metrics.Metrics, log *logger.Logger) *HealthServer {
	log = log.Component("grpc")
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(GrpcMetricsInterceptor(m, log)))

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	// grpcurl / grpc_health_probe discovery
	reflection.Register(server)

	return &HealthServer{server: server, health: hs, log: log}
}

// SetServing flips the reported status of the whole server
func (h *HealthServer) SetServing(serving bool) {
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if !serving {
		st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", st)
}

// Serve blocks serving health checks on l until Shutdown
func (h *HealthServer) Serve(l net.Listener) error {
	h.log.Info().Str("addr", l.Addr().String()).Msg("grpc health endpoint available")
	if err := h.server.Serve(l); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc server failed: %w", err)
	}
	return nil
}

// Shutdown stops gracefully, forcing a stop when ctx ends first
func (h *HealthServer) Shutdown(ctx context.Context) error {
	h.health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		h.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		h.server.Stop()
		return fmt.Errorf("grpc shutdown cancelled: %w", ctx.Err())
	}
}
