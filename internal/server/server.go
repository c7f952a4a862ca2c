// Package server runs the HTTP front door and, optionally, a gRPC listener
// exposing the standard health service fed by the dashboard's health checks.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/metorial/minidash/internal/api"
	"github.com/metorial/minidash/internal/config"
)

// Backend is what the server exposes: the HTTP handler and the health
// aggregation it republishes over gRPC.
type Backend interface {
	Handler() http.Handler
	Health(ctx context.Context) api.HealthReport
}

type Server struct {
	addr           string
	grpcPort       int
	healthInterval time.Duration
	backend        Backend
	logger         *zap.Logger

	httpServer   *http.Server
	grpcServer   *grpc.Server
	healthServer *health.Server
}

func New(cfg *config.Config, backend Backend, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		addr:           cfg.Addr(),
		grpcPort:       cfg.Server.GRPCPort,
		healthInterval: cfg.Server.HealthInterval.Duration,
		backend:        backend,
		logger:         logger.With(zap.String("component", "server")),
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      backend.Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		grpcServer:   grpcServer,
		healthServer: healthServer,
	}
}

// Run listens on the configured addresses and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}

	var grpcLis net.Listener
	if s.grpcPort > 0 {
		host, _, _ := net.SplitHostPort(s.addr)
		grpcLis, err = net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(s.grpcPort)))
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
	}

	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve serves on the given listeners; grpcLis may be nil. It returns nil
// after a graceful shutdown triggered by ctx.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	errChan := make(chan error, 2)

	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", httpLis.Addr().String()))
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	if grpcLis != nil {
		go func() {
			s.logger.Info("gRPC health server listening", zap.String("addr", grpcLis.Addr().String()))
			if err := s.grpcServer.Serve(grpcLis); err != nil {
				errChan <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	reporterCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()
	go s.reportHealth(reporterCtx)

	var err error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down")
	case err = <-errChan:
		s.logger.Error("Server failed", zap.Error(err))
	}

	s.healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := s.httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		s.logger.Warn("HTTP shutdown incomplete", zap.Error(shutdownErr))
	}
	s.grpcServer.GracefulStop()

	return err
}

func (s *Server) reportHealth(ctx context.Context) {
	s.publish(s.backend.Health(ctx))

	if s.healthInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publish(s.backend.Health(ctx))
		}
	}
}

// publish maps each dependency check onto a named gRPC health service. The
// overall "" service follows the aggregated status.
func (s *Server) publish(report api.HealthReport) {
	statuses := map[string]bool{
		"":         report.Status == "ok",
		"database": report.Checks.Database.OK,
		"glances":  report.Checks.Glances.OK,
		"openclaw": report.Checks.OpenClaw.OK,
	}

	for service, ok := range statuses {
		status := grpc_health_v1.HealthCheckResponse_SERVING
		if !ok {
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
		s.healthServer.SetServingStatus(service, status)
	}

	if report.Status != "ok" {
		s.logger.Warn("Health degraded",
			zap.Bool("database", report.Checks.Database.OK),
			zap.Bool("glances", report.Checks.Glances.OK),
			zap.Bool("openclaw", report.Checks.OpenClaw.OK))
	}
}
