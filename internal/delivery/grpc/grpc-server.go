package grpc

import (
	"context"
	"fmt"
	"net"

	"MLNCoreService/pkg/server"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Server представляет собой gRPC сервер
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     *zap.Logger
	port       int
	handler    *GameHandler
}

// NewServer создает gRPC сервер с GameService, health и reflection
func NewServer(handler *GameHandler, logger *zap.Logger, port int) *Server {
	s := &Server{
		health:  health.NewServer(),
		logger:  logger,
		port:    port,
		handler: handler,
	}

	s.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			s.recoveryInterceptor(),
			server.TracingUnaryInterceptor(logger),
			server.MetricsUnaryInterceptor(),
		),
	)
	Register(s.grpcServer, handler)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	// Включаем reflection для удобства отладки через grpcurl
	reflection.Register(s.grpcServer)

	return s
}

// Run слушает порт и обслуживает запросы до Stop
func (s *Server) Run() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		s.logger.Error("Failed to listen", zap.Error(err), zap.Int("port", s.port))
		return err
	}
	return s.Serve(lis)
}

// Serve обслуживает запросы на готовом listener
func (s *Server) Serve(lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	s.logger.Info("Starting gRPC server", zap.String("addr", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

// Stop переводит health в NOT_SERVING и дожидается текущих запросов
func (s *Server) Stop() {
	s.logger.Info("Stopping gRPC server")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// recoveryInterceptor превращает панику обработчика в codes.Internal
func (s *Server) recoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Recovered from panic",
					zap.Any("panic", r),
					zap.String("method", info.FullMethod))
				resp, err = nil, status.Error(codes.Internal, "operation failed")
			}
		}()

		return handler(ctx, req)
	}
}
