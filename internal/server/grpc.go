package server

import (
	"context"
	"errors"
	"net"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"hrplane/internal/config"
	"hrplane/pkg/errutil"
)

var GRPCModule = fx.Module("grpc.server",
	fx.Provide(ProvideGRPCServer),
	fx.Invoke(StartGRPCServer),
)

// ProvideGRPCServer constructs a gRPC server with the standard health service
// registered so the orchestrator can probe it. Every registered service has its
// errors normalised to gRPC status errors on the way out.
func ProvideGRPCServer() *grpc.Server {
	srv := grpc.NewServer(grpc.UnaryInterceptor(errorInterceptor))
	grpc_health_v1.RegisterHealthServer(srv, health.NewServer())
	return srv
}

func errorInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	return resp, errutil.ToGRPCError(err)
}

// StartGRPCServer wires the gRPC server lifecycle to the fx application.
func StartGRPCServer(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config, srv *grpc.Server) {
	var listener net.Listener

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			listener, err = net.Listen("tcp", cfg.Grpc.Addr)
			if err != nil {
				return err
			}

			go func() {
				logger.Info("Starting gRPC server...", zap.String("addr", cfg.Grpc.Addr))
				if err := srv.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					logger.Fatal("gRPC server failed", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down gRPC server...", zap.String("addr", cfg.Grpc.Addr))

			done := make(chan struct{})
			go func() {
				srv.GracefulStop()
				close(done)
			}()

			select {
			case <-ctx.Done():
				srv.Stop()
			case <-done:
			}

			if listener != nil {
				_ = listener.Close()
			}

			return nil
		},
	})
}
