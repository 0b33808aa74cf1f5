package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/pm/patient-management/libs/billingrpc"
	"github.com/pm/patient-management/libs/grpcx"
)

func startGrpcServer(ctx context.Context, logger *slog.Logger, port string, srv billingrpc.Server) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	s := grpcx.NewServer(logger)
	billingrpc.Register(s, srv)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := s.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	return nil
}
