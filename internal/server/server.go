// Package server runs the HTTP and gRPC listeners until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	shopgrpc "github.com/farmshop/storefront/pkg/grpc"
	"github.com/farmshop/storefront/pkg/logger"
)

// Options configures the listeners. An empty GRPCAddr disables gRPC.
type Options struct {
	Addr            string
	GRPCAddr        string
	ShutdownTimeout time.Duration
}

// Start serves handler (and the gRPC health server when grpcSrv is set)
// until ctx ends, then drains in-flight requests.
func Start(ctx context.Context, handler http.Handler, grpcSrv *shopgrpc.Server, opts Options) error {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	httpServer := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("http: serving", "addr", opts.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http: serve: %w", err)
			return
		}
		serveErr <- nil
	}()

	if grpcSrv != nil && opts.GRPCAddr != "" {
		lis, err := net.Listen("tcp", opts.GRPCAddr)
		if err != nil {
			_ = httpServer.Close()
			return fmt.Errorf("grpc: listen %s: %w", opts.GRPCAddr, err)
		}
		go func() { serveErr <- grpcSrv.Serve(lis) }()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		if runErr == nil {
			return nil
		}
	}

	logger.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.Stop()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("http: shutdown: %w", err))
	}
	return runErr
}
