package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/metadag/internal/httpapi"
	"github.com/ppiankov/metadag/internal/server"
)

var (
	serveHTTPAddr string
	serveGRPCAddr string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http", ":8080", "HTTP listen address (empty to disable)")
	serveCmd.Flags().StringVar(&serveGRPCAddr, "grpc", ":50051", "gRPC listen address (empty to disable)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC governance servers",
	Long: "Serves the pipeline over a JSON HTTP API with /metrics and /healthz,\n" +
		"and over the metadag.v1.GovernanceService gRPC service. Both share one engine.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveHTTPAddr == "" && serveGRPCAddr == "" {
		return fmt.Errorf("nothing to serve: both --http and --grpc are empty")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var lis net.Listener
	if serveGRPCAddr != "" {
		lis, err = net.Listen("tcp", serveGRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", serveGRPCAddr, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if serveHTTPAddr != "" {
		httpSrv := &http.Server{
			Addr:              serveHTTPAddr,
			Handler:           httpapi.New(a.engine, a.registry, a.logger).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info("http server listening", "addr", serveHTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	if lis != nil {
		grpcSrv := server.New(a.engine, a.logger)
		g.Go(func() error {
			a.logger.Info("grpc server listening", "addr", lis.Addr().String(), "service", server.ServiceName)
			return grpcSrv.Serve(lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			grpcSrv.GracefulStop()
			return nil
		})
	}

	fmt.Fprintf(os.Stderr, "metadag serving (state: %s)\n", a.cfg.StateDir())
	err = g.Wait()
	fmt.Fprintln(os.Stderr, "\nShutting down governance servers...")
	return err
}
