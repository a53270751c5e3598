package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/dominicdesy/intelia-expert/internal/http"
)

var serveHost string

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "interface to listen on")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the expertd HTTP server.

Endpoints:
  POST   /v1/ask                  answer a question
  GET    /v1/conversations/:id    conversation state
  DELETE /v1/conversations/:id    forget a conversation
  GET    /v1/status               counters and knowledge base status
  GET    /health                  liveness
  GET    /metrics                 Prometheus metrics

Examples:
  # Serve on the configured port
  expertd serve --config expertd.yaml

  # Override the port from the environment
  EXPERT_SERVER_PORT=9090 expertd serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			a.logger.Error(context.Background(), "shutdown incomplete", zap.Error(err))
		}
	}()

	orch, err := a.orchestrator(ctx)
	if err != nil {
		return err
	}

	var opts []httpserver.Option
	if a.store != nil {
		opts = append(opts, httpserver.WithKnowledge(a.store))
	}
	srv, err := httpserver.NewServer(orch, a.logger.Named("http").Underlying(), &httpserver.Config{
		Host:        serveHost,
		Port:        a.cfg.Server.Port,
		Version:     version,
		Collections: []string{a.cfg.VectorStore.Collection},
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}
