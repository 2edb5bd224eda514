package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mfenderov/postseek/internal/api"
	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/internal/config"
	"github.com/mfenderov/postseek/internal/metrics"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP search API",
	Long: `Start the HTTP search API.

Endpoints:
  GET /api/search?query=...  closest posts as JSON
  GET /healthz               liveness
  GET /metrics               Prometheus metrics

Without an embedding key or index settings the server still starts and
answers every search with 400.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from api.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg := GetConfig()
	addr := cfg.API.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	metrics.Init()

	var searcher api.Searcher
	configErr := cfg.Require(config.NeedEmbeddings, config.NeedIndex)
	if configErr != nil {
		slog.Warn("search disabled", "error", configErr)
	} else {
		stores, err := cache.Open(ctx, cfg.Cache)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		svc, err := newSearchService(ctx, cfg, stores)
		if err != nil {
			return err
		}
		searcher = svc
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(searcher, configErr, cfg.API.CacheControl).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("search API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
