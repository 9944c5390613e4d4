package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go-insights-pipeline/internal/api"
	"go-insights-pipeline/internal/api/handler"
	"go-insights-pipeline/internal/config"
	"go-insights-pipeline/internal/logging"
	"go-insights-pipeline/internal/metrics"
	"go-insights-pipeline/internal/store"
	"go-insights-pipeline/pkg/router"
	"go-insights-pipeline/pkg/utils"
)

// @title Insights Pipeline API
// @version 1.0
// @description Run ingest, clean, enrich and summarize jobs over tabular data.
// @BasePath /api/v1
func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	st, err := store.Open(cfg.Store.DBPath, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	collector := metrics.New()
	h := handler.New(handler.Options{
		Store:       st,
		Logger:      logger,
		Observer:    collector,
		Outputs:     utils.NewOutputManager(cfg.Jobs.OutputDir),
		JobTimeout:  cfg.Jobs.Timeout,
		Parallelism: cfg.Jobs.Parallelism,
	})

	r := router.New(logger)
	api.RegisterRoutes(r, h, collector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if err := r.Start(ctx, srv, cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("server error", "error", err)
	}
	h.Wait()
}
