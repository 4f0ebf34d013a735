package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/pixelgate/pixelgate/internal/config"
	"github.com/pixelgate/pixelgate/internal/pipeline"
	"github.com/pixelgate/pixelgate/internal/storage"
	"github.com/pixelgate/pixelgate/internal/telemetry"
	"github.com/pixelgate/pixelgate/internal/webhook"
	"github.com/pixelgate/pixelgate/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "pixelgate-worker",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("setup tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Printf("tracer shutdown failed: %v", err)
		}
	}()

	if err := pipeline.Startup(); err != nil {
		logger.Fatalf("start image runtime: %v", err)
	}
	defer pipeline.Shutdown()

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatalf("create storage client: %v", err)
	}

	// Prewarm tasks originate inside the deployment, so the worker's
	// processor runs without signature enforcement.
	processor := pipeline.NewProcessor(logger, storageClient, pipeline.NewEngine(nil), pipeline.Options{
		Limits: pipeline.Limits{
			MaxWidth:       cfg.Limits.MaxWidth,
			MaxHeight:      cfg.Limits.MaxHeight,
			DefaultQuality: cfg.Limits.DefaultQuality,
			DefaultBucket:  cfg.Storage.OriginBucket,
		},
		CacheBucket: cfg.Storage.CacheBucket,
		CacheMaxAge: cfg.Cache.MaxAgeSeconds,
	})

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret: cfg.Signing.Secret,
	})

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, processor, webhookClient)
	if err != nil {
		logger.Fatalf("create worker: %v", err)
	}

	if cfg.Worker.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", srv.MetricsHandler())
			logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
			if err := http.ListenAndServe(cfg.Worker.MetricsAddr, mux); err != nil {
				logger.Printf("metrics server failed: %v", err)
			}
		}()
	}

	logger.Printf(
		"starting worker concurrency=%d max_active_jobs=%d queue=%s redis=%s",
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActiveJobs,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
	)

	if err := srv.Run(); err != nil {
		logger.Fatalf("worker failed: %v", err)
	}
}
