package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixelgate/pixelgate/internal/api"
	"github.com/pixelgate/pixelgate/internal/config"
	"github.com/pixelgate/pixelgate/internal/pipeline"
	"github.com/pixelgate/pixelgate/internal/queue"
	"github.com/pixelgate/pixelgate/internal/ratelimit"
	"github.com/pixelgate/pixelgate/internal/storage"
	"github.com/pixelgate/pixelgate/internal/store"
	"github.com/pixelgate/pixelgate/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[proxy] ", log.LstdFlags|log.Lmsgprefix)

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "pixelgate-proxy",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("setup tracing: %v", err)
	}

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

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 10*time.Second)
	if err := storageClient.EnsureBucket(ensureCtx, cfg.Storage.CacheBucket); err != nil {
		logger.Printf("ensure cache bucket failed (cache writes will miss): %v", err)
	}
	cancelEnsure()

	processor := pipeline.NewProcessor(logger, storageClient, pipeline.NewEngine(nil), pipeline.Options{
		Limits: pipeline.Limits{
			MaxWidth:       cfg.Limits.MaxWidth,
			MaxHeight:      cfg.Limits.MaxHeight,
			DefaultQuality: cfg.Limits.DefaultQuality,
			DefaultBucket:  cfg.Storage.OriginBucket,
		},
		SigningSecret: cfg.Signing.Secret,
		CacheBucket:   cfg.Storage.CacheBucket,
		CacheMaxAge:   cfg.Cache.MaxAgeSeconds,
	})

	var usageStore store.UsageStore
	if cfg.Database.DSN != "" {
		pgStore, err := store.NewPostgresUsageStore(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatalf("create usage store: %v", err)
		}
		defer pgStore.Close()
		usageStore = pgStore
	} else {
		usageStore = store.NewMemoryUsageStore()
	}

	var rateLimiter api.RateLimiter
	if cfg.RateLimit.RequestsPerMinute > 0 {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer redisClient.Close()

		rateLimiter, err = ratelimit.NewRedisSlidingWindow(
			redisClient,
			cfg.RateLimit.RequestsPerMinute,
			time.Minute,
			"pixelgate:ratelimit",
		)
		if err != nil {
			logger.Fatalf("create rate limiter: %v", err)
		}
	}

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	app := api.NewServer(logger, processor, queueClient, usageStore, rateLimiter, api.Options{
		SigningSecret:  cfg.Signing.Secret,
		CacheMaxAge:    cfg.Cache.MaxAgeSeconds,
		CacheImmutable: cfg.Cache.Immutable,
	})

	httpServer := &http.Server{
		Addr:         cfg.Proxy.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.Proxy.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracer shutdown failed: %v", err)
	}
}
