package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/cache"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/config"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/consumer"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/hub"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/logging"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/processor"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/publisher"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/retry"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/statsgen"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("schema-compiler stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startup := retry.NewRetryPolicy(5, time.Second).WithMaxDelay(10 * time.Second)

	// Redis
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	err = startup.Execute(ctx, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}, func(attempt int, err error) {
		logger.Warn("redis not ready", zap.Int("attempt", attempt), zap.Error(err))
	})
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", redisOpts.Addr))

	// Run log (optional)
	var runStore *store.RunStore
	if cfg.RunStoreEnabled() {
		err = startup.Execute(ctx, func(ctx context.Context) error {
			s, err := store.Open(ctx, cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			runStore = s
			return nil
		}, func(attempt int, err error) {
			logger.Warn("postgres not ready", zap.Int("attempt", attempt), zap.Error(err))
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer runStore.Close()

		if err := runStore.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("creating run log schema: %w", err)
		}
		logger.Info("run log enabled")
	} else {
		logger.Info("run log disabled, POSTGRES_DSN not set")
	}

	// Compile pipeline
	compiler := statsgen.New(logger.Named("statsgen"))
	proc := processor.NewProcessor(compiler, cfg.Compiler.OutputRoot, logger.Named("processor"))
	if cfg.Compiler.DefaultIconDir != "" {
		proc.SetIconDir(cfg.Compiler.DefaultIconDir)
	}

	descriptorCache := cache.NewRedisWriter(redisClient)
	wsHub := hub.NewHub(logger.Named("hub"))

	proc.AddSink(descriptorCache)
	if runStore != nil {
		proc.AddSink(runStore)
	}
	proc.AddSink(publisher.NewStreamPublisher(redisClient, cfg.Stream.EventStream))
	proc.AddSink(wsHub)

	go wsHub.Run(ctx)

	streamConsumer := consumer.NewStreamConsumer(
		redisClient,
		cfg.Stream.ConsumerID,
		cfg.Stream.ConsumerGroup,
		cfg.Compiler.MaxSchemaBytes,
		logger.Named("consumer"),
	)
	go proc.Start(ctx, streamConsumer, cfg.Stream.RequestStream)

	// HTTP
	var runs handlers.RunReader
	if runStore != nil {
		runs = runStore
	}
	h := handlers.NewHandler(ctx, proc, descriptorCache, runs, wsHub, cfg.Compiler.MaxSchemaBytes, logger.Named("http"))

	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     handlers.NewRouter(h, cfg.Server.CORSOrigins, logger.Named("http")),
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: websocket connections are long-lived
		IdleTimeout: 60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("schema-compiler listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("output_root", cfg.Compiler.OutputRoot),
			zap.String("request_stream", cfg.Stream.RequestStream),
			zap.String("event_stream", cfg.Stream.EventStream),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("http server: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		srv.Close()
	}

	logger.Info("shutdown complete")
	return nil
}
