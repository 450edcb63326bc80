// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	http_api "http-primer/internal/api/http"
	"http-primer/internal/background"
	"http-primer/internal/config"
	"http-primer/internal/domain"
	"http-primer/internal/infra/etcd"
	"http-primer/internal/infra/memory"
	redisstore "http-primer/internal/infra/redis"
	"http-primer/internal/ratelimit"
	"http-primer/internal/scheduler"
	"http-primer/internal/tracing"
	"http-primer/internal/usecase"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 5 * time.Second

// corsMiddleware wraps an http.Handler with CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-Request-ID, X-Api-Key")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")

		// Handle pre-flight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	// 1. Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	log.Println("Starting http-primer server...")

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.TraceEnabled {
		tracerShutdown, err := tracing.InitTracer(tracing.ServiceName, log.Writer())
		if err != nil {
			log.Fatalf("failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := tracerShutdown(context.Background()); err != nil {
				log.Printf("failed to shutdown tracer: %v", err)
			}
		}()
	}

	// 3. Create root context for lifecycle management
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Setup graceful shutdown
	setupGracefulShutdown(cancel)

	// 5. Execution history store
	execRepo, closeRepo, err := newExecutionRepository(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open %s execution store: %v", cfg.ExecutionStore, err)
	}
	defer closeRepo()
	log.Printf("Execution history kept in %s.", cfg.ExecutionStore)

	// 6. Deferred task dispatcher
	dispatcher := background.NewDispatcher(execRepo, logger,
		background.WithWorkers(cfg.TaskWorkers),
		background.WithQueueSize(cfg.TaskQueueSize),
	)
	dispatcher.Start()

	pruner, err := scheduler.NewPruner(execRepo, cfg.HistoryRetention, cfg.HistoryPruneSchedule, logger)
	if err != nil {
		log.Fatalf("Failed to schedule history pruning: %v", err)
	}
	pruneDone := make(chan struct{})
	go func() {
		defer close(pruneDone)
		_ = pruner.Start(rootCtx)
	}()

	// 7. Routes and middleware chain
	api := http_api.NewAPI(http_api.Deps{
		Logger:     logger,
		Dispatcher: dispatcher,
		Executions: usecase.NewExecutionService(execRepo, logger),
		TimeBomb:   usecase.TimeBomb(usecase.NewNoticeWriter(os.Stdout), cfg.TaskDelayUnit, logger),
		Metrics:    promhttp.Handler(),
	})

	handler := ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.ConcurrencyMax,
		AcquireTimeout: cfg.ConcurrencyTimeout,
	})(api)
	if cfg.RateEnabled {
		store := ratelimit.NewStore(cfg.RateRPS, cfg.RateBurst)
		store.StartJanitor(rootCtx)
		handler = ratelimit.Middleware(ratelimit.Options{
			Store:               store,
			KeyHeader:           cfg.RateKeyHeader,
			TrustXForwardedFor:  cfg.TrustXFF,
			RetryAfter:          cfg.RetryAfter,
			AddRateLimitHeaders: true,
		})(handler)
	}

	// 8. Start HTTP API server with CORS middleware
	log.Printf("Starting HTTP API server on %s", cfg.HttpListenAddr)
	server := &http.Server{
		Addr:    cfg.HttpListenAddr,
		Handler: corsMiddleware(handler),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 9. Block until shutdown
	<-rootCtx.Done()
	log.Println("Shutting down application gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown failed: %v", err)
	}
	// Handlers are done, so no batch can arrive after the queue closes.
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Printf("Deferred tasks still running at exit: %v", err)
	}
	<-pruneDone

	log.Println("Application shut down.")
}

// newExecutionRepository opens the store named by cfg.ExecutionStore. The returned func releases it.
func newExecutionRepository(cfg *config.Config, logger *slog.Logger) (domain.ExecutionRepository, func(), error) {
	switch cfg.ExecutionStore {
	case "memory":
		return memory.NewExecutionRepository(), func() {}, nil

	case "etcd":
		etcdClient, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
		if err != nil {
			return nil, nil, err
		}
		log.Println("Connected to etcd.")
		return etcd.NewEtcdExecutionRepository(etcdClient, logger), func() { etcdClient.Close() }, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("redis at %s unreachable: %w", cfg.RedisAddr, err)
		}
		log.Println("Connected to redis.")
		return redisstore.NewExecutionRepository(rdb, logger, redisstore.WithPrefix(cfg.RedisPrefix)), func() { rdb.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown execution store %q", cfg.ExecutionStore)
}

func setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v. Initiating graceful shutdown...", sig)
		cancel()
	}()
}
