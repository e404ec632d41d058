package main

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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/adapter/auth"
	grpcAdapter "github.com/urbanestate/listing-service/internal/adapter/grpc"
	natsAdapter "github.com/urbanestate/listing-service/internal/adapter/messaging/nats"
	"github.com/urbanestate/listing-service/internal/adapter/repository/cache"
	"github.com/urbanestate/listing-service/internal/adapter/repository/memory"
	mongoRepo "github.com/urbanestate/listing-service/internal/adapter/repository/mongodb"
	"github.com/urbanestate/listing-service/internal/adapter/rest"
	"github.com/urbanestate/listing-service/internal/adapter/storage/local"
	s3Storage "github.com/urbanestate/listing-service/internal/adapter/storage/s3"
	"github.com/urbanestate/listing-service/internal/config"
	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/listing/lifecycle"
	"github.com/urbanestate/listing-service/internal/listing/usecase"
	"github.com/urbanestate/listing-service/internal/platform/logger"
	"github.com/urbanestate/listing-service/internal/platform/metrics"
	"github.com/urbanestate/listing-service/internal/platform/tracer"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load .env file (optional, for local development)
	if err := godotenv.Load(); err != nil {
		fmt.Printf("INFO: .env file not found or error loading: %v. Relying on OS environment variables.\n", err)
	}

	// 1. Logger
	appLogger := logger.New(logger.ConfigFromEnv())
	defer func() { _ = appLogger.Sync() }()

	// 2. Configuration
	cfg, err := config.LoadConfig(appLogger)
	if err != nil {
		appLogger.Fatal("Failed to load configuration", zap.Error(err))
	}
	appLogger = appLogger.With(zap.String("service", cfg.ServiceName))
	appLogger.Info("Application starting",
		zap.String("http_port", cfg.HTTPPort),
		zap.String("grpc_port", cfg.GRPCPort),
		zap.String("storage_driver", cfg.StorageDriver),
		zap.String("media_driver", cfg.MediaDriver),
	)

	// 3. Tracing
	tp := tracer.InitTracer(tracer.Config{
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.OTelEndpoint,
		Stdout:       cfg.OTelStdout,
	}, appLogger)
	defer tracer.Shutdown(tp, 5*time.Second, appLogger)

	// 4. Metrics
	metricsManager := metrics.NewMetricsManager(cfg.ServiceName)

	// 5. Listing repository
	var (
		repo  domain.ListingRepository
		ready func(context.Context) error
	)
	switch cfg.StorageDriver {
	case config.StorageDriverMongo:
		mongoClient, err := mongoRepo.NewMongoDBConnection(cfg.MongoURI, cfg.MongoConnectTimeout)
		if err != nil {
			appLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(ctx); err != nil {
				appLogger.Error("Error disconnecting from MongoDB", zap.Error(err))
			} else {
				appLogger.Info("Disconnected from MongoDB")
			}
		}()
		appLogger.Info("Connected to MongoDB", zap.String("database", cfg.MongoDatabase))
		repo = mongoRepo.NewListingRepository(mongoClient.Database(cfg.MongoDatabase), appLogger)
		ready = mongoRepo.Pinger(mongoClient)
	default:
		appLogger.Warn("Using in-memory listing storage; data is lost on restart")
		repo = memory.NewListingRepository()
	}

	// 6. Read cache
	if cfg.RedisAddress != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		repo = cache.NewListingRepository(repo, redisClient, cfg.CacheTTL, appLogger)
		appLogger.Info("Redis listing cache enabled", zap.Duration("ttl", cfg.CacheTTL))
	}

	// 7. Events
	var publisher domain.EventPublisher = natsAdapter.NopPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := natsAdapter.NewPublisher(cfg.NATSURL, appLogger, cfg.ServiceName)
		if err != nil {
			appLogger.Fatal("Failed to initialize NATS publisher", zap.Error(err))
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	} else {
		appLogger.Info("NATS_URL not set, listing events are not published")
	}

	// 8. Media store
	var (
		media        domain.MediaStore
		mediaHandler http.Handler
	)
	switch cfg.MediaDriver {
	case config.MediaDriverS3:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		store, err := s3Storage.NewStorage(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, appLogger)
		cancel()
		if err != nil {
			appLogger.Fatal("Failed to initialize S3 media storage", zap.Error(err))
		}
		media = store
	default:
		store, err := local.NewStorage(cfg.MediaLocalDir, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize local media storage", zap.Error(err))
		}
		media, mediaHandler = store, store
	}

	// 9. Usecase
	authenticator := auth.NewJWTAuthenticator(cfg.JWTSecret, appLogger)
	listingUsecase := usecase.NewListingUsecase(repo, authenticator, media, appLogger,
		usecase.WithPublisher(publisher),
		usecase.WithMetrics(metricsManager),
	)

	// 10. Expiry sweep
	sweeper := lifecycle.NewSweeper(repo, cfg.ListingMaxAge, appLogger,
		lifecycle.WithPublisher(publisher),
		lifecycle.WithMetrics(metricsManager),
	)
	scheduler, err := lifecycle.NewScheduler(sweeper, lifecycle.SchedulerConfig{
		Spec:       cfg.SweepSchedule,
		Timeout:    cfg.SweepTimeout,
		RunOnStart: cfg.SweepOnStart,
	}, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create expiry scheduler", zap.Error(err))
	}
	scheduler.Start()

	// 11. HTTP server
	handler := rest.NewListingHandler(listingUsecase, cfg.AuthCookieName, cfg.MaxUploadBytes(), appLogger)
	httpSrv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: rest.NewRouter(handler, rest.RouterConfig{
			CORSAllowedOrigin: cfg.CORSAllowedOrigin,
			Media:             mediaHandler,
			Ready:             ready,
		}, metricsManager, appLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// 12. gRPC health server
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	var grpcSrv *grpcAdapter.Server
	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			appLogger.Fatal("Failed to listen for gRPC", zap.String("port", cfg.GRPCPort), zap.Error(err))
		}
		grpcSrv = grpcAdapter.NewGRPCServer(cfg.ServiceName, appLogger)
		go func() {
			appLogger.Info("Starting gRPC server", zap.String("port", cfg.GRPCPort))
			if err := grpcSrv.Serve(lis); err != nil {
				appLogger.Error("gRPC server Serve error", zap.Error(err))
			}
		}()
		if ready != nil {
			go grpcSrv.WatchDependency(watchCtx, 15*time.Second, ready)
		} else {
			grpcSrv.SetServing(true)
		}
	}

	// 13. Prometheus metrics server
	metricsSrv := metrics.NewMetricsServer(cfg.PrometheusMetricsPort, metricsManager.Registry)
	go func() {
		if err := metrics.StartMetricsServer(metricsSrv, appLogger); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Prometheus metrics server failed", zap.Error(err))
		}
	}()

	// 14. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stopWatch()
	if grpcSrv != nil {
		grpcSrv.Health.Shutdown()
		appLogger.Info("gRPC health status set to NOT_SERVING")
	}

	if err := httpSrv.Shutdown(ctx); err != nil {
		appLogger.Error("HTTP server shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server stopped")
	}

	select {
	case <-scheduler.Stop().Done():
		appLogger.Info("Expiry scheduler stopped")
	case <-ctx.Done():
		appLogger.Warn("Expiry sweep still running at shutdown deadline")
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			appLogger.Error("Metrics server shutdown failed", zap.Error(err))
		}
	}
	if grpcSrv != nil {
		grpcSrv.Shutdown()
	}

	appLogger.Info("Application shut down")
}
