package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/handlers"
	"github.com/robuust/reverserelations/internal/infrastructure/config"
	"github.com/robuust/reverserelations/internal/infrastructure/database"
	"github.com/robuust/reverserelations/internal/infrastructure/httpserver"
	"github.com/robuust/reverserelations/internal/infrastructure/logger"
	"github.com/robuust/reverserelations/internal/infrastructure/metrics"
	"github.com/robuust/reverserelations/internal/repositories"
	"github.com/robuust/reverserelations/internal/repositories/cached"
	"github.com/robuust/reverserelations/internal/repositories/sqlstore"
	"github.com/robuust/reverserelations/internal/services/relations"
	"github.com/robuust/reverserelations/internal/services/reverse"
	"github.com/robuust/reverserelations/pkg/cache/theinecache"
)

const (
	defaultEnv      = "dev"
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := config.InitConfig(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, zapLogger *logger.ZapLogger) error {
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("error closing database connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected to database", zap.String("driver", db.Driver))

	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter := metrics.NewPrometheusExporter(registry)
	collector := metrics.NewCollector()
	collector.SetExporter(exporter)

	// Repositories
	fieldRepo, closeCache, err := newFieldRepository(cfg, db, registry)
	if err != nil {
		return err
	}
	defer closeCache()
	groupRepo := sqlstore.NewGroupRepository(db.DB, db.Driver)
	elementRepo := sqlstore.NewElementRepository(db.DB, db.Driver)
	relationRepo := sqlstore.NewRelationRepository(db.DB, db.Driver)

	resolver := reverse.NewResolver(fieldRepo, groupRepo, elementRepo, relationRepo,
		reverse.WithLogger(zapLogger),
		reverse.WithRecorder(collector),
	)
	forward := relations.NewService(relationRepo)
	handler := handlers.NewReverseRelationsHandler(resolver, forward, fieldRepo, elementRepo, zapLogger)

	// gRPC API
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(metrics.UnaryServerInterceptor(collector, exporter, zapLogger)))
	handlers.RegisterReverseRelationsServer(grpcServer, handler)

	// Register reflection service (for grpcurl, etc.)
	reflection.Register(grpcServer)

	grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
	}

	// Admin HTTP server
	gin.SetMode(gin.ReleaseMode)
	adminServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           httpserver.NewRouter(db, registry, collector, zapLogger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zapLogger.Info("gRPC server listening", zap.String("addr", grpcAddr))
		if err := grpcServer.Serve(listener); err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		zapLogger.Info("admin server listening", zap.String("addr", adminServer.Addr))
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Channel to notify when graceful stop completes
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
			zapLogger.Info("gRPC server stopped gracefully")
		case <-shutdownCtx.Done():
			zapLogger.Warn("shutdown timeout exceeded, forcing stop")
			grpcServer.Stop()
		}

		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down admin server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	zapLogger.Info("shutdown complete")
	return nil
}

// newFieldRepository returns the field repository, cached unless FIELD_CACHE_SIZE is 0.
// The cache hit rate is exported on reg.
func newFieldRepository(cfg *config.Config, db *database.Database, reg prometheus.Registerer) (repositories.FieldRepository, func(), error) {
	store := sqlstore.NewFieldRepository(db.DB, db.Driver)
	if cfg.Cache.FieldCacheSize == 0 {
		return store, func() {}, nil
	}

	size := int64(cfg.Cache.FieldCacheSize)
	byUID, err := theinecache.New[string, *entities.FieldConfig](size)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create field cache: %w", err)
	}
	byID, err := theinecache.New[int64, *entities.FieldConfig](size)
	if err != nil {
		byUID.Close()
		return nil, nil, fmt.Errorf("failed to create field cache: %w", err)
	}

	closeCache := func() {
		byUID.Close()
		byID.Close()
	}
	repo := cached.NewFieldRepository(store, byUID, byID, cfg.Cache.FieldCacheTTL)
	metrics.RegisterCacheMetrics(reg, "fields", repo.Metrics)
	return repo, closeCache, nil
}
