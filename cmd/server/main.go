package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/demand-desk/internal/adapter/handler"
	"github.com/rl1809/demand-desk/internal/adapter/storage"
	"github.com/rl1809/demand-desk/internal/auth"
	"github.com/rl1809/demand-desk/internal/config"
	"github.com/rl1809/demand-desk/internal/core/service"
	"github.com/rl1809/demand-desk/internal/port"
)

type backend struct {
	requests port.RequestRepository
	catalog  port.CatalogRepository
	patients port.PatientRepository
	reserver port.FormNumberReserver
	close    func()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := initBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to init storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer be.close()

	// Initialize services
	demandService := service.NewDemandService(be.requests, be.catalog, be.reserver, logger.Named("demand"))
	reportService := service.NewReportService(be.catalog, be.patients)
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expire, cfg.JWT.Issuer)

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handler.UnaryLogger(logger.Named("grpc")),
		handler.UnaryAuth(tokens),
	))
	handler.RegisterReportServiceServer(grpcServer, handler.NewGRPCHandler(demandService, reportService, cfg.App.FiscalYear))

	lis, err := net.Listen("tcp", cfg.Server.GRPCPort)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.Server.GRPCPort), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.RequestID())
	router.Use(handler.Logger(logger.Named("http")))
	handler.NewHTTPHandler(demandService, reportService, cfg.App.FiscalYear, logger).RegisterRoutes(router, tokens)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPPort,
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", cfg.Server.HTTPPort),
			zap.String("fiscal_year", cfg.App.FiscalYear),
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")
}

func initBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	if cfg.Storage.Driver == "memory" {
		store := storage.NewMemoryStore()
		logger.Warn("using in-memory storage, data is lost on restart")
		return &backend{
			requests: store,
			catalog:  store,
			patients: store,
			reserver: storage.NewMemoryReserver(),
			close:    func() {},
		}, nil
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected to redis")

	redisAdapter := storage.NewRedisAdapter(rdb, cfg.Redis.CatalogTTL)
	return &backend{
		requests: mysqlAdapter,
		catalog:  storage.NewCachedCatalog(mysqlAdapter, redisAdapter, logger.Named("catalog")),
		patients: mysqlAdapter,
		reserver: redisAdapter,
		close: func() {
			rdb.Close()
			db.Close()
			logger.Info("connections closed")
		},
	}, nil
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}
