package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/railtrace/internal/config"
	"github.com/bitfantasy/railtrace/internal/middleware"
	"github.com/bitfantasy/railtrace/internal/railtrace/allocator"
	"github.com/bitfantasy/railtrace/internal/railtrace/events"
	"github.com/bitfantasy/railtrace/internal/railtrace/handler"
	"github.com/bitfantasy/railtrace/internal/railtrace/qrcode"
	"github.com/bitfantasy/railtrace/internal/railtrace/repository"
	"github.com/bitfantasy/railtrace/internal/railtrace/service"
	"github.com/bitfantasy/railtrace/internal/railtrace/storage"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting railtrace service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	ctx := context.Background()

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := repository.AutoMigrate(db); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}
	repos := repository.NewRepositories(db)

	// 序列号来源
	var rdb *redis.Client
	var seq allocator.Sequencer
	switch cfg.Allocator.Sequencer {
	case config.SequencerRedis:
		rdb = initRedis(cfg.Redis)
		if err := rdb.Ping(ctx).Err(); err != nil {
			zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		seq = repository.NewRedisSequencer(rdb)
	default:
		seq = repository.NewSequenceRepository(db)
	}

	encoder, err := qrcode.NewEncoder(cfg.QR)
	if err != nil {
		zapLogger.Fatal("Invalid QR configuration", zap.Error(err))
	}

	// 对象存储（可选）
	var artifacts storage.ArtifactStore
	if cfg.MinIO.Endpoint != "" {
		store, err := storage.NewMinIOStore(ctx, cfg.MinIO)
		if err != nil {
			zapLogger.Warn("MinIO unavailable, QR mirror disabled", zap.Error(err))
		} else {
			artifacts = store
			zapLogger.Info("MinIO QR mirror enabled", zap.String("bucket", cfg.MinIO.Bucket))
		}
	}

	// 事件发布
	hub := events.NewHub(zapLogger)
	publishers := events.Multi{hub}
	if cfg.NATS.URL != "" {
		natsPub, nc, err := events.ConnectNATS(ctx, cfg.NATS, zapLogger)
		if err != nil {
			zapLogger.Warn("NATS unavailable, events stay in-process", zap.Error(err))
		} else {
			defer nc.Drain()
			publishers = append(publishers, natsPub)
		}
	}

	services := service.NewServices(service.Deps{
		Store:          repos,
		Sequencer:      seq,
		Encoder:        encoder,
		Artifacts:      artifacts,
		Publisher:      publishers,
		Logger:         zapLogger,
		MaxRetries:     cfg.Allocator.MaxRetries,
		WarrantyMonths: cfg.Allocator.WarrantyMonths,
	})
	handlers := handler.NewHandlers(services, hub, zapLogger)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/events"})))

	// 注册路由
	handler.RegisterRoutes(router, handlers, handler.RouteOptions{
		JWTSecret: cfg.JWT.Secret,
		JWTIssuer: cfg.JWT.Issuer,
		Version:   Version,
		BuildTime: BuildTime,
		Ready: func(ctx context.Context) error {
			if err := repos.Ping(ctx); err != nil {
				return err
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
	})

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // SSE 长连接
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}

	zapLogger.Info("Server exited")
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

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.LogSQL {
		logLevel = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
