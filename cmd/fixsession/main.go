// FixSessionService 主程序
// 功能：托管每个对手方的 FIX 会话（登录/登出、序号、补发、心跳），通过 TCP
// 承载协议流量，通过 HTTP/gRPC 暴露运维接口
// 架构：internal/fixsession（会话引擎）+ internal/fixgateway（网关编排）
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fixsession/internal/fixgateway"
	"github.com/wyfcoding/fixsession/internal/fixgateway/application"
	httphandler "github.com/wyfcoding/fixsession/internal/fixgateway/interfaces/http"
	grpcserver "github.com/wyfcoding/fixsession/internal/fixgateway/interfaces/grpc"
	"github.com/wyfcoding/fixsession/internal/fixgateway/infrastructure/messaging"
	"github.com/wyfcoding/fixsession/internal/fixgateway/infrastructure/persistence/mysql"
	fixredis "github.com/wyfcoding/fixsession/internal/fixgateway/infrastructure/persistence/redis"
	"github.com/wyfcoding/fixsession/internal/fixgateway/infrastructure/transport"
	"github.com/wyfcoding/fixsession/internal/fixsession"
	"github.com/wyfcoding/fixsession/pkg/cache"
	"github.com/wyfcoding/fixsession/pkg/config"
	"github.com/wyfcoding/fixsession/pkg/db"
	"github.com/wyfcoding/fixsession/pkg/logger"
	"github.com/wyfcoding/fixsession/pkg/metrics"
	"github.com/wyfcoding/fixsession/pkg/middleware"
	"github.com/wyfcoding/fixsession/pkg/mq"
	"github.com/wyfcoding/fixsession/pkg/ratelimit"
	"google.golang.org/grpc"
)

func main() {
	configPath := "configs/fixsession/config.toml"
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	loggerCfg := logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}
	if err := logger.Init(loggerCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting FixSessionService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	dbCfg := db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	}
	database, err := db.Init(dbCfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	redisCfg := cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}
	redisCache, err := cache.New(redisCfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
	}
	defer redisCache.Close()

	rateLimiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())

	kafkaProducer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:     cfg.Kafka.Brokers,
		Partitions:  cfg.Kafka.Partitions,
		Replication: cfg.Kafka.Replication,
		MaxRetries:  5,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Kafka producer", "error", err)
	}
	defer kafkaProducer.Close()
	publisher := messaging.NewKafkaEventPublisher(kafkaProducer)

	sessionRepo := mysql.NewGormFixRepository(database.DB)
	messageRepo := mysql.NewGormMessageRepository(database.DB)
	codec := transport.NewFixCodec()

	newStore := func(id fixsession.SessionID) (fixsession.MessageStore, error) {
		backing, err := mysql.NewGormMessageStore(database.DB, id)
		if err != nil {
			return nil, err
		}
		return fixredis.NewCachedMessageStore(backing, redisCache.GetClient(), id.String(), 200, 10*time.Minute), nil
	}

	svc := application.NewFixApplicationService(
		sessionRepo,
		messageRepo,
		publisher,
		fixsession.AlwaysOpenSchedule{},
		codec,
		newStore,
		nil,
	)

	acceptors, initiators, err := fixgateway.RegisterSessionsFromConfig(ctx, svc, cfg.Sessions)
	if err != nil {
		logger.Fatal(ctx, "Failed to register FIX sessions", "error", err)
	}

	metricsInstance := metrics.New(cfg.ServiceName)
	if err := metricsInstance.Register(); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
		logger.Fatal(ctx, "Failed to start metrics HTTP server", "error", err)
	}

	httpServer := createHTTPServer(cfg, svc, rateLimiter)
	grpcServer := createGRPCServer(cfg)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(context.Background())
	defer cancelHeartbeat()
	go svc.HeartbeatMonitor(heartbeatCtx)

	acceptorNotifier := transport.DisconnectNotifier(svc)
	if len(acceptors) > 0 {
		acceptor := transport.NewAcceptor(svc.Manager(), codec, logger.Get(), acceptorNotifier)
		go func() {
			addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.GRPC.Port+1)
			lis, err := net.Listen("tcp", addr)
			if err != nil {
				logger.Fatal(ctx, "Failed to listen on FIX acceptor address", "error", err)
			}
			logger.Info(ctx, "Starting FIX acceptor", "addr", addr, "sessions", len(acceptors))
			if err := acceptor.Serve(heartbeatCtx, lis); err != nil {
				logger.Error(ctx, "FIX acceptor stopped", "error", err)
			}
		}()
	}

	dialer := transport.NewDialer(codec, logger.Get(), acceptorNotifier)
	for _, target := range initiators {
		target := target
		go func() {
			logger.Info(ctx, "Dialing FIX counterparty", "session", target.Session.ID.String(), "address", target.Address)
			if err := dialer.Connect(heartbeatCtx, target.Address, target.Session); err != nil {
				logger.Error(ctx, "FIX dial failed", "session", target.Session.ID.String(), "error", err)
			}
		}()
	}

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		logger.Info(ctx, "Starting HTTP server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Fatal(ctx, "Failed to listen on gRPC address", "error", err)
		}
		logger.Info(ctx, "Starting gRPC server", "addr", addr)
		if err := grpcServer.Serve(listener); err != nil {
			logger.Fatal(ctx, "gRPC server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down FixSessionService")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}

	grpcServer.GracefulStop()
	svc.Manager().UnregisterAll()

	logger.Info(ctx, "FixSessionService stopped")
}

func createHTTPServer(cfg *config.Config, svc *application.FixApplicationService, rateLimiter ratelimit.RateLimiter) *http.Server {
	router := gin.Default()

	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.RateLimitMiddleware(rateLimiter, cfg.RateLimit))

	httpHandler := httphandler.NewSessionHandler(svc)
	httpHandler.RegisterRoutes(router.Group(""))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}

func createGRPCServer(cfg *config.Config) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			middleware.GRPCLoggingInterceptor(),
			middleware.GRPCRecoveryInterceptor(),
		),
		grpc.MaxConcurrentStreams(uint32(cfg.GRPC.MaxConcurrentStreams)),
	}

	server := grpc.NewServer(opts...)
	grpcserver.RegisterServer(server, cfg.ServiceName)
	return server
}
