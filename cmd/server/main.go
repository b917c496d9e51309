package main

import (
	"context"
	"os"
	"time"

	"MLNCoreService/config"
	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/database/seed"
	"MLNCoreService/internal/delivery/grpc"
	"MLNCoreService/internal/repository/postgres"
	"MLNCoreService/internal/repository/redis"
	"MLNCoreService/internal/service"
	"MLNCoreService/pkg/database"
	"MLNCoreService/pkg/logger"
	"MLNCoreService/pkg/server"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Версия сервиса
const (
	ServiceVersion = "1.0.0"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger("info").Fatal("Не удалось загрузить конфигурацию", zap.Error(err))
	}

	// Инициализация логгера
	log := logger.NewLogger(cfg.Log.Level)
	defer func() { _ = log.Sync() }()
	log.Info("Запуск MLN core service", zap.String("version", ServiceVersion))

	// Каталог проверяется до подключения к базам
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Fatal("Не удалось загрузить каталог", zap.String("path", cfg.Catalog.Path), zap.Error(err))
	}

	gracefulShutdown := server.NewGracefulShutdown(log, 30*time.Second)
	ctx := context.Background()

	// Подключение к PostgreSQL (с миграциями)
	db, err := database.NewPostgresDB(cfg.Postgres, log)
	if err != nil {
		log.Fatal("Не удалось подключиться к PostgreSQL", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Не удалось получить экземпляр SQL DB", zap.Error(err))
	}
	gracefulShutdown.AddShutdownFunc("postgres", func(ctx context.Context) error {
		return sqlDB.Close()
	})
	log.Info("Подключение к PostgreSQL установлено")

	// Redis необязателен: без него страницы читаются из базы
	var redisClient *goredis.Client
	redisClient, err = database.NewRedisClient(ctx, cfg.Redis, cfg.Resilience.Redis.CommandTimeout)
	if err != nil {
		log.Warn("Redis недоступен, кэш страниц отключен", zap.Error(err))
		redisClient = nil
	} else {
		gracefulShutdown.AddShutdownFunc("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
		log.Info("Подключение к Redis установлено")
	}

	healthChecker := database.NewDatabaseHealthChecker(db, redisClient, log, cfg.Resilience)

	metricsServer := server.MetricsServer(cfg.GRPC.MetricsPort, log)
	gracefulShutdown.AddShutdownFunc("metrics", metricsServer.Shutdown)

	// Отказоустойчивые хранилища и ядро
	store := postgres.NewResilientStore(db, healthChecker, log, cfg.Resilience)
	cache := redis.NewResilientCacheRepository(redisClient, healthChecker, log,
		cfg.Cache.PageTTL, cfg.Resilience.Redis.CommandTimeout)
	webhooks := service.NewWebhookDispatcher(cfg.Webhook, log)

	core := service.NewService(store, cat, log,
		service.WithCache(cache),
		service.WithNotifier(webhooks),
	)
	// Доставки в полете завершаются после остановки gRPC
	gracefulShutdown.AddShutdownFunc("webhooks", func(ctx context.Context) error {
		webhooks.Wait()
		return nil
	})

	if err := seed.NewSeeder(core, log).SeedAll(ctx, cfg.Seed.DevUser); err != nil {
		log.Fatal("Не удалось заполнить начальные данные", zap.Error(err))
	}

	healthCheck := server.NewHealthCheck(healthChecker, log, ServiceVersion)
	healthCheck.StartServer(cfg.GRPC.HealthPort)
	gracefulShutdown.AddShutdownFunc("health", healthCheck.Stop)

	grpcSrv := grpc.NewServer(grpc.NewGameHandler(core, log), log, cfg.GRPC.Port)
	gracefulShutdown.AddShutdownFunc("grpc", func(ctx context.Context) error {
		grpcSrv.Stop()
		return nil
	})

	go func() {
		if err := grpcSrv.Run(); err != nil {
			log.Error("gRPC server stopped", zap.Error(err))
			gracefulShutdown.Shutdown()
		}
	}()

	hostname, _ := os.Hostname()
	log.Info("Сервис успешно запущен",
		zap.Int("grpc_port", cfg.GRPC.Port),
		zap.Int("health_port", cfg.GRPC.HealthPort),
		zap.Int("metrics_port", cfg.GRPC.MetricsPort),
		zap.Int("networkers", len(cat.Networkers())),
		zap.String("version", ServiceVersion),
		zap.Int("pid", os.Getpid()),
		zap.String("hostname", hostname))

	// Ожидаем сигнала остановки
	gracefulShutdown.Wait(ctx)
	log.Info("Завершение работы сервиса выполнено")
}
