//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"MLNCoreService/config"
	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/database/seed"
	grpcHandler "MLNCoreService/internal/delivery/grpc"
	"MLNCoreService/internal/repository/postgres"
	"MLNCoreService/internal/repository/redis"
	"MLNCoreService/internal/service"
	"MLNCoreService/pkg/database"
	"MLNCoreService/pkg/logger"
	"MLNCoreService/pkg/server"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"gorm.io/gorm"
)

var (
	core        *service.Service
	conn        *grpc.ClientConn
	db          *gorm.DB
	redisClient *goredis.Client
	pgResource  *dockertest.Resource
	rdResource  *dockertest.Resource
	pool        *dockertest.Pool
)

// Настройка тестового окружения: Postgres 15, Redis 7 и gRPC сервер на случайном порту
func TestMain(m *testing.M) {
	var err error
	pool, err = dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not connect to Docker: %s", err)
	}
	pool.MaxWait = 2 * time.Minute

	pgResource, err = pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15",
		Env: []string{
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=mln_test",
		},
	}, autoRemove)
	if err != nil {
		log.Fatalf("Could not start PostgreSQL: %s", err)
	}

	rdResource, err = pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7",
	}, autoRemove)
	if err != nil {
		log.Fatalf("Could not start Redis: %s", err)
	}

	cfg := testConfig()
	zlog := logger.NewLogger("warn")

	if err := pool.Retry(func() error {
		var err error
		db, err = database.NewPostgresDB(cfg.Postgres, zlog)
		return err
	}); err != nil {
		log.Fatalf("Could not connect to PostgreSQL: %s", err)
	}

	if err := pool.Retry(func() error {
		var err error
		redisClient, err = database.NewRedisClient(context.Background(), cfg.Redis, cfg.Resilience.Redis.CommandTimeout)
		return err
	}); err != nil {
		log.Fatalf("Could not connect to Redis: %s", err)
	}

	cat, err := catalog.Load("../../config/catalog.yaml")
	if err != nil {
		log.Fatalf("Could not load catalog: %s", err)
	}

	healthChecker := database.NewDatabaseHealthChecker(db, redisClient, zlog, cfg.Resilience)
	core = service.NewService(
		postgres.NewResilientStore(db, healthChecker, zlog, cfg.Resilience),
		cat, zlog,
		service.WithCache(redis.NewResilientCacheRepository(redisClient, healthChecker, zlog,
			cfg.Cache.PageTTL, cfg.Resilience.Redis.CommandTimeout)),
	)
	if err := seed.NewSeeder(core, zlog).SeedAll(context.Background(), ""); err != nil {
		log.Fatalf("Could not seed: %s", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("Failed to listen: %s", err)
	}
	srv := grpcHandler.NewServer(grpcHandler.NewGameHandler(core, zlog), zlog, 0)
	go func() {
		_ = srv.Serve(lis)
	}()

	conn, err = grpc.NewClient(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(grpcHandler.CodecName)),
	)
	if err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}

	code := m.Run()

	_ = conn.Close()
	srv.Stop()
	_ = redisClient.Close()
	_ = pool.Purge(pgResource)
	_ = pool.Purge(rdResource)

	os.Exit(code)
}

func autoRemove(config *docker.HostConfig) {
	config.AutoRemove = true
	config.RestartPolicy = docker.RestartPolicy{Name: "no"}
}

func testConfig() *config.Config {
	pgPort, _ := strconv.Atoi(pgResource.GetPort("5432/tcp"))
	res := config.DefaultResilienceConfig()
	res.CircuitBreaker.FailureThreshold = 3
	res.Retry.MaxRetries = 1

	return &config.Config{
		Postgres: config.PostgresConfig{
			Host:         pgResource.GetBoundIP("5432/tcp"),
			Port:         pgPort,
			Username:     "postgres",
			Password:     "postgres",
			DBName:       "mln_test",
			SSLMode:      "disable",
			MaxOpenConns: 20,
		},
		Redis: config.RedisConfig{
			Addr: rdResource.GetHostPort("6379/tcp"),
		},
		Cache:      config.CacheConfig{PageTTL: time.Minute},
		Resilience: res,
	}
}

// invoke вызывает метод GameService от имени пользователя
func invoke(ctx context.Context, actor int64, method string, req, resp any, opts ...grpc.CallOption) error {
	ctx = metadata.AppendToOutgoingContext(ctx, server.MetadataActorID, strconv.FormatInt(actor, 10))
	return conn.Invoke(ctx, "/"+grpcHandler.ServiceName+"/"+method, req, resp, opts...)
}

// newUser создает пользователя с уникальным именем
func newUser(t *testing.T, prefix string) int64 {
	t.Helper()
	name := fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano()%1_000_000_000)
	u, err := core.CreateUser(context.Background(), name, service.NewUser{})
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", name, err)
	}
	return u.ID
}

// befriend проводит приглашение и согласие через gRPC
func befriend(t *testing.T, a, b int64) {
	t.Helper()
	ctx := context.Background()
	other, err := core.User(ctx, b)
	if err != nil {
		t.Fatalf("User(%d) error = %v", b, err)
	}
	if err := invoke(ctx, a, "FriendSendInvitation", &grpcHandler.UsernameRequest{Username: other.Username}, &struct{}{}); err != nil {
		t.Fatalf("FriendSendInvitation error = %v", err)
	}
	if err := invoke(ctx, b, "FriendProcessInvitation", map[string]any{"user_id": a, "accept": true}, &struct{}{}); err != nil {
		t.Fatalf("FriendProcessInvitation error = %v", err)
	}
}
