package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config содержит все настройки приложения
type Config struct {
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Seed       SeedConfig       `mapstructure:"seed"`
	Log        LogConfig        `mapstructure:"log"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
}

// PostgresConfig содержит настройки для PostgreSQL
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// MaxOpenConns ограничивает пул; транзакции ядра держат соединение до коммита
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

// DSN строка подключения для gorm postgres
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig содержит настройки для Redis
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GRPCConfig порты gRPC, health и metrics серверов
type GRPCConfig struct {
	Port        int `mapstructure:"port"`
	HealthPort  int `mapstructure:"health_port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

// CatalogConfig путь к YAML каталогу игры
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// WebhookConfig настройки исходящих уведомлений
type WebhookConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// CacheConfig настройки кэша страниц
type CacheConfig struct {
	PageTTL time.Duration `mapstructure:"page_ttl"`
}

// SeedConfig начальные данные
type SeedConfig struct {
	// DevUser имя пользователя для разработки; пусто - не создавать
	DevUser string `mapstructure:"dev_user"`
}

// LogConfig уровень логирования (переопределяется LOG_LEVEL)
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig загружает настройки: .env, затем config.yaml, затем переменные окружения.
// Пути поиска config.yaml можно передать явно.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	loadFromEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет значения, без которых сервис не запустится корректно
func (c *Config) Validate() error {
	var errs []error
	if c.Catalog.Path == "" {
		errs = append(errs, errors.New("catalog.path is required"))
	}
	if c.GRPC.Port <= 0 {
		errs = append(errs, fmt.Errorf("grpc.port must be positive, got %d", c.GRPC.Port))
	}
	if c.Webhook.Timeout <= 0 || c.Webhook.Timeout > time.Second {
		errs = append(errs, fmt.Errorf("webhook.timeout must be in (0, 1s], got %s", c.Webhook.Timeout))
	}
	if c.Cache.PageTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.page_ttl must be positive, got %s", c.Cache.PageTTL))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.username", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "mln")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 25)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.health_port", 50151)
	v.SetDefault("grpc.metrics_port", 50251)

	v.SetDefault("catalog.path", "config/catalog.yaml")

	v.SetDefault("webhook.timeout", time.Second)
	v.SetDefault("webhook.failure_threshold", 3)
	v.SetDefault("webhook.reset_timeout", time.Minute)

	v.SetDefault("cache.page_ttl", 5*time.Minute)

	v.SetDefault("log.level", "info")

	def := DefaultResilienceConfig()
	v.SetDefault("resilience.circuit_breaker.failure_threshold", def.CircuitBreaker.FailureThreshold)
	v.SetDefault("resilience.circuit_breaker.reset_timeout", def.CircuitBreaker.ResetTimeout)
	v.SetDefault("resilience.retry.max_retries", def.Retry.MaxRetries)
	v.SetDefault("resilience.retry.initial_backoff", def.Retry.InitialBackoff)
	v.SetDefault("resilience.retry.max_backoff", def.Retry.MaxBackoff)
	v.SetDefault("resilience.retry.backoff_factor", def.Retry.BackoffFactor)
	v.SetDefault("resilience.retry.jitter", def.Retry.Jitter)
	v.SetDefault("resilience.database.command_timeout", def.Database.CommandTimeout)
	v.SetDefault("resilience.redis.command_timeout", def.Redis.CommandTimeout)
}

// loadFromEnv поддерживает короткие имена переменных из docker-compose
func loadFromEnv(v *viper.Viper) {
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		v.Set("postgres.host", dbHost)
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			v.Set("postgres.port", port)
		}
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		v.Set("postgres.username", dbUser)
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		v.Set("postgres.password", dbPassword)
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		v.Set("postgres.dbname", dbName)
	}

	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		redisPort := "6379"
		if port := os.Getenv("REDIS_PORT"); port != "" {
			redisPort = port
		}
		v.Set("redis.addr", redisHost+":"+redisPort)
	}

	if grpcPort := os.Getenv("GRPC_PORT"); grpcPort != "" {
		if port, err := strconv.Atoi(grpcPort); err == nil {
			v.Set("grpc.port", port)
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		v.Set("log.level", level)
	}
}
