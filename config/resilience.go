package config

import (
	"time"
)

// ResilienceConfig содержит настройки для механизмов отказоустойчивости
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Retry          RetryConfig          `mapstructure:"retry"`
	Database       TimeoutConfig        `mapstructure:"database"`
	Redis          TimeoutConfig        `mapstructure:"redis"`
}

// CircuitBreakerConfig настройки circuit breaker хранилищ
type CircuitBreakerConfig struct {
	// FailureThreshold количество сбоев, после которого circuit breaker откроется
	FailureThreshold int `mapstructure:"failure_threshold"`
	// ResetTimeout время до перехода в полуоткрытое состояние
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// RetryConfig настройки повторов. Повторяются только чтения.
type RetryConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	BackoffFactor  float64       `mapstructure:"backoff_factor"`
	Jitter         float64       `mapstructure:"jitter"`
}

// TimeoutConfig таймаут команды хранилища
type TimeoutConfig struct {
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// DefaultResilienceConfig возвращает конфигурацию отказоустойчивости по умолчанию
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries:     2,
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     time.Second,
			BackoffFactor:  2.0,
			Jitter:         0.2,
		},
		Database: TimeoutConfig{CommandTimeout: 5 * time.Second},
		Redis:    TimeoutConfig{CommandTimeout: 500 * time.Millisecond},
	}
}
