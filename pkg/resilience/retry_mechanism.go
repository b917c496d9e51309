package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryOptions настройки повторов. Используются только для чтений: изменяющие операции
// ядра не идемпотентны и не повторяются.
type RetryOptions struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	// Jitter доля случайного отклонения задержки, от 0 до 1
	Jitter float64
	// ShouldRetry решает, повторять ли ошибку. nil повторяет любую.
	ShouldRetry func(error) bool
}

// Retryable сообщает, имеет ли смысл повторить вызов после err.
// Открытый breaker и отмена контекста окончательны при любом ShouldRetry.
func (o RetryOptions) Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return o.ShouldRetry == nil || o.ShouldRetry(err)
}

// Backoff задержка перед повтором номер attempt (с нуля). spread в [-1, 1] масштабируется на Jitter.
func (o RetryOptions) Backoff(attempt int, spread float64) time.Duration {
	d := float64(o.InitialBackoff) * math.Pow(o.BackoffFactor, float64(attempt))
	d *= 1 + spread*o.Jitter
	if limit := float64(o.MaxBackoff); o.MaxBackoff > 0 && d > limit {
		d = limit
	}
	return time.Duration(d)
}

// WithRetry вызывает fn, пока она не вернет nil, окончательную ошибку или не кончатся попытки.
// Возвращается последняя ошибка fn либо ошибка контекста, если он отменен во время ожидания.
func WithRetry(ctx context.Context, logger *zap.Logger, operation string, o RetryOptions, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		switch {
		case err == nil:
			if attempt > 0 {
				logger.Info("Read succeeded after retries",
					zap.String("operation", operation),
					zap.Int("attempt", attempt+1))
			}
			return nil
		case !o.Retryable(err):
			return err
		case attempt >= o.MaxRetries:
			logger.Warn("Retry attempts exhausted",
				zap.String("operation", operation),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return err
		}

		wait := o.Backoff(attempt, rand.Float64()*2-1)
		logger.Info("Повтор чтения после ошибки",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
