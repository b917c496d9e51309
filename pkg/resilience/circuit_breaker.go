package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen возвращается, когда circuit breaker не пропускает вызов
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState представляет состояние circuit breaker
type CircuitState int

const (
	// CircuitClosed нормальное состояние
	CircuitClosed CircuitState = iota
	// CircuitOpen вызовы отклоняются до истечения resetTimeout
	CircuitOpen
	// CircuitHalfOpen пробное состояние
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// StateListener получает уведомление о смене состояния (например, для метрик)
type StateListener func(name string, state CircuitState)

// Option настраивает CircuitBreaker
type Option func(*CircuitBreaker)

// WithIgnoredErrors ошибки, которые не считаются отказом инфраструктуры
func WithIgnoredErrors(errs ...error) Option {
	return func(cb *CircuitBreaker) {
		cb.ignoredErrors = append(cb.ignoredErrors, errs...)
	}
}

// WithIgnoreFunc предикат для ошибок, которые не считаются отказом
// (ошибки пользователя не должны открывать circuit breaker)
func WithIgnoreFunc(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) {
		cb.ignoreFunc = fn
	}
}

// WithStateListener подписывает listener на смену состояния
func WithStateListener(listener StateListener) Option {
	return func(cb *CircuitBreaker) {
		cb.listener = listener
	}
}

// CircuitBreaker реализует паттерн circuit breaker для повышения отказоустойчивости
type CircuitBreaker struct {
	name             string
	state            CircuitState
	failureCount     int
	failureThreshold int
	resetTimeout     time.Duration
	lastStateChange  time.Time
	mutex            sync.RWMutex
	logger           *zap.Logger
	ignoredErrors    []error
	ignoreFunc       func(error) bool
	listener         StateListener
}

// NewCircuitBreaker создает новый экземпляр CircuitBreaker
func NewCircuitBreaker(name string, failureThreshold int, resetTimeout time.Duration, logger *zap.Logger, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		lastStateChange:  time.Now(),
		logger:           logger,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// DefaultCircuitBreakerOptions возвращает рекомендуемые настройки Circuit Breaker
func DefaultCircuitBreakerOptions() (int, time.Duration) {
	return 5, 30 * time.Second
}

// Name имя circuit breaker (цель, которую он защищает)
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute выполняет функцию с учетом состояния circuit breaker
func (cb *CircuitBreaker) Execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if !cb.allowRequest() {
		cb.logger.Warn("Circuit breaker preventing operation execution",
			zap.String("breaker", cb.name),
			zap.String("operation", operation),
			zap.String("state", cb.GetState().String()))
		return ErrCircuitOpen
	}

	err := fn(ctx)
	cb.handleResult(operation, err)

	return err
}

// allowRequest проверяет, можно ли выполнить запрос в текущем состоянии
func (cb *CircuitBreaker) allowRequest() bool {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		// Переход в полуоткрытое состояние делает handleResult под write lock
		return time.Since(cb.lastStateChange) > cb.resetTimeout
	default:
		return false
	}
}

// handleResult обрабатывает результат выполнения функции
func (cb *CircuitBreaker) handleResult(operation string, err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.lastStateChange) > cb.resetTimeout {
		cb.transition(operation, CircuitHalfOpen)
	}

	if err != nil && cb.isIgnoredError(err) {
		cb.logger.Debug("Игнорируем ошибку для circuit breaker",
			zap.String("breaker", cb.name),
			zap.String("operation", operation),
			zap.Error(err))
		err = nil
	}

	if err != nil {
		switch cb.state {
		case CircuitClosed:
			cb.failureCount++
			if cb.failureCount >= cb.failureThreshold {
				cb.transition(operation, CircuitOpen)
			}
		case CircuitHalfOpen:
			cb.transition(operation, CircuitOpen)
		}
		return
	}

	switch cb.state {
	case CircuitClosed:
		cb.failureCount = 0
	case CircuitHalfOpen:
		cb.transition(operation, CircuitClosed)
	}
}

// isIgnoredError проверяет, является ли ошибка игнорируемой
func (cb *CircuitBreaker) isIgnoredError(err error) bool {
	if cb.ignoreFunc != nil && cb.ignoreFunc(err) {
		return true
	}
	for _, ignoredErr := range cb.ignoredErrors {
		if errors.Is(err, ignoredErr) {
			return true
		}
	}
	return false
}

// transition меняет состояние; вызывается под write lock
func (cb *CircuitBreaker) transition(operation string, state CircuitState) {
	cb.state = state
	cb.lastStateChange = time.Now()

	fields := []zap.Field{
		zap.String("breaker", cb.name),
		zap.String("operation", operation),
		zap.String("state", state.String()),
	}
	switch state {
	case CircuitOpen:
		cb.logger.Warn("Circuit breaker opened", append(fields,
			zap.Int("failures", cb.failureCount),
			zap.Duration("reset_timeout", cb.resetTimeout))...)
	case CircuitClosed:
		cb.failureCount = 0
		cb.logger.Info("Circuit breaker closed", fields...)
	default:
		cb.logger.Info("Circuit breaker half-opened", fields...)
	}

	if cb.listener != nil {
		cb.listener(cb.name, state)
	}
}

// GetState возвращает текущее состояние circuit breaker
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.state
}

// Group лениво создает отдельный circuit breaker на каждый ключ
// (например, на каждый URL webhook-а)
type Group struct {
	mutex            sync.Mutex
	breakers         map[string]*CircuitBreaker
	failureThreshold int
	resetTimeout     time.Duration
	logger           *zap.Logger
	opts             []Option
}

// NewGroup создает группу circuit breaker-ов с общими настройками
func NewGroup(failureThreshold int, resetTimeout time.Duration, logger *zap.Logger, opts ...Option) *Group {
	return &Group{
		breakers:         make(map[string]*CircuitBreaker),
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		logger:           logger,
		opts:             opts,
	}
}

// Get возвращает circuit breaker для ключа
func (g *Group) Get(key string) *CircuitBreaker {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	cb, ok := g.breakers[key]
	if !ok {
		cb = NewCircuitBreaker(key, g.failureThreshold, g.resetTimeout, g.logger, g.opts...)
		g.breakers[key] = cb
	}
	return cb
}
