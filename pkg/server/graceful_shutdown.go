package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type shutdownStep struct {
	name string
	fn   func(context.Context) error
}

// GracefulShutdown останавливает компоненты в порядке, обратном регистрации
type GracefulShutdown struct {
	logger  *zap.Logger
	timeout time.Duration

	mu    sync.Mutex
	steps []shutdownStep

	signals chan os.Signal
	trigger chan struct{}
	done    chan struct{}
	once    sync.Once
	trOnce  sync.Once
}

// NewGracefulShutdown создает новый экземпляр GracefulShutdown и подписывается на SIGINT/SIGTERM
func NewGracefulShutdown(logger *zap.Logger, timeout time.Duration) *GracefulShutdown {
	gs := &GracefulShutdown{
		logger:  logger,
		timeout: timeout,
		signals: make(chan os.Signal, 1),
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
	signal.Notify(gs.signals, syscall.SIGINT, syscall.SIGTERM)
	return gs
}

// AddShutdownFunc регистрирует шаг завершения
func (gs *GracefulShutdown) AddShutdownFunc(name string, f func(context.Context) error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.steps = append(gs.steps, shutdownStep{name: name, fn: f})
}

// Wait блокирует выполнение до сигнала, вызова Shutdown или отмены ctx, затем выполняет шаги
func (gs *GracefulShutdown) Wait(ctx context.Context) {
	select {
	case sig := <-gs.signals:
		gs.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case <-gs.trigger:
		gs.logger.Info("Shutdown requested")
	case <-ctx.Done():
		gs.logger.Info("Context cancelled, initiating shutdown")
	}

	gs.once.Do(func() {
		signal.Stop(gs.signals)
		gs.shutdown()
		close(gs.done)
	})
}

// Done закрывается после выполнения всех шагов
func (gs *GracefulShutdown) Done() <-chan struct{} {
	return gs.done
}

// Shutdown инициирует завершение и ждет его окончания. Повторные вызовы безопасны.
func (gs *GracefulShutdown) Shutdown() {
	gs.trOnce.Do(func() { close(gs.trigger) })
	<-gs.done
}

func (gs *GracefulShutdown) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	gs.mu.Lock()
	steps := append([]shutdownStep(nil), gs.steps...)
	gs.mu.Unlock()

	for i := len(steps) - 1; i >= 0; i-- {
		if err := steps[i].fn(ctx); err != nil {
			gs.logger.Error("Error during shutdown", zap.String("step", steps[i].name), zap.Error(err))
			continue
		}
		gs.logger.Info("Stopped", zap.String("step", steps[i].name))
	}

	gs.logger.Info("Graceful shutdown completed")
}
