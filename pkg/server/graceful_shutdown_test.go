package server

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGracefulShutdown_LIFOOrder(t *testing.T) {
	gs := NewGracefulShutdown(zap.NewNop(), 100*time.Millisecond)

	var order []string
	for _, name := range []string{"postgres", "redis", "grpc"} {
		name := name
		gs.AddShutdownFunc(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	go gs.Wait(context.Background())
	gs.Shutdown()

	want := []string{"grpc", "redis", "postgres"}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Expected shutdown order %v, got %v", want, order)
			break
		}
	}
}

func TestGracefulShutdown_ErrorDoesNotStopOtherSteps(t *testing.T) {
	gs := NewGracefulShutdown(zap.NewNop(), 100*time.Millisecond)

	called := map[string]bool{}
	gs.AddShutdownFunc("first", func(context.Context) error { called["first"] = true; return nil })
	gs.AddShutdownFunc("failing", func(context.Context) error { called["failing"] = true; return errors.New("boom") })
	gs.AddShutdownFunc("last", func(context.Context) error { called["last"] = true; return nil })

	gs.shutdown()

	for _, name := range []string{"first", "failing", "last"} {
		if !called[name] {
			t.Errorf("step %q was not called", name)
		}
	}
}

func TestGracefulShutdown_StepsShareTimeout(t *testing.T) {
	gs := NewGracefulShutdown(zap.NewNop(), 30*time.Millisecond)

	var deadlineErr error
	gs.AddShutdownFunc("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			deadlineErr = ctx.Err()
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	start := time.Now()
	gs.shutdown()

	if !errors.Is(deadlineErr, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", deadlineErr)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("shutdown ignored its timeout")
	}
}

func TestGracefulShutdown_Triggers(t *testing.T) {
	t.Run("context", func(t *testing.T) {
		gs := NewGracefulShutdown(zap.NewNop(), 100*time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		go gs.Wait(ctx)
		cancel()

		select {
		case <-gs.Done():
		case <-time.After(time.Second):
			t.Fatal("shutdown did not complete after context cancellation")
		}
	})

	t.Run("signal", func(t *testing.T) {
		gs := NewGracefulShutdown(zap.NewNop(), 100*time.Millisecond)
		go gs.Wait(context.Background())
		gs.signals <- syscall.SIGTERM

		select {
		case <-gs.Done():
		case <-time.After(time.Second):
			t.Fatal("shutdown did not complete after signal")
		}
	})
}

func TestGracefulShutdown_ConcurrentShutdowns(t *testing.T) {
	gs := NewGracefulShutdown(zap.NewNop(), 100*time.Millisecond)

	var mu sync.Mutex
	calls := 0
	gs.AddShutdownFunc("counter", func(context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	go gs.Wait(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gs.Shutdown()
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("Expected shutdown steps to run once, ran %d times", calls)
	}
}
