package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var voteInfo = &grpc.UnaryServerInfo{FullMethod: "/mln.core.v1.GameService/ModuleVote"}

func TestTracingUnaryInterceptor_RequestID(t *testing.T) {
	interceptor := TracingUnaryInterceptor(zap.NewNop())

	t.Run("generated", func(t *testing.T) {
		var seen string
		_, err := interceptor(context.Background(), nil, voteInfo, func(ctx context.Context, _ interface{}) (interface{}, error) {
			seen = GetRequestID(ctx)
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen == "" {
			t.Error("Expected request ID to be generated")
		}
	})

	t.Run("from metadata", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(),
			metadata.Pairs(MetadataRequestID, "req-42", MetadataActorID, "7"))
		var seen string
		_, _ = interceptor(ctx, nil, voteInfo, func(ctx context.Context, _ interface{}) (interface{}, error) {
			seen = GetRequestID(ctx)
			return nil, nil
		})
		if seen != "req-42" {
			t.Errorf("Expected req-42, got %q", seen)
		}
	})
}

func TestTracingUnaryInterceptor_LogLevels(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel zapcore.Level
		wantMsg   string
	}{
		{"success", nil, zapcore.InfoLevel, "Request completed"},
		{"game rule", apperrors.ErrOutOfVotes, zapcore.InfoLevel, "Request rejected"},
		{"status rejection", status.Error(codes.FailedPrecondition, "module not ready"), zapcore.InfoLevel, "Request rejected"},
		{"failure", status.Error(codes.Internal, "boom"), zapcore.ErrorLevel, "Request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			interceptor := TracingUnaryInterceptor(zap.New(core))

			_, err := interceptor(context.Background(), nil, voteInfo, func(context.Context, interface{}) (interface{}, error) {
				return nil, tt.err
			})
			if err != tt.err {
				t.Fatalf("interceptor must return handler error unchanged, got %v", err)
			}

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 log entry, got %d", len(entries))
			}
			if entries[0].Level != tt.wantLevel || entries[0].Message != tt.wantMsg {
				t.Errorf("Expected %v %q, got %v %q", tt.wantLevel, tt.wantMsg, entries[0].Level, entries[0].Message)
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var seen string
	handler := LoggingMiddleware(zap.NewNop(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "http-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != "http-1" {
		t.Errorf("Expected request ID http-1, got %q", seen)
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status to pass through, got %d", w.Code)
	}
}

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ctx := context.WithValue(context.Background(), RequestIDKey, "abc")
	WithRequestID(ctx, logger).Info("hello")
	WithRequestID(context.Background(), logger).Info("plain")

	entries := logs.All()
	if got := entries[0].ContextMap()["request_id"]; got != "abc" {
		t.Errorf("Expected request_id field, got %v", got)
	}
	if _, ok := entries[1].ContextMap()["request_id"]; ok {
		t.Error("Expected no request_id without context value")
	}
}
