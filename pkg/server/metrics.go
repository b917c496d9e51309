package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"MLNCoreService/pkg/apperrors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Результаты операций в метриках
const (
	resultSuccess  = "success"
	resultRejected = "rejected"
	resultError    = "error"
)

var (
	// grpcRequestDuration длительность gRPC запросов
	grpcRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	grpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	// dbOperationDuration длительность транзакций операций ядра
	dbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Duration of core game operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	dbOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_operations_total",
			Help: "Total number of core game operations",
		},
		[]string{"operation", "status"},
	)

	// cacheOperationDuration длительность операций с кэшем страниц
	cacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Duration of page cache operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	cacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of page cache operations",
		},
		[]string{"operation", "status"},
	)

	// circuitBreakerState состояние circuit breaker-а по имени
	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "State of circuit breaker (0: closed, 1: open, 2: half-open)",
		},
		[]string{"name"},
	)

	// webhookDeliveries исходящие уведомления по событию и результату
	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"event", "status"},
	)
)

// MetricsServer запускает HTTP сервер для Prometheus
func MetricsServer(port int, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting metrics server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Без метрик сервис продолжает работать
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return srv
}

// MetricsUnaryInterceptor создает gRPC перехватчик для сбора метрик
func MetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		startTime := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err).String()
		grpcRequestDuration.WithLabelValues(info.FullMethod, code).Observe(time.Since(startTime).Seconds())
		grpcRequestsTotal.WithLabelValues(info.FullMethod, code).Inc()

		return resp, err
	}
}

// operationResult отделяет отказы по правилам игры от сбоев
func operationResult(err error) string {
	switch {
	case err == nil:
		return resultSuccess
	case apperrors.IsUserError(err):
		return resultRejected
	default:
		return resultError
	}
}

// RecordDBOperation записывает метрики операции ядра
func RecordDBOperation(operation string, duration time.Duration, err error) {
	result := operationResult(err)
	dbOperationDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
	dbOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordCacheOperation записывает метрики операции с кэшем; промах не считается ошибкой
func RecordCacheOperation(operation string, duration time.Duration, err error) {
	result := resultSuccess
	switch {
	case errors.Is(err, apperrors.ErrCacheMiss):
		result = "miss"
	case err != nil:
		result = resultError
	}
	cacheOperationDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
	cacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordCircuitBreakerStateChange записывает изменение состояния circuit breaker
func RecordCircuitBreakerStateChange(name string, state int) {
	circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordWebhookDelivery учитывает попытку доставки webhook-а
// (status: delivered, failed, skipped)
func RecordWebhookDelivery(event, status string) {
	webhookDeliveries.WithLabelValues(event, status).Inc()
}
