package server

import (
	"context"
	"net/http"
	"time"

	"MLNCoreService/pkg/apperrors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const (
	// RequestIDKey ключ для request ID в контексте
	RequestIDKey contextKey = "request_id"

	// MetadataRequestID заголовок с request ID, который может прислать клиент
	MetadataRequestID = "x-request-id"
	// MetadataActorID заголовок с ID действующего пользователя
	MetadataActorID = "x-actor-id"
)

// TracingUnaryInterceptor присваивает запросу request ID и логирует его выполнение.
// Отказы по правилам игры логируются на уровне Info, сбои на уровне Error.
func TracingUnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		requestID := firstMetadata(ctx, MetadataRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx = context.WithValue(ctx, RequestIDKey, requestID)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("request_id", requestID),
			zap.String("actor", firstMetadata(ctx, MetadataActorID)),
		}
		logger.Debug("Start processing request", fields...)

		startTime := time.Now()
		resp, err := handler(ctx, req)
		fields = append(fields, zap.Duration("duration", time.Since(startTime)))

		switch {
		case err == nil:
			logger.Info("Request completed", fields...)
		case isRejection(err):
			logger.Info("Request rejected", append(fields,
				zap.String("code", status.Code(err).String()),
				zap.Error(err))...)
		default:
			logger.Error("Request failed", append(fields, zap.Error(err))...)
		}

		return resp, err
	}
}

// LoggingMiddleware создает middleware для HTTP запросов (health, metrics)
func LoggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		r = r.WithContext(context.WithValue(r.Context(), RequestIDKey, requestID))

		startTime := time.Now()
		ww := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		logger.Debug("HTTP request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
			zap.Int("status", ww.statusCode),
			zap.Duration("duration", time.Since(startTime)))
	})
}

// responseWriterWrapper запоминает код ответа
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// isRejection сообщает, что запрос отклонен правилами игры, а не сбоем
func isRejection(err error) bool {
	if apperrors.IsUserError(err) {
		return true
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists, codes.NotFound,
		codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// GetRequestID извлекает request ID из контекста
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID добавляет request ID в логгер
func WithRequestID(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if requestID := GetRequestID(ctx); requestID != "" {
		return logger.With(zap.String("request_id", requestID))
	}
	return logger
}
