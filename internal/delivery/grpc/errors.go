package grpc

import (
	"context"
	"errors"
	"strconv"

	"MLNCoreService/pkg/apperrors"
	"MLNCoreService/pkg/legacy"
	"MLNCoreService/pkg/resilience"
	"MLNCoreService/pkg/server"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	// TrailerErrorID идентификатор ошибки из каталога старого клиента
	TrailerErrorID = "x-error-id"
	// TrailerLegacyResponse конверт <response type="T"><error>N</error></response>
	TrailerLegacyResponse = "x-legacy-response"
)

// grpcCode переводит вид ошибки ядра в код gRPC
func grpcCode(err error) codes.Code {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return codes.Unavailable
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return codes.InvalidArgument
	case apperrors.KindPrecondition:
		return codes.FailedPrecondition
	case apperrors.KindConflict:
		return codes.AlreadyExists
	case apperrors.KindNotFound:
		return codes.NotFound
	case apperrors.KindUnauthenticated:
		return codes.Unauthenticated
	case apperrors.KindForbidden:
		return codes.PermissionDenied
	default:
		return codes.Internal
	}
}

// errorID идентификатор ошибки, который видит старый клиент
func errorID(err error) apperrors.Code {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return apperrors.CodeMLNOffline
	}
	return apperrors.CodeOf(err)
}

// toStatus превращает ошибку операции в статус и кладет ее идентификатор в трейлеры
func (h *GameHandler) toStatus(ctx context.Context, method string, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := grpcCode(err)
	id := int64(errorID(err))

	trailer := metadata.Pairs(TrailerErrorID, strconv.FormatInt(id, 10))
	if envelope, encErr := legacy.EncodeResponse(legacy.Response{Type: method, Error: &id}); encErr == nil {
		trailer.Append(TrailerLegacyResponse, envelope)
	}
	if trErr := grpc.SetTrailer(ctx, trailer); trErr != nil {
		h.logger.Debug("Не удалось установить трейлер", zap.String("method", method), zap.Error(trErr))
	}

	if code == codes.Internal {
		server.WithRequestID(ctx, h.logger).Error("Internal error",
			zap.String("method", method),
			zap.Error(err))
		return status.Error(code, "operation failed")
	}
	return status.Error(code, err.Error())
}
