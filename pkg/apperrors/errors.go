package apperrors

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Kind классифицирует ошибку ядра
type Kind int

const (
	// KindInternal нарушение инварианта или сбой инфраструктуры
	KindInternal Kind = iota
	// KindValidation некорректные входные данные
	KindValidation
	// KindPrecondition не выполнено игровое предусловие
	KindPrecondition
	// KindConflict нарушение ограничения уникальности
	KindConflict
	// KindNotFound сущность не найдена
	KindNotFound
	// KindUnauthenticated неверный или просроченный токен
	KindUnauthenticated
	// KindForbidden клиенту запрещено действие
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Code идентификатор ошибки из каталога сообщений. Значения должны совпадать с клиентом побитово.
type Code int64

const (
	CodeOperationFailed         Code = 46304
	CodeYouAreBlocked           Code = 46305
	CodeAlreadyFriends          Code = 46307
	CodeInvitationAlreadyExists Code = 46308
	CodeItemMissing             Code = 46309
	CodeItemIsNotMailable       Code = 46310
	CodeModuleAlreadySetup      Code = 46311
	CodeModuleIsNotReady        Code = 46312
	CodeOutOfVotes              Code = 46313
	CodeMLNOffline              Code = 47570
	CodeMemberNotFound          Code = 52256
)

// AppError ошибка ядра с видом и кодом из каталога
type AppError struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по виду и коду, чтобы sentinel-ошибки работали с errors.Is
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code && t.Message == e.Message
}

func newError(kind Kind, code Code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

// Игровые предусловия
var (
	ErrInsufficientItems  = newError(KindPrecondition, CodeItemMissing, "insufficient items")
	ErrOutOfVotes         = newError(KindPrecondition, CodeOutOfVotes, "out of votes")
	ErrModuleNotReady     = newError(KindPrecondition, CodeModuleIsNotReady, "module is not ready")
	ErrModuleAlreadySetup = newError(KindPrecondition, CodeModuleAlreadySetup, "module is already set up")
	ErrNotFriends         = newError(KindPrecondition, CodeOperationFailed, "users are not friends")
	ErrYouAreBlocked      = newError(KindPrecondition, CodeYouAreBlocked, "you are blocked")
	ErrAlreadyFriends     = newError(KindPrecondition, CodeAlreadyFriends, "already friends")
	ErrInvitationExists   = newError(KindPrecondition, CodeInvitationAlreadyExists, "invitation already exists")
	ErrMemberNotFound     = newError(KindPrecondition, CodeMemberNotFound, "member not found")
	ErrCannotClickOwn     = newError(KindPrecondition, CodeOperationFailed, "cannot click own module")
	ErrItemNotMailable    = newError(KindPrecondition, CodeItemIsNotMailable, "item is not mailable")
)

// Ошибки внешних клиентов
var (
	ErrUnauthenticated = newError(KindUnauthenticated, CodeOperationFailed, "invalid or expired token")
	ErrForbidden       = newError(KindForbidden, CodeOperationFailed, "forbidden")
)

var (
	// ErrNotFound возвращается, когда запись не найдена (обобщенная ошибка)
	ErrNotFound = newError(KindNotFound, CodeOperationFailed, "record not found")

	// ErrCacheMiss возвращается, когда запись не найдена в кэше
	ErrCacheMiss = redis.Nil

	// ErrRecordNotFound возвращается, когда запись не найдена в базе данных
	ErrRecordNotFound = gorm.ErrRecordNotFound

	// IgnoredErrors содержит список всех игнорируемых ошибок для circuit breaker
	IgnoredErrors = []error{
		ErrNotFound,
		ErrCacheMiss,
		ErrRecordNotFound,
	}
)

// Validation создает ошибку валидации входных данных
func Validation(format string, args ...any) *AppError {
	return newError(KindValidation, CodeOperationFailed, fmt.Sprintf(format, args...))
}

// NotFound создает ошибку отсутствующей сущности
func NotFound(format string, args ...any) *AppError {
	return &AppError{Kind: KindNotFound, Code: CodeOperationFailed, Message: fmt.Sprintf(format, args...), Err: ErrNotFound}
}

// Conflict оборачивает нарушение уникальности
func Conflict(message string, err error) *AppError {
	return &AppError{Kind: KindConflict, Code: CodeOperationFailed, Message: message, Err: err}
}

// Internal оборачивает нарушение инварианта
func Internal(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Code: CodeOperationFailed, Message: message, Err: err}
}

// KindOf возвращает вид ошибки; ошибки вне таксономии считаются внутренними
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if IsNotFound(err) {
		return KindNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return KindConflict
	}
	return KindInternal
}

// CodeOf возвращает идентификатор ошибки из каталога
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeOperationFailed
}

// IsUserError сообщает, вызвана ли ошибка действиями пользователя, а не сбоем инфраструктуры
func IsUserError(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindPrecondition, KindNotFound, KindConflict, KindUnauthenticated, KindForbidden:
		return true
	default:
		return false
	}
}

// IsNotFound проверяет, является ли ошибка ошибкой "запись не найдена"
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind == KindNotFound {
		return true
	}

	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCacheMiss) ||
		errors.Is(err, ErrRecordNotFound)
}
