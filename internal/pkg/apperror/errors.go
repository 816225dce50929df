package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeAuthorization ErrorCode = "AUTHORIZATION_ERROR"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeStateConflict ErrorCode = "STATE_CONFLICT"
	ErrCodeDuplicate     ErrorCode = "DUPLICATE"
	ErrCodeEscrow        ErrorCode = "ESCROW_ERROR"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is позволяет сравнивать ошибки через errors.Is по коду и сообщению,
// чтобы sentinel-значения ниже срабатывали и после Wrap.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeAuthorization:
		return http.StatusForbidden
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeStateConflict, ErrCodeDuplicate:
		return http.StatusConflict
	case ErrCodeEscrow:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

func IsStateConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeStateConflict
}

func IsEscrow(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeEscrow
}

// Ошибки жизненного цикла заказа.
var (
	ErrInvalidJobSpec    = New(ErrCodeValidation, "некорректные параметры заказа")
	ErrJobNotOpen        = New(ErrCodeStateConflict, "заказ уже не открыт для откликов")
	ErrInvalidTransition = New(ErrCodeStateConflict, "недопустимый переход статуса заказа")
	ErrJobDisputed       = New(ErrCodeStateConflict, "по заказу открыт спор")
	ErrJobNotDisputable  = New(ErrCodeStateConflict, "по заказу нельзя открыть спор в текущем статусе")
	ErrNotAuthorized     = New(ErrCodeAuthorization, "недостаточно прав для этого действия")
)

// Ошибки escrow.
var (
	ErrAlreadyLocked   = New(ErrCodeStateConflict, "средства по заказу уже заблокированы на другую сумму")
	ErrNothingLocked   = New(ErrCodeStateConflict, "по заказу нет заблокированных средств")
	ErrAlreadyReleased = New(ErrCodeDuplicate, "средства по заказу уже выплачены")
	ErrAmountMismatch  = New(ErrCodeValidation, "сумма долей не совпадает с заблокированной суммой")
)

// Ошибки арбитража.
var (
	ErrDuplicateDispute   = New(ErrCodeDuplicate, "по заказу уже открыт спор")
	ErrVotingClosed       = New(ErrCodeStateConflict, "голосование по спору завершено")
	ErrDuplicateVote      = New(ErrCodeDuplicate, "арбитр уже голосовал по этому спору")
	ErrConflictOfInterest = New(ErrCodeAuthorization, "участник сделки не может голосовать по собственному спору")
	ErrAlreadyResolved    = New(ErrCodeDuplicate, "спор уже разрешён")
	ErrBelowQuorum        = New(ErrCodeStateConflict, "кворум голосов не набран")
)

// Ошибки отзывов.
var ErrDuplicateRating = New(ErrCodeDuplicate, "отзыв по этому заказу уже оставлен")

// Общие ошибки.
var (
	ErrJobNotFound     = New(ErrCodeNotFound, "заказ не найден")
	ErrDisputeNotFound = New(ErrCodeNotFound, "спор не найден")
	ErrProfileNotFound = New(ErrCodeNotFound, "профиль не найден")
	ErrUserNotFound    = New(ErrCodeNotFound, "пользователь не найден")
	ErrUnauthorized    = New(ErrCodeUnauthorized, "требуется авторизация")
)
