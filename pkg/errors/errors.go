package errors

import (
	"errors"
	"fmt"
)

var (
	// JWT и токены
	ErrInvalidSigningMethod = fmt.Errorf("неверный метод подписи токена")
	ErrInvalidToken         = fmt.Errorf("недопустимый токен")
	ErrTokenExpired         = fmt.Errorf("срок действия токена истёк")

	// Авторизация
	ErrEmptyAuthHeader   = fmt.Errorf("заголовок авторизации отсутствует")
	ErrInvalidAuthHeader = fmt.Errorf("неверный формат заголовка авторизации")
	ErrUnauthorized      = fmt.Errorf("неавторизован")
	ErrForbidden         = fmt.Errorf("доступ запрещён")

	// Контекст
	ErrUserIDNotFoundInContext = fmt.Errorf("UserID не найден в контексте запроса")

	// Общие
	ErrNotFound   = fmt.Errorf("запись не найдена")
	ErrBadRequest = fmt.Errorf("неверный запрос")
	ErrConflict   = fmt.Errorf("конфликт данных")
)

// Kind - категория доменной ошибки. От неё зависит HTTP-код в контроллерах.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindValidation:
		return "VALIDATION"
	case KindConflict:
		return "CONFLICT"
	case KindForbidden:
		return "FORBIDDEN"
	default:
		return "INTERNAL"
	}
}

// DomainError - ошибка бизнес-логики с сообщением, пригодным для показа пользователю.
type DomainError struct {
	Kind    Kind
	Message string
	Context map[string]interface{}
}

func (e *DomainError) Error() string { return e.Message }

// Unwrap позволяет писать errors.Is(err, apperrors.ErrNotFound) для доменных ошибок.
func (e *DomainError) Unwrap() error {
	switch e.Kind {
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrBadRequest
	case KindConflict:
		return ErrConflict
	case KindForbidden:
		return ErrForbidden
	default:
		return nil
	}
}

// With добавляет пару ключ-значение в контекст ошибки.
func (e *DomainError) With(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newDomainError(kind Kind, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) *DomainError {
	return newDomainError(KindNotFound, format, args...)
}

func NewValidationError(format string, args ...interface{}) *DomainError {
	return newDomainError(KindValidation, format, args...)
}

func NewConflictError(format string, args ...interface{}) *DomainError {
	return newDomainError(KindConflict, format, args...)
}

func NewForbiddenError(format string, args ...interface{}) *DomainError {
	return newDomainError(KindForbidden, format, args...)
}

// KindOf определяет категорию ошибки, в том числе для голых sentinel-ошибок.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrBadRequest):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	}
	return KindInternal
}

// HttpError - ошибка транспортного уровня с кодом ответа.
type HttpError struct {
	Code    int
	Message string
	Err     error
	Context map[string]interface{}
	Details interface{}
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error, context map[string]interface{}) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err, Context: context}
}
