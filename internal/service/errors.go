package service

import (
	"errors"
	"fmt"
)

const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeRemoteWrite = "REMOTE_WRITE_FAILED"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

func NewNotFound(resource, id string) *BusinessError {
	return NewBusinessError(CodeNotFound,
		fmt.Sprintf("%s %s не найден(а)", resource, id),
		ToDetail("resource", resource),
		ToDetail("id", id),
	)
}

func NewValidationError(field, reason string) *BusinessError {
	return NewBusinessError(CodeValidation,
		fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		ToDetail("field", field),
		ToDetail("reason", reason),
	)
}

// NewRemoteWriteError - запись в хранилище не прошла, локальное состояние уже откачено
// (кроме удаления).
func NewRemoteWriteError(operation, id string, err error) *BusinessError {
	busErr := NewBusinessError(CodeRemoteWrite,
		fmt.Sprintf("Не удалось сохранить изменения (%s)", operation),
		ToDetail("operation", operation),
	)
	if id != "" {
		busErr.Details["id"] = id
	}
	busErr.Err = err
	return busErr
}

func hasCode(err error, code string) bool {
	var busErr *BusinessError
	return errors.As(err, &busErr) && busErr.Code == code
}

func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

func IsRemoteWrite(err error) bool {
	return hasCode(err, CodeRemoteWrite)
}
