// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies application errors for logging and HTTP mapping.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeLLM        ErrorType = "llm_error"
	ErrorTypeStorage    ErrorType = "storage_error"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"
)

// AppError carries the error class, a user-facing message and the cause.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError builds an AppError of the given type.
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError marks bad input from a caller.
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError marks a missing song, conversation or file.
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError marks an internal failure without a better class.
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewLLMError marks a failure talking to the model provider.
func NewLLMError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeLLM, message, originalError)
}

// NewStorageError marks a failure reading or writing the data directory.
func NewStorageError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeStorage, message, originalError)
}

// NewConflictError marks concurrent updates fighting over one resource.
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewTimeoutError marks an operation that ran out of time.
func NewTimeoutError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTimeout, message, originalError)
}

// IsValidationError checks whether err is classified as bad input.
func IsValidationError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeValidation
	}
	return false
}

// IsNotFoundError checks whether err is classified as a missing resource.
func IsNotFoundError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeNotFound
	}
	return false
}

// IsLLMError checks whether err came from the model provider.
func IsLLMError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeLLM
	}
	return false
}

// IsStorageError checks whether err came from the data directory.
func IsStorageError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeStorage
	}
	return false
}

// IsConflictError checks whether err is classified as a conflict.
func IsConflictError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeConflict
	}
	return false
}

// IsTimeoutError checks whether err is classified as a timeout.
func IsTimeoutError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeTimeout
	}
	return false
}

// generateErrorCode maps an error type to its stable wire code.
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeLLM:
		return "LLM_ERROR"
	case ErrorTypeStorage:
		return "STORAGE_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError wraps err with extra context. An existing AppError keeps its
// type and code, only the message grows.
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
