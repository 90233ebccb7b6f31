package domain

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType string

const (
	ErrorTypeTransient    ErrorType = "transient"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeDuplicateRef ErrorType = "duplicate_ref"
	ErrorTypeInternal     ErrorType = "internal"
)

type Error struct {
	Type    ErrorType
	Message string
	Details map[string]interface{}
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func NewTransientError(message string, cause error) Error {
	details := map[string]interface{}{}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return Error{Type: ErrorTypeTransient, Message: message, Details: details}
}

func NewValidationError(message string, details map[string]interface{}) Error {
	return Error{Type: ErrorTypeValidation, Message: message, Details: details}
}

func NewNotFoundError(resource, id string) Error {
	return Error{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{"resource": resource, "id": id},
	}
}

func NewConflictError(key string) Error {
	return Error{
		Type:    ErrorTypeConflict,
		Message: "concurrent write rejected: " + key,
		Details: map[string]interface{}{"key": key},
	}
}

func NewDuplicateRefError(externalRef string) Error {
	return Error{
		Type:    ErrorTypeDuplicateRef,
		Message: "external ref already registered: " + externalRef,
		Details: map[string]interface{}{"external_ref": externalRef},
	}
}

func NewInternalError(message string, cause error) Error {
	details := map[string]interface{}{}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return Error{Type: ErrorTypeInternal, Message: message, Details: details}
}

func typeOf(err error) (ErrorType, bool) {
	var de Error
	if errors.As(err, &de) {
		return de.Type, true
	}
	var dep *Error
	if errors.As(err, &dep) {
		return dep.Type, true
	}
	return "", false
}

func IsTransient(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeTransient
}

func IsValidation(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeValidation
}

func IsConflict(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeConflict
}

func IsDuplicateRef(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeDuplicateRef
}

func IsNotFound(err error) bool {
	if t, ok := typeOf(err); ok && t == ErrorTypeNotFound {
		return true
	}
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "not found")
}

type StorageError struct {
	Type    StorageErrorType
	Key     string
	Message string
}

func (e *StorageError) Error() string {
	return e.Message
}

type StorageErrorType int

const (
	ErrTransactionConflict StorageErrorType = iota
)

func NewTransactionConflictError(key string) *StorageError {
	return &StorageError{
		Type:    ErrTransactionConflict,
		Key:     key,
		Message: "transaction conflict: " + key,
	}
}

func IsTransactionConflict(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Type == ErrTransactionConflict
}
