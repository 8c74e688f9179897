package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Sync errors
	ErrCodeDecodeFailed      ErrorCode = "DECODE_FAILED"
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeUnknownDomain     ErrorCode = "UNKNOWN_DOMAIN"

	// Relay errors
	ErrCodeRelayUnavailable ErrorCode = "RELAY_UNAVAILABLE"
	ErrCodeRelayRunning     ErrorCode = "RELAY_RUNNING"

	// General errors
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
)

// NestError represents a structured error with context
type NestError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *NestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *NestError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *NestError) WithDetail(key string, value interface{}) *NestError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *NestError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

func New(code ErrorCode, message string) *NestError {
	return &NestError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code ErrorCode, message string) *NestError {
	return &NestError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is reports whether err, or anything it wraps, is a NestError with the given code.
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the code of the outermost NestError in the chain.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	nestErr, ok := err.(*NestError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return nestErr.Code
}

// Detail returns a detail value from the outermost NestError in the chain.
func Detail(err error, key string) (interface{}, bool) {
	for err != nil {
		if nestErr, ok := err.(*NestError); ok {
			v, ok := nestErr.Details[key]
			return v, ok
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
