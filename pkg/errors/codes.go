package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeStorageError       ErrorCode = "COMMON_014"
	ErrCodeMessagingError     ErrorCode = "COMMON_015"
	ErrCodeCancelled          ErrorCode = "COMMON_016"
)

// Aliases
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// Synthesis pipeline error codes
const (
	ErrCodeFeatureMissing     ErrorCode = "SYN_001"
	ErrCodeUnknownSubstance   ErrorCode = "SYN_002"
	ErrCodePredictionNotFound ErrorCode = "SYN_003"
	ErrCodeUnknownStage       ErrorCode = "SYN_004"
	ErrCodeNonFiniteFeature   ErrorCode = "SYN_005"
	ErrCodeInvalidCategorical ErrorCode = "SYN_006"
)

// Artifact error codes
const (
	ErrCodeArtifactNotFound ErrorCode = "ART_001"
	ErrCodeArtifactLoad     ErrorCode = "ART_002"
	ErrCodeArtifactShape    ErrorCode = "ART_003"
)

// AI/ML error codes
const (
	ErrCodeAIModelNotAvailable ErrorCode = "AI_001"
	ErrCodeAIInferenceFailed   ErrorCode = "AI_002"
	ErrCodeAIInputInvalid      ErrorCode = "AI_004"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessagingError:     http.StatusInternalServerError,
	ErrCodeCancelled:          499,

	ErrCodeFeatureMissing:     http.StatusInternalServerError,
	ErrCodeUnknownSubstance:   http.StatusUnprocessableEntity,
	ErrCodePredictionNotFound: http.StatusNotFound,
	ErrCodeUnknownStage:       http.StatusBadRequest,
	ErrCodeNonFiniteFeature:   http.StatusUnprocessableEntity,
	ErrCodeInvalidCategorical: http.StatusInternalServerError,

	ErrCodeArtifactNotFound: http.StatusNotFound,
	ErrCodeArtifactLoad:     http.StatusServiceUnavailable,
	ErrCodeArtifactShape:    http.StatusServiceUnavailable,

	ErrCodeAIModelNotAvailable: http.StatusServiceUnavailable,
	ErrCodeAIInferenceFailed:   http.StatusInternalServerError,
	ErrCodeAIInputInvalid:      http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeStorageError:       "storage error",
	ErrCodeMessagingError:     "messaging error",
	ErrCodeCancelled:          "request cancelled",

	ErrCodeFeatureMissing:     "required feature missing",
	ErrCodeUnknownSubstance:   "unknown substance",
	ErrCodePredictionNotFound: "prediction not found",
	ErrCodeUnknownStage:       "unknown pipeline stage",
	ErrCodeNonFiniteFeature:   "feature value is not finite",
	ErrCodeInvalidCategorical: "categorical prediction cannot be used as a numeric feature",

	ErrCodeArtifactNotFound: "artifact not registered",
	ErrCodeArtifactLoad:     "artifact load failed",
	ErrCodeArtifactShape:    "artifact shape mismatch",

	ErrCodeAIModelNotAvailable: "model not available",
	ErrCodeAIInferenceFailed:   "inference failed",
	ErrCodeAIInputInvalid:      "invalid model input",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
