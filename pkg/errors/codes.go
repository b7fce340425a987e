package errors

import "net/http"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every module.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeTimeout            ErrorCode = "COMMON_007"
	ErrCodeValidation         ErrorCode = "COMMON_008"
	ErrCodeSerialization      ErrorCode = "COMMON_009"
	ErrCodeDatabaseError      ErrorCode = "COMMON_010"
	ErrCodeCacheError         ErrorCode = "COMMON_011"
	ErrCodeExternalService    ErrorCode = "COMMON_012"
)

// Sentinel pseudo-codes used by GetCode.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Catalog module error codes.
const (
	ErrCodeEntryNotFound     ErrorCode = "CAT_001"
	ErrCodeVersionNotFound   ErrorCode = "CAT_002"
	ErrCodeInvalidCode       ErrorCode = "CAT_003"
	ErrCodeOrphanParent      ErrorCode = "CAT_004"
	ErrCodeEmptySnapshot     ErrorCode = "CAT_005"
	ErrCodeIngestFailed      ErrorCode = "CAT_006"
	ErrCodeSnapshotImmutable ErrorCode = "CAT_007"
)

// Classification module error codes.
const (
	ErrCodeNoCandidate        ErrorCode = "CLS_001"
	ErrCodeMatcherTimeout     ErrorCode = "CLS_002"
	ErrCodeMatcherUnavailable ErrorCode = "CLS_003"
	ErrCodeRuleEngineFailed   ErrorCode = "CLS_004"
	ErrCodeResultNotFound     ErrorCode = "CLS_005"
	ErrCodeEmbeddingFailed    ErrorCode = "CLS_006"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes for the web layer.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,

	ErrCodeEntryNotFound:     http.StatusNotFound,
	ErrCodeVersionNotFound:   http.StatusNotFound,
	ErrCodeInvalidCode:       http.StatusBadRequest,
	ErrCodeOrphanParent:      http.StatusUnprocessableEntity,
	ErrCodeEmptySnapshot:     http.StatusUnprocessableEntity,
	ErrCodeIngestFailed:      http.StatusInternalServerError,
	ErrCodeSnapshotImmutable: http.StatusConflict,

	ErrCodeNoCandidate:        http.StatusNotFound,
	ErrCodeMatcherTimeout:     http.StatusGatewayTimeout,
	ErrCodeMatcherUnavailable: http.StatusServiceUnavailable,
	ErrCodeRuleEngineFailed:   http.StatusInternalServerError,
	ErrCodeResultNotFound:     http.StatusNotFound,
	ErrCodeEmbeddingFailed:    http.StatusBadGateway,
}

// HTTPStatus returns the HTTP status associated with the code, defaulting to
// 500 for codes with no explicit mapping.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := ErrorCodeHTTPStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}
