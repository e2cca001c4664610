package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
)

// Liquid handling error codes
const (
	// ErrCodeNoAvailableWell is used when the current plate has no free wells.
	// Mapped to 409 so submitting clients back off and retry later.
	ErrCodeNoAvailableWell = "ERR_NO_AVAILABLE_WELL"
	// ErrCodeNoAvailableSolution is used when no stock vial can satisfy a request
	ErrCodeNoAvailableSolution = "ERR_NO_AVAILABLE_SOLUTION"
	// ErrCodeNoAvailableWaste is used when no waste vial has enough headroom
	ErrCodeNoAvailableWaste = "ERR_NO_AVAILABLE_WASTE"
	// ErrCodeInsufficientStock is used when stock volume is insufficient
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	// ErrCodeOverfill is used when a deposit would exceed vessel capacity
	ErrCodeOverfill = "ERR_OVERFILL"
	// ErrCodeOverdraft is used when a withdrawal would exceed available volume
	ErrCodeOverdraft = "ERR_OVERDRAFT"
	// ErrCodeVesselPairing is used when a transfer pairs incompatible vessels
	ErrCodeVesselPairing = "ERR_VESSEL_PAIRING"
)

// Electrochemistry error codes
const (
	// ErrCodeOCPFailure is used when an open circuit potential check fails
	ErrCodeOCPFailure = "ERR_OCP_FAILURE"
	// ErrCodeDepositionFailure is used when the deposition stage fails
	ErrCodeDepositionFailure = "ERR_DEPOSITION_FAILURE"
	// ErrCodeCharacterizationFailure is used when the characterization sweep fails
	ErrCodeCharacterizationFailure = "ERR_CHARACTERIZATION_FAILURE"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeTooManyRequests is an alias for rate limiting
	ErrCodeTooManyRequests = "ERR_TOO_MANY_REQUESTS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,

	// Liquid handling errors
	ErrCodeNoAvailableWell:     http.StatusConflict,
	ErrCodeNoAvailableSolution: http.StatusUnprocessableEntity,
	ErrCodeNoAvailableWaste:    http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:   http.StatusUnprocessableEntity,
	ErrCodeOverfill:            http.StatusUnprocessableEntity,
	ErrCodeOverdraft:           http.StatusUnprocessableEntity,
	ErrCodeVesselPairing:       http.StatusUnprocessableEntity,

	// Electrochemistry errors -> 422 Unprocessable Entity
	ErrCodeOCPFailure:              http.StatusUnprocessableEntity,
	ErrCodeDepositionFailure:       http.StatusUnprocessableEntity,
	ErrCodeCharacterizationFailure: http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeTooManyRequests: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to the standardized codes
// used on the wire
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":             ErrCodeNotFound,
	"ALREADY_EXISTS":        ErrCodeAlreadyExists,
	"INVALID_INPUT":         ErrCodeInvalidInput,
	"INVALID_STATE":         ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":  ErrCodeConcurrencyConflict,
	"NO_AVAILABLE_WELL":     ErrCodeNoAvailableWell,
	"NO_AVAILABLE_SOLUTION": ErrCodeNoAvailableSolution,
	"NO_AVAILABLE_WASTE":    ErrCodeNoAvailableWaste,
	"INSUFFICIENT_STOCK":    ErrCodeInsufficientStock,
	"OVERFILL":              ErrCodeOverfill,
	"OVERDRAFT":             ErrCodeOverdraft,
	"VESSEL_PAIRING":        ErrCodeVesselPairing,
	"OCP_FAILURE":           ErrCodeOCPFailure,
	"CA_FAILURE":            ErrCodeDepositionFailure,
	"CV_FAILURE":            ErrCodeCharacterizationFailure,
	"DEPOSITION_FAILURE":    ErrCodeDepositionFailure,
	"VALIDATION_ERROR":      ErrCodeValidation,
	"BAD_REQUEST":           ErrCodeBadRequest,
	"INTERNAL_ERROR":        ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
