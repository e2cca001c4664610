package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	// Liquid handling
	ErrOverfill            = NewDomainError("OVERFILL", "Deposit would exceed vessel capacity")
	ErrOverdraft           = NewDomainError("OVERDRAFT", "Withdrawal would exceed available volume")
	ErrVesselPairing       = NewDomainError("VESSEL_PAIRING", "Transfer between these vessel kinds is not allowed")
	ErrNoAvailableSolution = NewDomainError("NO_AVAILABLE_SOLUTION", "No stock vial can satisfy the request")
	ErrNoAvailableWaste    = NewDomainError("NO_AVAILABLE_WASTE", "No waste vial has enough headroom")
	ErrNoAvailableWell     = NewDomainError("NO_AVAILABLE_WELL", "No wells available on the current plate")
	ErrInsufficientStock   = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")

	// Electrochemistry stages
	ErrOCPFailure        = NewDomainError("OCP_FAILURE", "Open circuit potential check failed")
	ErrCAFailure         = NewDomainError("CA_FAILURE", "Chronoamperometry step failed")
	ErrCVFailure         = NewDomainError("CV_FAILURE", "Cyclic voltammetry step failed")
	ErrDepositionFailure = NewDomainError("DEPOSITION_FAILURE", "Deposition stage failed")
	ErrOperatorInterrupt = NewDomainError("OPERATOR_INTERRUPT", "Run interrupted by operator")
)
