package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Error codes for the retrieval pipeline. Everything except validation and
// internal errors is recoverable inside the orchestrator and never reaches
// the caller as a failure.
const (
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeSourceUnavailable      = "SOURCE_UNAVAILABLE"
	ErrCodeCandidateRejected      = "CANDIDATE_REJECTED"
	ErrCodeArtifactFetchFailed    = "ARTIFACT_FETCH_FAILED"
	ErrCodeBudgetExhausted        = "BUDGET_EXHAUSTED"
	ErrCodePersistenceUnavailable = "PERSISTENCE_UNAVAILABLE"
	ErrCodeInternalError          = "INTERNAL_ERROR"
)

var (
	ErrMissingMood    = NewDomainError(ErrCodeValidation, "mood is required")
	ErrInvalidRating  = NewDomainError(ErrCodeValidation, "rating must be between 1 and 5")
	ErrEmptyReference = NewDomainError(ErrCodeValidation, "candidate reference is empty")
)
