package core

// Error codes for domain errors.
const (
	ErrCodeUnauthenticated  = "unauthenticated"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeValidationError  = "validation_error"
	ErrCodePersistenceError = "persistence_error"
	ErrCodeBadRequest       = "bad_request"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
