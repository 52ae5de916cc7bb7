package validation

// ValidationError reports an observed cross-store discrepancy. Messages
// enumerate every differing column or field, never just the first.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}
