package services

import (
	"fmt"
	"time"
)

// Kind classifies why a submission was refused.
type Kind string

const (
	KindRateLimited  Kind = "rate_limited"
	KindTokenMissing Kind = "security_token_missing"
	KindTokenInvalid Kind = "security_token_invalid"
	KindMissingField Kind = "missing_field"
	KindInvalidEmail Kind = "invalid_email"
	KindValidation   Kind = "validation_failed"
	KindDuplicate    Kind = "duplicate_contact"
	KindPersistence  Kind = "persistence_failed"
	KindDebounced    Kind = "submit_debounced"
)

// SubmitError is the only error Submit returns. Fields maps a field path to
// a user-facing message; it is empty when details must not be disclosed.
type SubmitError struct {
	Kind       Kind
	Fields     map[string]string
	RetryAfter time.Duration
	Err        error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submission %s: %v", e.Kind, e.Err)
	}
	return "submission " + string(e.Kind)
}

func (e *SubmitError) Unwrap() error { return e.Err }

func refuse(k Kind, fields map[string]string) *SubmitError {
	return &SubmitError{Kind: k, Fields: fields}
}
