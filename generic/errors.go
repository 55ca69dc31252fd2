/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error kinds in one place so every caller can tell a user-correctable
  mistake from a system fault without string matching.

ERROR CATEGORIES:
  1. Validation     - malformed input, rejected before anything is written
  2. Authorization  - actor may not act on the request right now
  3. Not found      - a user or request id does not resolve
  4. Inconsistent   - stored data violates an engine invariant (bug or corruption)

  1 and 2 are client errors. 3 and 4 are system faults. None of them is
  transient, so nothing in the engine retries.

USAGE:
  if errors.Is(err, generic.ErrRequestTerminal) {
      // approval already completed or rejected
  }
  var verr generic.ValidationErrors
  if errors.As(err, &verr) {
      fields := verr.ToMap()
  }

SEE ALSO:
  - approval/engine.go: Authorization and inconsistency errors
  - leave/request.go: Validation errors
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation        = errors.New("validation failed")
	ErrUnauthorized      = errors.New("not authorized")
	ErrNotFound          = errors.New("not found")
	ErrInconsistentState = errors.New("inconsistent state")

	// Authorization reasons. An AuthorizationError unwraps to both
	// ErrUnauthorized and one of these.
	ErrNotCurrentApprover = errors.New("actor is not a current approver")
	ErrRequestTerminal    = errors.New("request already decided")
	ErrAlreadyDecided     = errors.New("entry already decided")
	ErrNotDeletable       = errors.New("request can no longer be deleted")
	ErrNotRequester       = errors.New("only the requester may do this")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError is one failed input check.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors collects every failed check of one input.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, fe := range v {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() error { return ErrValidation }

func (v ValidationErrors) ToMap() map[string]string {
	out := make(map[string]string, len(v))
	for _, fe := range v {
		out[fe.Field] = fe.Message
	}
	return out
}

// Add appends a failed check and returns the grown list.
func (v ValidationErrors) Add(field, message string) ValidationErrors {
	return append(v, FieldError{Field: field, Message: message})
}

// Err returns nil when nothing failed, so callers can `return v.Err()`.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// AuthorizationError reports an actor that may not perform an action.
type AuthorizationError struct {
	ActorID   string
	RequestID string
	Reason    error
}

func (e *AuthorizationError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("actor %s: %v", e.ActorID, e.Reason)
	}
	return fmt.Sprintf("actor %s on request %s: %v", e.ActorID, e.RequestID, e.Reason)
}

func (e *AuthorizationError) Unwrap() []error { return []error{ErrUnauthorized, e.Reason} }

// NotFoundError reports an id the directory or record store could not resolve.
type NotFoundError struct {
	Kind string // "user", "request"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InconsistentStateError reports stored data that breaks an engine invariant.
// It is never repaired silently.
type InconsistentStateError struct {
	RequestID string
	Detail    string
}

func (e *InconsistentStateError) Error() string {
	if e.RequestID == "" {
		return "inconsistent state: " + e.Detail
	}
	return fmt.Sprintf("inconsistent state in request %s: %s", e.RequestID, e.Detail)
}

func (e *InconsistentStateError) Unwrap() error { return ErrInconsistentState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true for mistakes the caller can correct.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrUnauthorized)
}

// IsSystemFault returns true for missing references and corrupted state.
func IsSystemFault(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInconsistentState)
}

// IsNotFound returns true if the error indicates a missing user or request.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
