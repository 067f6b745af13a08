/*
errors.go - Centralized error types for the inventory ledger

PURPOSE:
  All error kinds in one place. Callers branch on the sentinel with
  errors.Is(); structured types carry the detail for operator messages.

ERROR TAXONOMY:
  Validation     - malformed input, rejected before any write
  Authorization  - privileged operation by a non-privileged actor
  NotFound       - referenced team/site/allocation does not exist
  PartialFailure - one of the two usage-application writes landed, the
                   other did not; state may need manual reconciliation
  StoreFailure   - the record store rejected a read or write; propagated
                   as-is, never retried by the ledger

USAGE:
  if errors.Is(err, ledger.ErrPartialFailure) {
      // warn the operator: counter and log may have diverged
  }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input-validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned when a privileged operation is attempted
	// by an actor outside the elevated role set.
	ErrUnauthorized = errors.New("not authorized")

	// ErrNotFound is returned when a referenced team, site, or allocation
	// does not exist in the working set.
	ErrNotFound = errors.New("not found")

	// ErrPartialFailure is returned when usage application persisted one of
	// its two writes and lost the other. The caller must surface this
	// distinctly: the store may now be inconsistent.
	ErrPartialFailure = errors.New("partial failure: state may be inconsistent")

	// ErrStoreFailure wraps opaque record-store failures (connectivity,
	// quota). Whether to retry is the caller's decision.
	ErrStoreFailure = errors.New("record store failure")

	// ErrDuplicateIdempotencyKey is returned when a usage event carries an
	// idempotency key that was already applied. Expected on retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrConfirmationRequired is returned when usage application reaches a
	// path that needs an explicit operator confirmation (new allocation or
	// overdraw) and the request does not carry it.
	ErrConfirmationRequired = errors.New("operator confirmation required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports one malformed input field. The message is shown to
// the operator verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing owner or allocation.
type NotFoundError struct {
	Kind string // "team", "site", "allocation"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AuthorizationError reports a privileged operation refused for the actor.
type AuthorizationError struct {
	Role      Role
	Operation string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q may not %s", e.Role, e.Operation)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// PartialFailureError reports a usage application that persisted the
// allocation increment but lost the log append (or vice versa). Applied
// names the write that landed; Failed wraps the write that did not.
type PartialFailureError struct {
	Applied string
	Failed  string
	Cause   error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure: %s succeeded, %s failed: %v",
		e.Applied, e.Failed, e.Cause)
}

func (e *PartialFailureError) Unwrap() error { return ErrPartialFailure }

// StoreError wraps a record-store failure with the collection and operation.
type StoreError struct {
	Collection string
	Op         string
	Cause      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Cause)
}

func (e *StoreError) Unwrap() error { return ErrStoreFailure }

// OverdrawError describes a consumption that would push an allocation past
// its remaining stock. Returned by LogUsage only when the caller has not
// confirmed the overdraw; WouldOverdraw exists so callers can prompt first.
type OverdrawError struct {
	Owner     OwnerRef
	Material  string
	Remaining decimal.Decimal
	Requested decimal.Decimal
}

func (e *OverdrawError) Error() string {
	return fmt.Sprintf("overdraw on %s %s: remaining %s, requested %s",
		e.Owner, e.Material, e.Remaining, e.Requested)
}

func (e *OverdrawError) Unwrap() error { return ErrConfirmationRequired }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is the caller's fault and safe to
// show as a 4xx rather than a 5xx.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrConfirmationRequired)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
