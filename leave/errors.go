/*
errors.go - Centralized error taxonomy for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every public Coordinator operation returns exactly one kind from this
  taxonomy; no operation panics for an expected condition.

ERROR CATEGORIES:
  1. Validation errors    - caller-input problems, never retried
  2. Business-rule errors - expected domain outcomes, explained in detail
  3. Authorization errors - generic denial, no guard details leaked
  4. Concurrency errors   - recoverable by retrying from a fresh read
  5. Invariant violations - bugs elsewhere; logged distinctly, fatal to the op

USAGE:
  if errors.Is(err, leave.ErrInsufficientBalance) { ... }

  var insuff *leave.InsufficientBalanceError
  if errors.As(err, &insuff) {
      fmt.Println("remaining:", insuff.Remaining)
  }

SEE ALSO:
  - coordinator.go: Produces these errors
  - api/dto.go: Maps them to HTTP statuses
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Validation errors (caller input).
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrSpanTooLong      = errors.New("request span exceeds policy maximum")
	ErrEmptyReason      = errors.New("reason must not be empty")
	ErrReasonTooLong    = errors.New("reason exceeds maximum length")
	ErrCommentRequired  = errors.New("decision comment required")
	ErrInvalidHalfDay   = errors.New("half-day request must cover a single day")

	// Business-rule errors (expected domain outcomes).
	ErrOverlappingRequest       = errors.New("overlapping leave request")
	ErrInsufficientBalance      = errors.New("insufficient leave balance")
	ErrCancellationWindowClosed = errors.New("cancellation window closed")

	// Authorization. Deliberately generic: callers must not learn which
	// specific guard failed.
	ErrForbidden = errors.New("forbidden")

	// Lookup.
	ErrNotFound = errors.New("not found")

	// Concurrency.
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInvalidState           = errors.New("invalid state for transition")

	// ErrInvariantViolation signals a bug elsewhere in the system (a write
	// path that bypassed the Coordinator). Fatal to the operation.
	ErrInvariantViolation = errors.New("invariant violation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry enough detail to explain WHY
// =============================================================================

// InsufficientBalanceError reports a balance shortage with the numbers the
// caller needs to explain the denial.
type InsufficientBalanceError struct {
	EmployeeID string
	Category   Category
	Remaining  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: remaining %s, requested %s",
		e.Category, e.Remaining, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// OverlapError identifies the conflicting request.
type OverlapError struct {
	ConflictingID string
	ConflictStart Date
	ConflictEnd   Date
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlaps request %s (%s to %s)",
		e.ConflictingID, e.ConflictStart, e.ConflictEnd)
}

func (e *OverlapError) Unwrap() error { return ErrOverlappingRequest }

// InvalidStateError reports a transition attempted against the wrong status.
type InvalidStateError struct {
	RequestID  string
	Current    Status
	Transition string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s request %s in status %s",
		e.Transition, e.RequestID, e.Current)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// InvariantViolationError carries context for the distinct logging these
// must receive; they should be structurally impossible.
type InvariantViolationError struct {
	EmployeeID string
	Category   Category
	Detail     string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation for %s/%s: %s",
		e.EmployeeID, e.Category, e.Detail)
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether the error is a caller-input problem.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrSpanTooLong) ||
		errors.Is(err, ErrEmptyReason) ||
		errors.Is(err, ErrReasonTooLong) ||
		errors.Is(err, ErrCommentRequired) ||
		errors.Is(err, ErrInvalidHalfDay)
}

// IsBusinessRule reports whether the error is an expected outcome of a
// legitimate domain rule. These are never logged as system failures.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrOverlappingRequest) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrCancellationWindowClosed)
}

// IsRetryable reports whether retrying the whole operation from a fresh
// read might succeed. The engine never auto-retries.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
