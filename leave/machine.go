/*
machine.go - Request state machine guards

PURPOSE:
  The lifecycle rules, expressed as guard functions the Coordinator
  evaluates before performing any effect:

      submit -> pending -> approved  (approver; debit must succeed)
                        -> rejected  (approver; comment required)
               pending  -> cancelled (owner)
               approved -> cancelled (owner; start date still in future,
                                      credit must succeed)

  rejected and cancelled are terminal. An approved request whose dates
  have fully elapsed is immutable history.

  Guards are pure: they read the request and the clock's today, and
  return a typed error or nil. Ledger effects stay in the Coordinator so
  the guard/effect split is auditable.

SEE ALSO:
  - coordinator.go: Runs guard then effect inside one transaction
  - errors.go: The taxonomy the guards draw from
*/
package leave

import "fmt"

// =============================================================================
// SUBMIT GUARD
// =============================================================================

// ValidateSubmission checks everything about a proposed request that does
// not require store access: date ordering, backdating, half-day shape,
// span cap, and the reason bounds. Overlap and balance checks happen in
// the Coordinator's transaction.
func ValidateSubmission(start, end Date, halfDay bool, reason string, policy Policy, today Date) error {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidDateRange, start, end)
	}
	if start.Before(today) {
		// No backdated requests.
		return fmt.Errorf("%w: start %s is in the past", ErrInvalidDateRange, start)
	}
	if halfDay && !start.Equal(end) {
		return ErrInvalidHalfDay
	}
	if span := start.DaysInclusive(end); span > policy.MaxSpanDays {
		return fmt.Errorf("%w: %d days, maximum %d", ErrSpanTooLong, span, policy.MaxSpanDays)
	}
	if reason == "" {
		return ErrEmptyReason
	}
	if len(reason) > policy.MaxReasonLength {
		return fmt.Errorf("%w: %d bytes, maximum %d", ErrReasonTooLong, len(reason), policy.MaxReasonLength)
	}
	return nil
}

// =============================================================================
// TRANSITION GUARDS
// =============================================================================

// GuardDecide checks that an approve/reject may proceed: the request must
// still be pending.
func GuardDecide(r *Request, transition string) error {
	if r.Status != StatusPending {
		return &InvalidStateError{RequestID: r.ID, Current: r.Status, Transition: transition}
	}
	return nil
}

// GuardReject additionally requires a non-empty decision comment.
func GuardReject(r *Request, comment string) error {
	if err := GuardDecide(r, "reject"); err != nil {
		return err
	}
	if comment == "" {
		return ErrCommentRequired
	}
	return nil
}

// GuardCancel checks that a cancellation may proceed. Pending requests
// cancel freely. Approved requests cancel only while the start date is
// still in the future; once the leave has started the request is history.
func GuardCancel(r *Request, today Date) error {
	switch r.Status {
	case StatusPending:
		return nil
	case StatusApproved:
		if r.StartDate.BeforeOrEqual(today) {
			return ErrCancellationWindowClosed
		}
		return nil
	default:
		return &InvalidStateError{RequestID: r.ID, Current: r.Status, Transition: "cancel"}
	}
}
