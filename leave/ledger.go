/*
ledger.go - Balance ledger: the unit that must never go negative

PURPOSE:
  Owns every mutation of the allocated/used counters. The ledger is the
  only component that writes Balance.Used, and it is only invoked by the
  Coordinator as part of an approve or cancel-after-approve transition.

CRITICAL INVARIANTS:
  1. 0 <= Used <= Allocated, always.
  2. Each request transition debits or credits AT MOST ONCE, enforced by
     idempotency tokens recorded alongside the balance write.
  3. A Credit that would push Used below zero is not a user-facing
     condition - it means some path bypassed the Coordinator - so it fails
     as an InvariantViolation, not a business error.

IDEMPOTENCY:
  Debit and Credit take a per-transition token. If the token was already
  applied the call is a successful no-op, which makes client retries of an
  approval safe without double-debiting. Tokens ride the same store
  transaction as the counters, so a rolled-back approval releases its
  token too.

SERIALIZATION:
  Concurrent debits for the same (employee, category) are serialized by
  the surrounding TxStore transaction: the Coordinator always mutates the
  ledger inside WithTx, so two managers approving two requests against the
  same balance cannot both read the same Remaining and both succeed.

SEE ALSO:
  - store.go: BalanceStore contract
  - coordinator.go: The only caller
*/
package leave

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger wraps a BalanceStore with the debit/credit rules. Construct one
// around the transaction-scoped store inside WithTx.
type Ledger struct {
	store BalanceStore
}

func NewLedger(store BalanceStore) *Ledger {
	return &Ledger{store: store}
}

// Remaining returns allocated minus used for one (employee, category).
func (l *Ledger) Remaining(ctx context.Context, employeeID string, cat Category) (decimal.Decimal, error) {
	b, err := l.store.GetBalance(ctx, employeeID, cat)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Remaining(), nil
}

// ReserveCheck is the read-only sufficiency check applied at submission:
// the requested days must fit the ALLOCATED balance, not the remaining
// one. Balance is only debited on approval, so a pending request does not
// punish the employee; approval re-checks against remaining via Debit.
func (l *Ledger) ReserveCheck(ctx context.Context, employeeID string, cat Category, days decimal.Decimal) (bool, error) {
	b, err := l.store.GetBalance(ctx, employeeID, cat)
	if errors.Is(err, ErrNotFound) {
		// No allocation for this category: nothing to reserve against.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return days.LessThanOrEqual(b.Allocated), nil
}

// Debit consumes days: Used += days. Fails with InsufficientBalanceError
// when the debit would push Used past Allocated - a legitimate, expected
// race outcome when another approval consumed the balance first.
func (l *Ledger) Debit(ctx context.Context, employeeID string, cat Category, days decimal.Decimal, token string) error {
	applied, err := l.store.TokenApplied(ctx, token)
	if err != nil {
		return err
	}
	if applied {
		return nil // retry of an already-applied debit
	}

	b, err := l.store.GetBalance(ctx, employeeID, cat)
	if errors.Is(err, ErrNotFound) {
		return &InsufficientBalanceError{
			EmployeeID: employeeID,
			Category:   cat,
			Remaining:  decimal.Zero,
			Requested:  days,
		}
	}
	if err != nil {
		return err
	}

	used := b.Used.Add(days)
	if used.GreaterThan(b.Allocated) {
		return &InsufficientBalanceError{
			EmployeeID: employeeID,
			Category:   cat,
			Remaining:  b.Remaining(),
			Requested:  days,
		}
	}

	if err := l.store.SetBalance(ctx, employeeID, cat, Balance{Allocated: b.Allocated, Used: used}); err != nil {
		return err
	}
	return l.store.RecordToken(ctx, token)
}

// Credit refunds days: Used -= days. A credit that would push Used below
// zero signals a caller bug, not a user-facing condition, and fails as an
// InvariantViolation.
func (l *Ledger) Credit(ctx context.Context, employeeID string, cat Category, days decimal.Decimal, token string) error {
	applied, err := l.store.TokenApplied(ctx, token)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	b, err := l.store.GetBalance(ctx, employeeID, cat)
	if errors.Is(err, ErrNotFound) {
		return &InvariantViolationError{
			EmployeeID: employeeID,
			Category:   cat,
			Detail:     "credit against missing allocation",
		}
	}
	if err != nil {
		return err
	}

	used := b.Used.Sub(days)
	if used.IsNegative() {
		return &InvariantViolationError{
			EmployeeID: employeeID,
			Category:   cat,
			Detail:     "credit would push used below zero",
		}
	}

	if err := l.store.SetBalance(ctx, employeeID, cat, Balance{Allocated: b.Allocated, Used: used}); err != nil {
		return err
	}
	return l.store.RecordToken(ctx, token)
}
