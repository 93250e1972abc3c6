/*
coordinator.go - Approval coordinator: the single state-changing entry point

PURPOSE:
  Every operation that writes Request.Status or Balance.Used routes
  through this component, so the overlap, balance and authorization
  guards cannot drift apart across call sites.

OPERATION SHAPE:
  For any transition the Coordinator:
    1. loads the target request (inside the transaction)
    2. evaluates the authorization predicate for the operation
    3. evaluates the state machine guard
    4. performs the ledger effect (if any) and the status write as one
       atomic unit
    5. returns the updated request or one typed failure

  Steps 1-4 run inside TxStore.WithTx: there is no intermediate state
  where the ledger is debited but the status is still pending, and none
  where the status is approved but the ledger untouched.

CONCURRENCY:
  Transitions on the same request are linearized two ways. The store
  transaction serializes guard evaluation against the effect, and the
  Version CAS in UpdateRequest rejects a commit against a stale read with
  ErrConcurrentModification. A losing concurrent approval therefore
  surfaces as either InvalidState (it re-read the winner's status) or
  ConcurrentModification (it lost the version race); both leave the
  ledger debited exactly once. The engine never auto-retries: retrying
  would silently re-evaluate guards against stale authorization context.

EXPECTED RACES:
  A debit failing with InsufficientBalance during approval is a
  legitimate outcome (another approval consumed the balance first); the
  request stays pending and the caller is told why.

SEE ALSO:
  - machine.go: The guards
  - ledger.go: The effects
  - authz.go: The predicates
*/
package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// COORDINATOR
// =============================================================================

type Coordinator struct {
	store  TxStore
	clock  Clock
	policy Policy
	log    logrus.FieldLogger
}

func NewCoordinator(store TxStore, clock Clock, policy Policy, log logrus.FieldLogger) *Coordinator {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Coordinator{store: store, clock: clock, policy: policy, log: log}
}

// SubmitInput carries everything a submission needs. EmployeeID is the
// owner; normally the actor themselves, but an elevated role may file on
// another employee's behalf.
type SubmitInput struct {
	EmployeeID string
	Category   Category
	StartDate  Date
	EndDate    Date
	HalfDay    bool
	Session    HalfDaySession
	Reason     string
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates and creates a new pending request. The balance is NOT
// debited here: sufficiency is checked against the allocated balance, and
// the debit happens on approval.
func (c *Coordinator) Submit(ctx context.Context, actor Actor, in SubmitInput) (*Request, error) {
	if in.EmployeeID == "" {
		in.EmployeeID = actor.ID
	}
	if in.EmployeeID != actor.ID && !actor.Elevated() {
		return nil, ErrForbidden
	}

	today := c.clock.Today()
	if err := ValidateSubmission(in.StartDate, in.EndDate, in.HalfDay, in.Reason, c.policy, today); err != nil {
		return nil, err
	}

	dayCount := DayCountFor(in.StartDate, in.EndDate, in.HalfDay)

	req := &Request{
		ID:         uuid.NewString(),
		EmployeeID: in.EmployeeID,
		Category:   in.Category,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		HalfDay:    in.HalfDay,
		Session:    in.Session,
		DayCount:   dayCount,
		Reason:     in.Reason,
		Status:     StatusPending,
		AppliedAt:  c.clock.Now(),
		Version:    1,
	}

	err := c.store.WithTx(ctx, func(tx Store) error {
		emp, err := tx.GetEmployee(ctx, in.EmployeeID)
		if err != nil {
			return err
		}
		// Approver resolved at submission time, frozen afterwards.
		req.ApproverID = emp.ApproverID

		conflict, err := NewOverlapIndex(tx).Conflict(ctx, in.EmployeeID, in.StartDate, in.EndDate, "")
		if err != nil {
			return err
		}
		if conflict != nil {
			return &OverlapError{
				ConflictingID: conflict.ID,
				ConflictStart: conflict.StartDate,
				ConflictEnd:   conflict.EndDate,
			}
		}

		ok, err := NewLedger(tx).ReserveCheck(ctx, in.EmployeeID, in.Category, dayCount)
		if err != nil {
			return err
		}
		if !ok {
			return &InsufficientBalanceError{
				EmployeeID: in.EmployeeID,
				Category:   in.Category,
				Requested:  dayCount,
			}
		}

		return tx.CreateRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"request_id": req.ID,
		"employee":   req.EmployeeID,
		"category":   req.Category,
		"days":       req.DayCount,
	}).Info("leave request submitted")

	return req, nil
}

// =============================================================================
// DECIDE - Approve or reject
// =============================================================================

// Decide resolves a pending request. decision must be StatusApproved or
// StatusRejected. Approval debits the ledger atomically with the status
// write; rejection has no ledger effect but requires a comment.
func (c *Coordinator) Decide(ctx context.Context, actor Actor, requestID string, decision Status, comment string) (*Request, error) {
	switch decision {
	case StatusApproved, StatusRejected:
	default:
		return nil, fmt.Errorf("%w: decision must be approved or rejected", ErrInvalidState)
	}

	var out *Request
	err := c.store.WithTx(ctx, func(tx Store) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !CanDecide(actor, req) {
			return ErrForbidden
		}

		if decision == StatusRejected {
			if err := GuardReject(req, comment); err != nil {
				return err
			}
		} else {
			if err := GuardDecide(req, "approve"); err != nil {
				return err
			}
			// Debit first: if the balance was consumed by another approval
			// in the interim the transition fails here and the request
			// remains pending.
			token := "debit:" + req.ID
			if err := NewLedger(tx).Debit(ctx, req.EmployeeID, req.Category, req.DayCount, token); err != nil {
				return err
			}
		}

		now := c.clock.Now()
		req.Status = decision
		req.DecisionComment = comment
		req.DecidedAt = &now

		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		c.observe(err, requestID, string(decision))
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"request_id": out.ID,
		"decided_by": actor.ID,
		"decision":   decision,
	}).Info("leave request decided")

	return out, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel withdraws a request. Pending requests cancel freely; approved
// requests refund their days (credit) atomically with the status write,
// and only while the start date is still in the future.
func (c *Coordinator) Cancel(ctx context.Context, actor Actor, requestID string) (*Request, error) {
	var out *Request
	err := c.store.WithTx(ctx, func(tx Store) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !CanCancel(actor, req) {
			return ErrForbidden
		}
		if err := GuardCancel(req, c.clock.Today()); err != nil {
			return err
		}

		if req.Status == StatusApproved {
			token := "credit:" + req.ID
			if err := NewLedger(tx).Credit(ctx, req.EmployeeID, req.Category, req.DayCount, token); err != nil {
				return err
			}
		}

		now := c.clock.Now()
		req.Status = StatusCancelled
		req.DecidedAt = &now

		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		c.observe(err, requestID, "cancel")
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"request_id":   out.ID,
		"cancelled_by": actor.ID,
	}).Info("leave request cancelled")

	return out, nil
}

// =============================================================================
// READS
// =============================================================================

// Get returns a single request, or ErrForbidden when the actor may not
// view it.
func (c *Coordinator) Get(ctx context.Context, actor Actor, requestID string) (*Request, error) {
	req, err := c.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, req) {
		return nil, ErrForbidden
	}
	return req, nil
}

// List returns the requests the actor may view: their own, those they
// approve, or everything for an elevated role.
func (c *Coordinator) List(ctx context.Context, actor Actor) ([]*Request, error) {
	if actor.Elevated() {
		return c.store.ListAll(ctx)
	}

	own, err := c.store.ListByEmployee(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	assigned, err := c.store.ListByApprover(ctx, actor.ID, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(own))
	result := make([]*Request, 0, len(own)+len(assigned))
	for _, r := range own {
		seen[r.ID] = true
		result = append(result, r)
	}
	for _, r := range assigned {
		if !seen[r.ID] {
			result = append(result, r)
		}
	}
	return result, nil
}

// PendingForApprover returns the actor's approval queue.
func (c *Coordinator) PendingForApprover(ctx context.Context, actor Actor) ([]*Request, error) {
	if actor.Elevated() {
		all, err := c.store.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		pending := make([]*Request, 0, len(all))
		for _, r := range all {
			if r.Status == StatusPending {
				pending = append(pending, r)
			}
		}
		return pending, nil
	}
	return c.store.ListByApprover(ctx, actor.ID, StatusPending)
}

// BalanceView returns an employee's per-category counters. Visible to the
// employee, their approver, and elevated roles.
func (c *Coordinator) BalanceView(ctx context.Context, actor Actor, employeeID string) (map[Category]Balance, error) {
	if actor.ID != employeeID && !actor.Elevated() {
		emp, err := c.store.GetEmployee(ctx, employeeID)
		if err != nil {
			return nil, err
		}
		if emp.ApproverID != actor.ID {
			return nil, ErrForbidden
		}
	}
	return c.store.Balances(ctx, employeeID)
}

// =============================================================================
// OBSERVABILITY
// =============================================================================

// observe routes failures to the right log stream. Business-rule outcomes
// are not system failures; invariant violations are, and loudly.
func (c *Coordinator) observe(err error, requestID, op string) {
	entry := c.log.WithFields(logrus.Fields{"request_id": requestID, "op": op})
	switch {
	case errors.Is(err, ErrInvariantViolation):
		entry.WithError(err).Error("invariant violation: a write path bypassed the coordinator")
	case IsBusinessRule(err) || IsValidation(err) || IsRetryable(err):
		entry.WithError(err).Debug("transition refused")
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidState):
		entry.WithError(err).Debug("transition refused")
	default:
		entry.WithError(err).Warn("transition failed")
	}
}
