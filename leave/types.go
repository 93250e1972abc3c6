/*
Package leave implements the leave application lifecycle and balance
reconciliation engine.

PURPOSE:
  This package owns every rule that decides whether a leave request is legal
  to submit, how it moves through approval states, and how an employee's
  leave ledger is debited exactly once when (and only when) a request is
  approved.

KEY CONCEPTS IN THIS FILE (types.go):
  - Category: A named bucket of time-off (casual, sick, earned, ...)
  - Balance: Allocated-vs-used day counters for one (employee, category)
  - Employee: External collaborator entity, referenced not owned
  - Request: The one domain object, with its lifecycle status
  - Actor: Whoever is performing an operation (identity + role)

DESIGN PRINCIPLES:
  1. Remaining balance is derived (allocated - used), never stored.
  2. Day counts use decimal.Decimal so half days (0.5) are exact.
  3. Status and balance are only written by the Coordinator.
  4. DayCount is computed once at submission and frozen.

SEE ALSO:
  - ledger.go: Balance mutation contract
  - machine.go: Transition guards
  - coordinator.go: The single state-changing entry point
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE CATEGORY
// =============================================================================

// Category identifies a leave bucket with its own yearly allocation.
type Category string

const (
	CategoryCasual Category = "casual"
	CategorySick   Category = "sick"
	CategoryEarned Category = "earned"
)

// Categories lists the known leave categories.
func Categories() []Category {
	return []Category{CategoryCasual, CategorySick, CategoryEarned}
}

// =============================================================================
// BALANCE - Allocated vs used counters
// =============================================================================

// Balance holds the day counters for one (employee, category) pair.
// INVARIANT: 0 <= Used <= Allocated at all times. Remaining is derived,
// never stored, so it cannot drift out of sync.
type Balance struct {
	Allocated decimal.Decimal
	Used      decimal.Decimal
}

func (b Balance) Remaining() decimal.Decimal { return b.Allocated.Sub(b.Used) }

// =============================================================================
// EMPLOYEE - External collaborator entity
// =============================================================================

// Employee is the slice of the employee record this engine needs: who
// approves their requests and what their balances are. Everything else
// about employees lives outside the engine.
type Employee struct {
	ID         string
	ApproverID string // empty = no resolved approver; only elevated roles can decide
	Role       Role
	Balances   map[Category]Balance
}

// =============================================================================
// ACTOR & ROLES
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Actor is whoever invokes an operation. Authentication is an external
// collaborator; the engine only scopes by identity and role.
type Actor struct {
	ID   string
	Role Role
}

// Elevated reports whether the actor may bypass ownership/approver scoping.
func (a Actor) Elevated() bool { return a.Role == RoleAdmin }

// =============================================================================
// REQUEST - The one domain object
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// HalfDaySession says which half of the day a half-day request covers.
type HalfDaySession string

const (
	SessionMorning   HalfDaySession = "morning"
	SessionAfternoon HalfDaySession = "afternoon"
)

// Request is a leave request. Owned by its creator for reads, jointly
// writable by creator (cancel) and approver (approve/reject) - which is
// exactly why all writes are serialized through the Coordinator.
type Request struct {
	ID         string
	EmployeeID string
	ApproverID string // resolved at submission, immutable afterwards
	Category   Category

	StartDate Date // inclusive
	EndDate   Date // inclusive
	HalfDay   bool
	Session   HalfDaySession // only meaningful when HalfDay

	// DayCount is computed once at submission and frozen. Recomputing it
	// from the dates must reproduce the same value.
	DayCount decimal.Decimal

	Reason string
	Status Status

	DecisionComment string
	DecidedAt       *time.Time
	AppliedAt       time.Time

	// Version backs optimistic concurrency: Store.Update fails with
	// ErrConcurrentModification when the stored version differs.
	Version int64
}

// DayCountFor derives the day count for a date range. A half-day request
// counts 0.5 and must cover a single calendar day (validated at submit).
func DayCountFor(start, end Date, halfDay bool) decimal.Decimal {
	if halfDay {
		return decimal.NewFromFloat(0.5)
	}
	return decimal.NewFromInt(int64(start.DaysInclusive(end)))
}

// Open reports whether the request still occupies its days for overlap
// purposes (pending or approved).
func (r *Request) Open() bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

// Terminal reports whether the request can never transition again:
// rejected, cancelled, or approved with fully elapsed dates.
func (r *Request) Terminal(today Date) bool {
	switch r.Status {
	case StatusRejected, StatusCancelled:
		return true
	case StatusApproved:
		return r.EndDate.Before(today)
	default:
		return false
	}
}
