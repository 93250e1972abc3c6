/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the interface between the engine and the database. The engine
  specifies the persistence capability it consumes, not how it is
  implemented; SQLite and in-memory implementations ship with the repo.

KEY INTERFACES:
  RequestStore: Leave request persistence with version-checked updates
  BalanceStore: Balance counters + idempotency token registry
  Directory:    Employee lookup (external collaborator)
  TxStore:      Atomic read-modify-write scope for the Coordinator

OPTIMISTIC CONCURRENCY:
  Update compares the request's Version against the stored one. On mismatch
  it fails with ErrConcurrentModification and writes nothing. On success it
  increments Version. This is what makes two racing approvals resolve to
  exactly one winner.

IDEMPOTENCY TOKENS:
  Every ledger mutation records a token. TokenApplied lets a retried
  debit/credit detect it already happened. Tokens are written in the same
  transaction as the balance they guard.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite (WAL)
  - store/memory: In-memory for tests and dev

SEE ALSO:
  - ledger.go: Uses BalanceStore
  - coordinator.go: Uses TxStore.WithTx for every state change
*/
package leave

import "context"

// =============================================================================
// REQUEST STORE
// =============================================================================

type RequestStore interface {
	// CreateRequest persists a new request. Fails if the ID exists.
	CreateRequest(ctx context.Context, r *Request) error

	// GetRequest returns the request or ErrNotFound.
	GetRequest(ctx context.Context, id string) (*Request, error)

	// UpdateRequest writes the request if r.Version matches the stored
	// version, then increments it. Fails with ErrConcurrentModification
	// on mismatch.
	UpdateRequest(ctx context.Context, r *Request) error

	// ListByEmployee returns all requests owned by the employee, newest
	// first by AppliedAt.
	ListByEmployee(ctx context.Context, employeeID string) ([]*Request, error)

	// ListOpenByEmployee returns the employee's pending and approved
	// requests. This is the overlap index's working set.
	ListOpenByEmployee(ctx context.Context, employeeID string) ([]*Request, error)

	// ListByApprover returns requests whose resolved approver is the given
	// actor, optionally filtered by status ("" = all).
	ListByApprover(ctx context.Context, approverID string, status Status) ([]*Request, error)

	// ListAll returns every request. Elevated-role listings only.
	ListAll(ctx context.Context) ([]*Request, error)
}

// =============================================================================
// BALANCE STORE
// =============================================================================

type BalanceStore interface {
	// GetBalance returns the counters for one (employee, category), or
	// ErrNotFound when the employee holds no allocation for the category.
	GetBalance(ctx context.Context, employeeID string, cat Category) (Balance, error)

	// SetBalance overwrites the counters for one (employee, category).
	// Only the ledger calls this, and only inside a transaction.
	SetBalance(ctx context.Context, employeeID string, cat Category, b Balance) error

	// Balances returns all category counters for an employee.
	Balances(ctx context.Context, employeeID string) (map[Category]Balance, error)

	// TokenApplied reports whether an idempotency token was already used.
	TokenApplied(ctx context.Context, token string) (bool, error)

	// RecordToken marks an idempotency token as used.
	RecordToken(ctx context.Context, token string) error
}

// =============================================================================
// DIRECTORY - Employee lookup (external collaborator interface)
// =============================================================================

type Directory interface {
	// GetEmployee returns the employee's approver reference, role and
	// balances, or ErrNotFound.
	GetEmployee(ctx context.Context, id string) (*Employee, error)
}

// =============================================================================
// COMPOSED STORE
// =============================================================================

// Store is the full persistence capability the engine consumes.
type Store interface {
	RequestStore
	BalanceStore
	Directory
}

// TxStore adds the atomic read-modify-write scope every state-changing
// operation runs in. If fn returns an error nothing it did is visible.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
