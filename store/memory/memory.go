/*
Package memory provides an in-memory implementation of the engine's
persistence interfaces.

PURPOSE:
  Backs tests and local development. Implements the same TxStore contract
  as the SQLite store: WithTx gives the callback a transactional view, and
  an error from the callback rolls every write back via snapshot/restore.

CONCURRENCY:
  A single RWMutex guards all state. WithTx holds the write lock for the
  whole callback, so transactions are fully serialized - which also makes
  this store a reference model for the linearizability the engine expects.

SEE ALSO:
  - leave/store.go: Interface definitions
  - store/sqlite: Production implementation
*/
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	requests  map[string]leave.Request
	balances  map[balanceKey]leave.Balance
	tokens    map[string]bool
	employees map[string]leave.Employee
}

type balanceKey struct {
	EmployeeID string
	Category   leave.Category
}

func New() *Memory {
	return &Memory{
		requests:  make(map[string]leave.Request),
		balances:  make(map[balanceKey]leave.Balance),
		tokens:    make(map[string]bool),
		employees: make(map[string]leave.Employee),
	}
}

// Compile-time check.
var _ leave.TxStore = (*Memory)(nil)

// =============================================================================
// SEEDING - Not part of the engine contract
// =============================================================================

// PutEmployee registers an employee and their balance allocations.
func (m *Memory) PutEmployee(emp leave.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = leave.Employee{ID: emp.ID, ApproverID: emp.ApproverID, Role: emp.Role}
	for cat, b := range emp.Balances {
		m.balances[balanceKey{emp.ID, cat}] = b
	}
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (m *Memory) CreateRequest(_ context.Context, r *leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createRequestLocked(r)
}

func (m *Memory) createRequestLocked(r *leave.Request) error {
	if _, exists := m.requests[r.ID]; exists {
		return leave.ErrConcurrentModification
	}
	m.requests[r.ID] = *r
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequestLocked(id)
}

func (m *Memory) getRequestLocked(id string) (*leave.Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, leave.ErrNotFound
	}
	cp := r
	return &cp, nil
}

func (m *Memory) UpdateRequest(_ context.Context, r *leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateRequestLocked(r)
}

func (m *Memory) updateRequestLocked(r *leave.Request) error {
	stored, ok := m.requests[r.ID]
	if !ok {
		return leave.ErrNotFound
	}
	if stored.Version != r.Version {
		return leave.ErrConcurrentModification
	}
	r.Version++
	m.requests[r.ID] = *r
	return nil
}

func (m *Memory) ListByEmployee(_ context.Context, employeeID string) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(r leave.Request) bool { return r.EmployeeID == employeeID }), nil
}

func (m *Memory) ListOpenByEmployee(_ context.Context, employeeID string) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(r leave.Request) bool {
		return r.EmployeeID == employeeID && (r.Status == leave.StatusPending || r.Status == leave.StatusApproved)
	}), nil
}

func (m *Memory) ListByApprover(_ context.Context, approverID string, status leave.Status) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(r leave.Request) bool {
		if r.ApproverID != approverID {
			return false
		}
		return status == "" || r.Status == status
	}), nil
}

func (m *Memory) ListAll(_ context.Context) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(leave.Request) bool { return true }), nil
}

func (m *Memory) listLocked(match func(leave.Request) bool) []*leave.Request {
	var result []*leave.Request
	for _, r := range m.requests {
		if match(r) {
			cp := r
			result = append(result, &cp)
		}
	}
	// Newest first, ID as tiebreaker for deterministic ordering.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].AppliedAt.Equal(result[j].AppliedAt) {
			return result[i].AppliedAt.After(result[j].AppliedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// =============================================================================
// BALANCE STORE
// =============================================================================

func (m *Memory) GetBalance(_ context.Context, employeeID string, cat leave.Category) (leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBalanceLocked(employeeID, cat)
}

func (m *Memory) getBalanceLocked(employeeID string, cat leave.Category) (leave.Balance, error) {
	b, ok := m.balances[balanceKey{employeeID, cat}]
	if !ok {
		return leave.Balance{}, leave.ErrNotFound
	}
	return b, nil
}

func (m *Memory) SetBalance(_ context.Context, employeeID string, cat leave.Category, b leave.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey{employeeID, cat}] = b
	return nil
}

func (m *Memory) Balances(_ context.Context, employeeID string) (map[leave.Category]leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balancesLocked(employeeID), nil
}

func (m *Memory) balancesLocked(employeeID string) map[leave.Category]leave.Balance {
	result := make(map[leave.Category]leave.Balance)
	for k, b := range m.balances {
		if k.EmployeeID == employeeID {
			result[k.Category] = b
		}
	}
	return result
}

func (m *Memory) TokenApplied(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[token], nil
}

func (m *Memory) RecordToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = true
	return nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEmployeeLocked(id)
}

func (m *Memory) getEmployeeLocked(id string) (*leave.Employee, error) {
	emp, ok := m.employees[id]
	if !ok {
		return nil, leave.ErrNotFound
	}
	emp.Balances = m.balancesLocked(id)
	return &emp, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback on error
// =============================================================================

// WithTx executes fn against a transactional view. The write lock is held
// for the whole callback; on error the pre-transaction state is restored.
func (m *Memory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	requests map[string]leave.Request
	balances map[balanceKey]leave.Balance
	tokens   map[string]bool
}

func (m *Memory) snapshot() memorySnapshot {
	reqs := make(map[string]leave.Request, len(m.requests))
	for k, v := range m.requests {
		reqs[k] = v
	}
	bals := make(map[balanceKey]leave.Balance, len(m.balances))
	for k, v := range m.balances {
		bals[k] = v
	}
	toks := make(map[string]bool, len(m.tokens))
	for k, v := range m.tokens {
		toks[k] = v
	}
	return memorySnapshot{requests: reqs, balances: bals, tokens: toks}
}

func (m *Memory) restore(s memorySnapshot) {
	m.requests = s.requests
	m.balances = s.balances
	m.tokens = s.tokens
}

// txView exposes the parent's locked methods without re-acquiring the
// mutex; WithTx already holds it.
type txView struct {
	parent *Memory
}

var _ leave.Store = (*txView)(nil)

func (tv *txView) CreateRequest(_ context.Context, r *leave.Request) error {
	return tv.parent.createRequestLocked(r)
}

func (tv *txView) GetRequest(_ context.Context, id string) (*leave.Request, error) {
	return tv.parent.getRequestLocked(id)
}

func (tv *txView) UpdateRequest(_ context.Context, r *leave.Request) error {
	return tv.parent.updateRequestLocked(r)
}

func (tv *txView) ListByEmployee(_ context.Context, employeeID string) ([]*leave.Request, error) {
	return tv.parent.listLocked(func(r leave.Request) bool { return r.EmployeeID == employeeID }), nil
}

func (tv *txView) ListOpenByEmployee(_ context.Context, employeeID string) ([]*leave.Request, error) {
	return tv.parent.listLocked(func(r leave.Request) bool {
		return r.EmployeeID == employeeID && (r.Status == leave.StatusPending || r.Status == leave.StatusApproved)
	}), nil
}

func (tv *txView) ListByApprover(_ context.Context, approverID string, status leave.Status) ([]*leave.Request, error) {
	return tv.parent.listLocked(func(r leave.Request) bool {
		if r.ApproverID != approverID {
			return false
		}
		return status == "" || r.Status == status
	}), nil
}

func (tv *txView) ListAll(_ context.Context) ([]*leave.Request, error) {
	return tv.parent.listLocked(func(leave.Request) bool { return true }), nil
}

func (tv *txView) GetBalance(_ context.Context, employeeID string, cat leave.Category) (leave.Balance, error) {
	return tv.parent.getBalanceLocked(employeeID, cat)
}

func (tv *txView) SetBalance(_ context.Context, employeeID string, cat leave.Category, b leave.Balance) error {
	tv.parent.balances[balanceKey{employeeID, cat}] = b
	return nil
}

func (tv *txView) Balances(_ context.Context, employeeID string) (map[leave.Category]leave.Balance, error) {
	return tv.parent.balancesLocked(employeeID), nil
}

func (tv *txView) TokenApplied(_ context.Context, token string) (bool, error) {
	return tv.parent.tokens[token], nil
}

func (tv *txView) RecordToken(_ context.Context, token string) error {
	tv.parent.tokens[token] = true
	return nil
}

func (tv *txView) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	return tv.parent.getEmployeeLocked(id)
}
