/*
Package sqlite provides a SQLite-backed implementation of the engine's
persistence interfaces.

PURPOSE:
  Implements leave.TxStore using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employees:      Approver reference and role per employee
  balances:       Allocated/used counters per (employee, category)
  leave_requests: The request entities, with a version column
  ledger_tokens:  Applied idempotency tokens

OPTIMISTIC CONCURRENCY:
  UpdateRequest compares-and-swaps on the version column:
      UPDATE ... WHERE id = ? AND version = ?
  Zero rows affected means another transition committed first; the caller
  gets leave.ErrConcurrentModification and must retry from a fresh read.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging): readers don't
  block, one writer at a time, better crash recovery. A process-level
  mutex serializes WithTx scopes, matching SQLite's single-writer model.

DECIMALS AND DATES:
  Day counters are stored as TEXT and parsed with shopspring/decimal so
  half days (0.5) survive round-trips exactly. Dates are stored as
  ISO day strings, timestamps as RFC3339.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil { ... }
  defer store.Close()

SEE ALSO:
  - leave/store.go: Interface definitions
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// Store implements leave.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: ":memory:" databases are per-connection, and the
	// WithTx mutex already serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		approver_id TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'employee'
	);

	CREATE TABLE IF NOT EXISTS balances (
		employee_id TEXT NOT NULL,
		category TEXT NOT NULL,
		allocated TEXT NOT NULL,
		used TEXT NOT NULL,
		PRIMARY KEY (employee_id, category)
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		approver_id TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		half_day INTEGER NOT NULL DEFAULT 0,
		half_session TEXT NOT NULL DEFAULT '',
		day_count TEXT NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL,
		decision_comment TEXT NOT NULL DEFAULT '',
		decided_at TEXT,
		applied_at TEXT NOT NULL,
		version INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON leave_requests(employee_id, applied_at);
	-- Overlap index working set: one employee's open requests.
	CREATE INDEX IF NOT EXISTS idx_requests_employee_status
		ON leave_requests(employee_id, status);
	CREATE INDEX IF NOT EXISTS idx_requests_approver_status
		ON leave_requests(approver_id, status);

	CREATE TABLE IF NOT EXISTS ledger_tokens (
		token TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// querier abstracts *sql.DB and *sql.Tx so every query runs either
// directly or inside a WithTx scope.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// REQUEST STORE
// =============================================================================

const requestColumns = `id, employee_id, approver_id, category, start_date, end_date,
	half_day, half_session, day_count, reason, status, decision_comment,
	decided_at, applied_at, version`

func (s *Store) CreateRequest(ctx context.Context, r *leave.Request) error {
	return createRequest(ctx, s.db, r)
}

func createRequest(ctx context.Context, q querier, r *leave.Request) error {
	var decidedAt any
	if r.DecidedAt != nil {
		decidedAt = r.DecidedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO leave_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EmployeeID, r.ApproverID, string(r.Category),
		r.StartDate.String(), r.EndDate.String(),
		boolToInt(r.HalfDay), string(r.Session),
		r.DayCount.String(), r.Reason, string(r.Status), r.DecisionComment,
		decidedAt, r.AppliedAt.UTC().Format(time.RFC3339Nano), r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	return getRequest(ctx, s.db, id)
}

func getRequest(ctx context.Context, q querier, id string) (*leave.Request, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrNotFound
	}
	return r, err
}

func (s *Store) UpdateRequest(ctx context.Context, r *leave.Request) error {
	return updateRequest(ctx, s.db, r)
}

func updateRequest(ctx context.Context, q querier, r *leave.Request) error {
	var decidedAt any
	if r.DecidedAt != nil {
		decidedAt = r.DecidedAt.UTC().Format(time.RFC3339Nano)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, decision_comment = ?, decided_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(r.Status), r.DecisionComment, decidedAt, r.ID, r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the row is gone or another transition committed first.
		if _, err := getRequest(ctx, q, r.ID); err != nil {
			return err
		}
		return leave.ErrConcurrentModification
	}
	r.Version++
	return nil
}

func (s *Store) ListByEmployee(ctx context.Context, employeeID string) ([]*leave.Request, error) {
	return queryRequests(ctx, s.db,
		`SELECT `+requestColumns+` FROM leave_requests
		 WHERE employee_id = ? ORDER BY applied_at DESC, id`, employeeID)
}

func (s *Store) ListOpenByEmployee(ctx context.Context, employeeID string) ([]*leave.Request, error) {
	return listOpenByEmployee(ctx, s.db, employeeID)
}

func listOpenByEmployee(ctx context.Context, q querier, employeeID string) ([]*leave.Request, error) {
	return queryRequests(ctx, q,
		`SELECT `+requestColumns+` FROM leave_requests
		 WHERE employee_id = ? AND status IN ('pending', 'approved')
		 ORDER BY start_date`, employeeID)
}

func (s *Store) ListByApprover(ctx context.Context, approverID string, status leave.Status) ([]*leave.Request, error) {
	return listByApprover(ctx, s.db, approverID, status)
}

func listByApprover(ctx context.Context, q querier, approverID string, status leave.Status) ([]*leave.Request, error) {
	if status == "" {
		return queryRequests(ctx, q,
			`SELECT `+requestColumns+` FROM leave_requests
			 WHERE approver_id = ? ORDER BY applied_at DESC, id`, approverID)
	}
	return queryRequests(ctx, q,
		`SELECT `+requestColumns+` FROM leave_requests
		 WHERE approver_id = ? AND status = ? ORDER BY applied_at DESC, id`,
		approverID, string(status))
}

func (s *Store) ListAll(ctx context.Context) ([]*leave.Request, error) {
	return queryRequests(ctx, s.db,
		`SELECT `+requestColumns+` FROM leave_requests ORDER BY applied_at DESC, id`)
}

func queryRequests(ctx context.Context, q querier, query string, args ...any) ([]*leave.Request, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var result []*leave.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc scanner) (*leave.Request, error) {
	var (
		r                  leave.Request
		category           string
		startDate, endDate string
		halfDay            int
		session            string
		dayCount           string
		status             string
		decidedAt          sql.NullString
		appliedAt          string
	)
	err := sc.Scan(
		&r.ID, &r.EmployeeID, &r.ApproverID, &category, &startDate, &endDate,
		&halfDay, &session, &dayCount, &r.Reason, &status, &r.DecisionComment,
		&decidedAt, &appliedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	r.Category = leave.Category(category)
	r.Status = leave.Status(status)
	r.HalfDay = halfDay != 0
	r.Session = leave.HalfDaySession(session)

	if r.StartDate, err = leave.ParseDate(startDate); err != nil {
		return nil, err
	}
	if r.EndDate, err = leave.ParseDate(endDate); err != nil {
		return nil, err
	}
	if r.DayCount, err = decimal.NewFromString(dayCount); err != nil {
		return nil, fmt.Errorf("corrupt day_count %q: %w", dayCount, err)
	}
	if decidedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, decidedAt.String)
		if err != nil {
			return nil, err
		}
		r.DecidedAt = &t
	}
	if r.AppliedAt, err = time.Parse(time.RFC3339Nano, appliedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// =============================================================================
// BALANCE STORE
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, employeeID string, cat leave.Category) (leave.Balance, error) {
	return getBalance(ctx, s.db, employeeID, cat)
}

func getBalance(ctx context.Context, q querier, employeeID string, cat leave.Category) (leave.Balance, error) {
	var allocated, used string
	err := q.QueryRowContext(ctx,
		`SELECT allocated, used FROM balances WHERE employee_id = ? AND category = ?`,
		employeeID, string(cat),
	).Scan(&allocated, &used)
	if err == sql.ErrNoRows {
		return leave.Balance{}, leave.ErrNotFound
	}
	if err != nil {
		return leave.Balance{}, err
	}
	return parseBalance(allocated, used)
}

func parseBalance(allocated, used string) (leave.Balance, error) {
	a, err := decimal.NewFromString(allocated)
	if err != nil {
		return leave.Balance{}, fmt.Errorf("corrupt allocated %q: %w", allocated, err)
	}
	u, err := decimal.NewFromString(used)
	if err != nil {
		return leave.Balance{}, fmt.Errorf("corrupt used %q: %w", used, err)
	}
	return leave.Balance{Allocated: a, Used: u}, nil
}

func (s *Store) SetBalance(ctx context.Context, employeeID string, cat leave.Category, b leave.Balance) error {
	return setBalance(ctx, s.db, employeeID, cat, b)
}

func setBalance(ctx context.Context, q querier, employeeID string, cat leave.Category, b leave.Balance) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO balances (employee_id, category, allocated, used)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (employee_id, category)
		DO UPDATE SET allocated = excluded.allocated, used = excluded.used`,
		employeeID, string(cat), b.Allocated.String(), b.Used.String(),
	)
	return err
}

func (s *Store) Balances(ctx context.Context, employeeID string) (map[leave.Category]leave.Balance, error) {
	return balances(ctx, s.db, employeeID)
}

func balances(ctx context.Context, q querier, employeeID string) (map[leave.Category]leave.Balance, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT category, allocated, used FROM balances WHERE employee_id = ?`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[leave.Category]leave.Balance)
	for rows.Next() {
		var cat, allocated, used string
		if err := rows.Scan(&cat, &allocated, &used); err != nil {
			return nil, err
		}
		b, err := parseBalance(allocated, used)
		if err != nil {
			return nil, err
		}
		result[leave.Category(cat)] = b
	}
	return result, rows.Err()
}

func (s *Store) TokenApplied(ctx context.Context, token string) (bool, error) {
	return tokenApplied(ctx, s.db, token)
}

func tokenApplied(ctx context.Context, q querier, token string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM ledger_tokens WHERE token = ?`, token).Scan(&count)
	return count > 0, err
}

func (s *Store) RecordToken(ctx context.Context, token string) error {
	return recordToken(ctx, s.db, token)
}

func recordToken(ctx context.Context, q querier, token string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO ledger_tokens (token, applied_at) VALUES (?, ?)`,
		token, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	return getEmployee(ctx, s.db, id)
}

func getEmployee(ctx context.Context, q querier, id string) (*leave.Employee, error) {
	var emp leave.Employee
	var role string
	err := q.QueryRowContext(ctx,
		`SELECT id, approver_id, role FROM employees WHERE id = ?`, id,
	).Scan(&emp.ID, &emp.ApproverID, &role)
	if err == sql.ErrNoRows {
		return nil, leave.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	emp.Role = leave.Role(role)
	emp.Balances, err = balances(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// SaveEmployee upserts an employee record and their balance allocations.
// Seeding only; not part of the engine contract.
func (s *Store) SaveEmployee(ctx context.Context, emp leave.Employee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, approver_id, role) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET approver_id = excluded.approver_id, role = excluded.role`,
		emp.ID, emp.ApproverID, string(emp.Role),
	)
	if err != nil {
		return err
	}
	for cat, b := range emp.Balances {
		if err := setBalance(ctx, s.db, emp.ID, cat, b); err != nil {
			return err
		}
	}
	return nil
}

// CountEmployees reports how many employees exist. Used to decide whether
// to seed demo data on startup.
func (s *Store) CountEmployees(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM employees`).Scan(&count)
	return count, err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. If fn returns an
// error the transaction is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the transaction-scoped view handed to WithTx callbacks.
type txStore struct {
	tx *sql.Tx
}

var _ leave.Store = (*txStore)(nil)

func (t *txStore) CreateRequest(ctx context.Context, r *leave.Request) error {
	return createRequest(ctx, t.tx, r)
}

func (t *txStore) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	return getRequest(ctx, t.tx, id)
}

func (t *txStore) UpdateRequest(ctx context.Context, r *leave.Request) error {
	return updateRequest(ctx, t.tx, r)
}

func (t *txStore) ListByEmployee(ctx context.Context, employeeID string) ([]*leave.Request, error) {
	return queryRequests(ctx, t.tx,
		`SELECT `+requestColumns+` FROM leave_requests
		 WHERE employee_id = ? ORDER BY applied_at DESC, id`, employeeID)
}

func (t *txStore) ListOpenByEmployee(ctx context.Context, employeeID string) ([]*leave.Request, error) {
	return listOpenByEmployee(ctx, t.tx, employeeID)
}

func (t *txStore) ListByApprover(ctx context.Context, approverID string, status leave.Status) ([]*leave.Request, error) {
	return listByApprover(ctx, t.tx, approverID, status)
}

func (t *txStore) ListAll(ctx context.Context) ([]*leave.Request, error) {
	return queryRequests(ctx, t.tx,
		`SELECT `+requestColumns+` FROM leave_requests ORDER BY applied_at DESC, id`)
}

func (t *txStore) GetBalance(ctx context.Context, employeeID string, cat leave.Category) (leave.Balance, error) {
	return getBalance(ctx, t.tx, employeeID, cat)
}

func (t *txStore) SetBalance(ctx context.Context, employeeID string, cat leave.Category, b leave.Balance) error {
	return setBalance(ctx, t.tx, employeeID, cat, b)
}

func (t *txStore) Balances(ctx context.Context, employeeID string) (map[leave.Category]leave.Balance, error) {
	return balances(ctx, t.tx, employeeID)
}

func (t *txStore) TokenApplied(ctx context.Context, token string) (bool, error) {
	return tokenApplied(ctx, t.tx, token)
}

func (t *txStore) RecordToken(ctx context.Context, token string) error {
	return recordToken(ctx, t.tx, token)
}

func (t *txStore) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	return getEmployee(ctx, t.tx, id)
}

// Compile-time check.
var _ leave.TxStore = (*Store)(nil)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
