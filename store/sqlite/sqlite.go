/*
Package sqlite provides a SQLite-backed implementation of the leave storage
interfaces.

PURPOSE:
  Implements leave.TxStore (requests, ledgers, audit trail) and
  leave.Directory (users and department membership) on one SQLite database.

INTERFACES IMPLEMENTED:
  leave.Store:     Request, ledger and audit persistence
  leave.TxStore:   Read-then-write transactions for decisions
  leave.Directory: User lookup and department members

KEY TABLES:
  users:             Directory entries
  user_departments:  User-to-department links
  leave_requests:    One row per request, approval flow embedded as JSON
  request_approvers: Projection of current approvers (reviewer queues)
  leave_ledgers:     Latest entitlement snapshot per requester
  audit_log:         Who did what when, kept after requests are deleted

INDEXES:
  - idx_request_approvers_approver: ListPendingFor (hot path)
  - idx_leave_requests_annual: Ledger recomputation
  - idx_user_departments_department: Drafting tier members at creation

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single connection so an
  in-memory database is shared by every caller. While WithTx runs, that
  connection belongs to the transaction: fn must only use the Store it is
  given.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for crash recovery.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - leave/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/approval"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// timeLayout is fixed-width UTC so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements the leave storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ leave.TxStore   = (*Store)(nil)
	_ leave.Directory = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		rank TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_departments (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		department TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (user_id, department)
	);

	CREATE INDEX IF NOT EXISTS idx_user_departments_department
		ON user_departments(department);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL,
		requester_name TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		total_hours TEXT NOT NULL,
		reason TEXT NOT NULL,
		deputies_json TEXT NOT NULL,
		flow_json TEXT NOT NULL,
		status TEXT NOT NULL,
		current_approvers_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_requester
		ON leave_requests(requester_id, created_at);

	-- Ledger recomputation: approved annual requests of one requester by start
	CREATE INDEX IF NOT EXISTS idx_leave_requests_annual
		ON leave_requests(requester_id, leave_type, status, start_at);

	-- Rewritten with the request on every transition
	CREATE TABLE IF NOT EXISTS request_approvers (
		request_id TEXT NOT NULL REFERENCES leave_requests(id) ON DELETE CASCADE,
		approver_id TEXT NOT NULL,
		PRIMARY KEY (request_id, approver_id)
	);

	CREATE INDEX IF NOT EXISTS idx_request_approvers_approver
		ON request_approvers(approver_id);

	CREATE TABLE IF NOT EXISTS leave_ledgers (
		user_id TEXT PRIMARY KEY,
		as_of TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		total_days TEXT NOT NULL,
		used_days TEXT NOT NULL,
		remaining_days TEXT NOT NULL,
		tenure_text TEXT NOT NULL,
		computed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		request_id TEXT,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		at TEXT NOT NULL,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_request
		ON audit_log(request_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Writes that touch more than one table always run in a transaction.

func (s *Store) WriteRequest(ctx context.Context, r leave.Request) error {
	return s.WithTx(ctx, func(tx leave.Store) error { return tx.WriteRequest(ctx, r) })
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx leave.Store) error { return tx.DeleteRequest(ctx, id) })
}

func (s *Store) ReadRequest(ctx context.Context, id string) (leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&conn{q: s.db}).ReadRequest(ctx, id)
}

func (s *Store) ListApprovedAnnualRequests(ctx context.Context, requesterID string, period generic.Period) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&conn{q: s.db}).ListApprovedAnnualRequests(ctx, requesterID, period)
}

func (s *Store) ListPendingFor(ctx context.Context, userID string) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&conn{q: s.db}).ListPendingFor(ctx, userID)
}

func (s *Store) ListByRequester(ctx context.Context, requesterID string) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&conn{q: s.db}).ListByRequester(ctx, requesterID)
}

func (s *Store) SaveLedger(ctx context.Context, l leave.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&conn{q: s.db}).SaveLedger(ctx, l)
}

func (s *Store) GetLedger(ctx context.Context, userID string) (leave.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&conn{q: s.db}).GetLedger(ctx, userID)
}

func (s *Store) ListLedgers(ctx context.Context) ([]leave.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&conn{q: s.db}).ListLedgers(ctx)
}

func (s *Store) AppendAudit(ctx context.Context, e leave.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&conn{q: s.db}).AppendAudit(ctx, e)
}

func (s *Store) ListAudit(ctx context.Context, requestID string) ([]leave.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&conn{q: s.db}).ListAudit(ctx, requestID)
}

// =============================================================================
// REQUESTS
// =============================================================================

// conn runs every query against one queryer: the pool outside a
// transaction, the *sql.Tx inside one.
type conn struct {
	q queryer
}

const requestColumns = `
	id, requester_id, requester_name, leave_type, start_at, end_at, total_hours,
	reason, deputies_json, flow_json, status, current_approvers_json, created_at, updated_at`

func (c *conn) WriteRequest(ctx context.Context, r leave.Request) error {
	deputies, err := json.Marshal(r.Deputies)
	if err != nil {
		return err
	}
	flow, err := json.Marshal(r.Flow)
	if err != nil {
		return err
	}
	current, err := json.Marshal(nonNil(r.CurrentApprovers))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO leave_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			flow_json = excluded.flow_json,
			status = excluded.status,
			current_approvers_json = excluded.current_approvers_json,
			updated_at = excluded.updated_at
	`
	_, err = c.q.ExecContext(ctx, query,
		r.ID, r.RequesterID, r.RequesterName, string(r.Type),
		formatTime(r.StartAt), formatTime(r.EndAt), r.TotalHours.String(),
		r.Reason, string(deputies), string(flow), string(r.Status), string(current),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to write request %s: %w", r.ID, err)
	}

	if _, err := c.q.ExecContext(ctx, "DELETE FROM request_approvers WHERE request_id = ?", r.ID); err != nil {
		return fmt.Errorf("failed to clear approvers of %s: %w", r.ID, err)
	}
	for _, id := range r.CurrentApprovers {
		if _, err := c.q.ExecContext(ctx,
			"INSERT OR IGNORE INTO request_approvers (request_id, approver_id) VALUES (?, ?)",
			r.ID, id,
		); err != nil {
			return fmt.Errorf("failed to index approver %s of %s: %w", id, r.ID, err)
		}
	}
	return nil
}

func (c *conn) ReadRequest(ctx context.Context, id string) (leave.Request, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Request{}, &generic.NotFoundError{Kind: "request", ID: id}
	}
	return r, err
}

func (c *conn) DeleteRequest(ctx context.Context, id string) error {
	res, err := c.q.ExecContext(ctx, "DELETE FROM leave_requests WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete request %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "request", ID: id}
	}
	return nil
}

func (c *conn) ListApprovedAnnualRequests(ctx context.Context, requesterID string, period generic.Period) ([]leave.Request, error) {
	query := `SELECT ` + requestColumns + `
		FROM leave_requests
		WHERE requester_id = ? AND leave_type = ? AND status = ?
		  AND start_at >= ? AND start_at < ?
		ORDER BY start_at ASC, id ASC
	`
	return c.queryRequests(ctx, query,
		requesterID, string(leave.TypeAnnual), string(approval.StatusApproved),
		formatTime(period.Start), formatTime(period.End))
}

func (c *conn) ListPendingFor(ctx context.Context, userID string) ([]leave.Request, error) {
	query := `SELECT ` + prefixed("r", requestColumns) + `
		FROM leave_requests r
		JOIN request_approvers a ON a.request_id = r.id
		WHERE a.approver_id = ? AND r.status = ?
		ORDER BY r.created_at ASC, r.id ASC
	`
	return c.queryRequests(ctx, query, userID, string(approval.StatusPending))
}

func (c *conn) ListByRequester(ctx context.Context, requesterID string) ([]leave.Request, error) {
	query := `SELECT ` + requestColumns + `
		FROM leave_requests
		WHERE requester_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return c.queryRequests(ctx, query, requesterID)
}

func (c *conn) queryRequests(ctx context.Context, query string, args ...any) ([]leave.Request, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []leave.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (leave.Request, error) {
	var (
		r                                  leave.Request
		leaveType, status                  string
		startAt, endAt, createdAt, updated string
		hours, deputies, flow, current     string
	)
	err := row.Scan(
		&r.ID, &r.RequesterID, &r.RequesterName, &leaveType, &startAt, &endAt, &hours,
		&r.Reason, &deputies, &flow, &status, &current, &createdAt, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan request: %w", err)
	}

	r.Type = leave.LeaveType(leaveType)
	r.Status = approval.Status(status)
	if r.TotalHours, err = decimal.NewFromString(hours); err != nil {
		return r, fmt.Errorf("request %s: bad total_hours %q: %w", r.ID, hours, err)
	}
	if err := json.Unmarshal([]byte(deputies), &r.Deputies); err != nil {
		return r, fmt.Errorf("request %s: bad deputies: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(flow), &r.Flow); err != nil {
		return r, &generic.InconsistentStateError{RequestID: r.ID, Detail: "unreadable approval flow: " + err.Error()}
	}
	if err := json.Unmarshal([]byte(current), &r.CurrentApprovers); err != nil {
		return r, fmt.Errorf("request %s: bad current approvers: %w", r.ID, err)
	}
	if len(r.CurrentApprovers) == 0 {
		r.CurrentApprovers = nil
	}
	for _, t := range []struct {
		dst *time.Time
		src string
	}{{&r.StartAt, startAt}, {&r.EndAt, endAt}, {&r.CreatedAt, createdAt}, {&r.UpdatedAt, updated}} {
		if *t.dst, err = parseTime(t.src); err != nil {
			return r, fmt.Errorf("request %s: %w", r.ID, err)
		}
	}
	return r, nil
}

// =============================================================================
// LEDGERS
// =============================================================================

func (c *conn) SaveLedger(ctx context.Context, l leave.Ledger) error {
	query := `
		INSERT INTO leave_ledgers (user_id, as_of, period_start, period_end,
			total_days, used_days, remaining_days, tenure_text, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			as_of = excluded.as_of,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			total_days = excluded.total_days,
			used_days = excluded.used_days,
			remaining_days = excluded.remaining_days,
			tenure_text = excluded.tenure_text,
			computed_at = excluded.computed_at
	`
	_, err := c.q.ExecContext(ctx, query,
		l.UserID, formatTime(l.AsOf), formatTime(l.Period.Start), formatTime(l.Period.End),
		l.Total.Value.String(), l.Used.Value.String(), l.Remaining.Value.String(),
		l.TenureText, formatTime(l.ComputedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save ledger for %s: %w", l.UserID, err)
	}
	return nil
}

const ledgerColumns = `user_id, as_of, period_start, period_end, total_days, used_days, remaining_days, tenure_text, computed_at`

func (c *conn) GetLedger(ctx context.Context, userID string) (leave.Ledger, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+ledgerColumns+" FROM leave_ledgers WHERE user_id = ?", userID)
	l, err := scanLedger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Ledger{}, &generic.NotFoundError{Kind: "ledger", ID: userID}
	}
	return l, err
}

func (c *conn) ListLedgers(ctx context.Context) ([]leave.Ledger, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT "+ledgerColumns+" FROM leave_ledgers ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []leave.Ledger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}

func scanLedger(row scanner) (leave.Ledger, error) {
	var (
		l                          leave.Ledger
		asOf, start, end, computed string
		total, used, remaining     string
	)
	err := row.Scan(&l.UserID, &asOf, &start, &end, &total, &used, &remaining, &l.TenureText, &computed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return l, err
		}
		return l, fmt.Errorf("failed to scan ledger: %w", err)
	}

	for _, t := range []struct {
		dst *time.Time
		src string
	}{{&l.AsOf, asOf}, {&l.Period.Start, start}, {&l.Period.End, end}, {&l.ComputedAt, computed}} {
		if *t.dst, err = parseTime(t.src); err != nil {
			return l, fmt.Errorf("ledger %s: %w", l.UserID, err)
		}
	}
	for _, a := range []struct {
		dst *generic.Amount
		src string
	}{{&l.Total, total}, {&l.Used, used}, {&l.Remaining, remaining}} {
		v, err := decimal.NewFromString(a.src)
		if err != nil {
			return l, fmt.Errorf("ledger %s: bad amount %q: %w", l.UserID, a.src, err)
		}
		*a.dst = generic.NewAmountFromDecimal(v, generic.UnitDays)
	}
	return l, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (c *conn) AppendAudit(ctx context.Context, e leave.AuditEntry) error {
	var payload sql.NullString
	if len(e.Payload) > 0 {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode audit payload: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}
	_, err := c.q.ExecContext(ctx,
		"INSERT INTO audit_log (id, request_id, actor_id, action, at, payload_json) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, nullString(e.RequestID), e.ActorID, string(e.Action), formatTime(e.At), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAudit returns entries in the order they were written.
func (c *conn) ListAudit(ctx context.Context, requestID string) ([]leave.AuditEntry, error) {
	rows, err := c.q.QueryContext(ctx,
		"SELECT id, request_id, actor_id, action, at, payload_json FROM audit_log WHERE request_id = ? ORDER BY rowid",
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []leave.AuditEntry
	for rows.Next() {
		var (
			e       leave.AuditEntry
			reqID   sql.NullString
			action  string
			at      string
			payload sql.NullString
		)
		if err := rows.Scan(&e.ID, &reqID, &e.ActorID, &action, &at, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.RequestID = reqID.String
		e.Action = leave.AuditAction(action)
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("audit %s: bad payload: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// DIRECTORY (leave.Directory interface)
// =============================================================================

// SaveUser inserts or replaces a user and their department memberships.
func (s *Store) SaveUser(ctx context.Context, u leave.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO users (id, display_name, rank, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			rank = excluded.rank,
			hire_date = excluded.hire_date
	`, u.ID, u.DisplayName, string(u.Rank), formatTime(u.HireDate), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM user_departments WHERE user_id = ?", u.ID); err != nil {
		return err
	}
	for i, dept := range u.Departments {
		if _, err := sqlTx.ExecContext(ctx,
			"INSERT OR IGNORE INTO user_departments (user_id, department, position) VALUES (?, ?, ?)",
			u.ID, dept, i,
		); err != nil {
			return fmt.Errorf("failed to link %s to %s: %w", u.ID, dept, err)
		}
	}
	return sqlTx.Commit()
}

func (s *Store) GetUser(ctx context.Context, id string) (leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.queryUsers(ctx, "WHERE u.id = ?", id)
	if err != nil {
		return leave.User{}, err
	}
	if len(users) == 0 {
		return leave.User{}, &generic.NotFoundError{Kind: "user", ID: id}
	}
	return users[0], nil
}

// ListUsers returns every user ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryUsers(ctx, "")
}

func (s *Store) ListDepartmentMembers(ctx context.Context, department string) ([]leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryUsers(ctx,
		"WHERE u.id IN (SELECT user_id FROM user_departments WHERE department = ?)", department)
}

// queryUsers loads users with their departments in one pass. Rows arrive
// ordered by user, then department position.
func (s *Store) queryUsers(ctx context.Context, where string, args ...any) ([]leave.User, error) {
	query := `
		SELECT u.id, u.display_name, u.rank, u.hire_date, d.department
		FROM users u
		LEFT JOIN user_departments d ON d.user_id = u.id
		` + where + `
		ORDER BY u.id ASC, d.position ASC
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []leave.User
	for rows.Next() {
		var (
			u        leave.User
			rank     string
			hireDate string
			dept     sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.DisplayName, &rank, &hireDate, &dept); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if n := len(users); n > 0 && users[n-1].ID == u.ID {
			if dept.Valid {
				users[n-1].Departments = append(users[n-1].Departments, dept.String)
			}
			continue
		}
		u.Rank = leave.Rank(rank)
		if u.HireDate, err = parseTime(hireDate); err != nil {
			return nil, fmt.Errorf("user %s: %w", u.ID, err)
		}
		if dept.Valid {
			u.Departments = []string{dept.String}
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"request_approvers", "leave_requests", "leave_ledgers", "audit_log", "user_departments", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
