// Package memory provides an in-memory leave.TxStore and leave.Directory.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/warp/leave-engine/approval"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store guards a records value with one RWMutex. WithTx holds the write lock
// for the whole transaction and restores a snapshot if fn fails.
type Store struct {
	mu  sync.RWMutex
	rec *records
}

func New() *Store {
	return &Store{rec: newRecords()}
}

var (
	_ leave.TxStore   = (*Store)(nil)
	_ leave.Directory = (*Store)(nil)
)

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.rec.clone()
	if err := fn(s.rec); err != nil {
		s.rec = snapshot
		return err
	}
	return nil
}

func (s *Store) ReadRequest(ctx context.Context, id string) (leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.ReadRequest(ctx, id)
}

func (s *Store) WriteRequest(ctx context.Context, r leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.WriteRequest(ctx, r)
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.DeleteRequest(ctx, id)
}

func (s *Store) ListApprovedAnnualRequests(ctx context.Context, requesterID string, period generic.Period) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.ListApprovedAnnualRequests(ctx, requesterID, period)
}

func (s *Store) ListPendingFor(ctx context.Context, userID string) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.ListPendingFor(ctx, userID)
}

func (s *Store) ListByRequester(ctx context.Context, requesterID string) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.ListByRequester(ctx, requesterID)
}

func (s *Store) SaveLedger(ctx context.Context, l leave.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.SaveLedger(ctx, l)
}

func (s *Store) GetLedger(ctx context.Context, userID string) (leave.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.GetLedger(ctx, userID)
}

func (s *Store) ListLedgers(ctx context.Context) ([]leave.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.ListLedgers(ctx)
}

func (s *Store) AppendAudit(ctx context.Context, e leave.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.AppendAudit(ctx, e)
}

func (s *Store) ListAudit(ctx context.Context, requestID string) ([]leave.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.ListAudit(ctx, requestID)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (s *Store) SaveUser(_ context.Context, u leave.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Departments = slices.Clone(u.Departments)
	s.rec.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.rec.users[id]
	if !ok {
		return leave.User{}, &generic.NotFoundError{Kind: "user", ID: id}
	}
	u.Departments = slices.Clone(u.Departments)
	return u, nil
}

// ListUsers returns every user ordered by id.
func (s *Store) ListUsers(_ context.Context) ([]leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.usersWhere(func(leave.User) bool { return true }), nil
}

func (s *Store) ListDepartmentMembers(_ context.Context, department string) ([]leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.usersWhere(func(u leave.User) bool { return slices.Contains(u.Departments, department) }), nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = newRecords()
	return nil
}

// =============================================================================
// RECORDS - unlocked state, also the transactional view
// =============================================================================

type records struct {
	users    map[string]leave.User
	requests map[string]leave.Request
	ledgers  map[string]leave.Ledger
	audit    []leave.AuditEntry
}

func newRecords() *records {
	return &records{
		users:    make(map[string]leave.User),
		requests: make(map[string]leave.Request),
		ledgers:  make(map[string]leave.Ledger),
	}
}

// clone copies the maps. Stored values are never mutated in place, so a
// shallow copy is a complete snapshot.
func (r *records) clone() *records {
	return &records{
		users:    maps.Clone(r.users),
		requests: maps.Clone(r.requests),
		ledgers:  maps.Clone(r.ledgers),
		audit:    slices.Clone(r.audit),
	}
}

func (r *records) ReadRequest(_ context.Context, id string) (leave.Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return leave.Request{}, &generic.NotFoundError{Kind: "request", ID: id}
	}
	return req.Clone(), nil
}

func (r *records) WriteRequest(_ context.Context, req leave.Request) error {
	r.requests[req.ID] = req.Clone()
	return nil
}

func (r *records) DeleteRequest(_ context.Context, id string) error {
	if _, ok := r.requests[id]; !ok {
		return &generic.NotFoundError{Kind: "request", ID: id}
	}
	delete(r.requests, id)
	return nil
}

func (r *records) ListApprovedAnnualRequests(_ context.Context, requesterID string, period generic.Period) ([]leave.Request, error) {
	return r.requestsWhere(func(req leave.Request) bool {
		return req.RequesterID == requesterID &&
			req.Type == leave.TypeAnnual &&
			req.Status == approval.StatusApproved &&
			period.Contains(req.StartAt)
	}), nil
}

func (r *records) ListPendingFor(_ context.Context, userID string) ([]leave.Request, error) {
	return r.requestsWhere(func(req leave.Request) bool {
		return req.Status == approval.StatusPending && slices.Contains(req.CurrentApprovers, userID)
	}), nil
}

func (r *records) ListByRequester(_ context.Context, requesterID string) ([]leave.Request, error) {
	return r.requestsWhere(func(req leave.Request) bool { return req.RequesterID == requesterID }), nil
}

func (r *records) SaveLedger(_ context.Context, l leave.Ledger) error {
	r.ledgers[l.UserID] = l
	return nil
}

func (r *records) GetLedger(_ context.Context, userID string) (leave.Ledger, error) {
	l, ok := r.ledgers[userID]
	if !ok {
		return leave.Ledger{}, &generic.NotFoundError{Kind: "ledger", ID: userID}
	}
	return l, nil
}

func (r *records) ListLedgers(_ context.Context) ([]leave.Ledger, error) {
	out := slices.Collect(maps.Values(r.ledgers))
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *records) AppendAudit(_ context.Context, e leave.AuditEntry) error {
	r.audit = append(r.audit, e)
	return nil
}

func (r *records) ListAudit(_ context.Context, requestID string) ([]leave.AuditEntry, error) {
	var out []leave.AuditEntry
	for _, e := range r.audit {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

// requestsWhere returns matching requests ordered by creation time, then id.
func (r *records) requestsWhere(match func(leave.Request) bool) []leave.Request {
	var out []leave.Request
	for _, req := range r.requests {
		if match(req) {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *records) usersWhere(match func(leave.User) bool) []leave.User {
	var out []leave.User
	for _, u := range r.users {
		if match(u) {
			u.Departments = slices.Clone(u.Departments)
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
