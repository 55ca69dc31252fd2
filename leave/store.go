/*
store.go - Persistence interface for leave requests, ledgers and audit

PURPOSE:
  Defines the boundary between the leave domain and the record store.
  Any backend that can atomically read and replace one request, and answer
  the queries below, can host the engine.

KEY INTERFACES:
  Store:   Requests, ledgers and the audit trail
  TxStore: Store plus read-then-write atomicity

TRANSACTIONS:
  Decisions run inside WithTx: the request is re-read, the engine applies the
  decision, the request is written back and, when an Annual request becomes
  approved, the requester's ledger is recomputed from the approved requests
  visible in the same transaction. Two concurrent decisions on the same
  request, or on two requests of the same requester, therefore serialize.

  Directory lookups happen BEFORE WithTx. Implementations may hold a single
  connection or lock for the whole transaction.

IMPLEMENTATIONS:
  - store/sqlite: SQLite via database/sql
  - store/memory: In-memory for tests and development

SEE ALSO:
  - service.go: The only caller of WithTx
*/
package leave

import (
	"context"
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// ReadRequest returns a *generic.NotFoundError for an unknown id.
	ReadRequest(ctx context.Context, id string) (Request, error)
	// WriteRequest inserts or replaces the request, flow included.
	WriteRequest(ctx context.Context, r Request) error
	DeleteRequest(ctx context.Context, id string) error

	// ListApprovedAnnualRequests returns the requester's approved Annual
	// requests whose StartAt lies in period.
	ListApprovedAnnualRequests(ctx context.Context, requesterID string, period generic.Period) ([]Request, error)
	// ListPendingFor returns pending requests on which userID is a current approver.
	ListPendingFor(ctx context.Context, userID string) ([]Request, error)
	ListByRequester(ctx context.Context, requesterID string) ([]Request, error)

	SaveLedger(ctx context.Context, l Ledger) error
	// GetLedger returns a *generic.NotFoundError when none was recorded.
	GetLedger(ctx context.Context, userID string) (Ledger, error)
	ListLedgers(ctx context.Context) ([]Ledger, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, requestID string) ([]AuditEntry, error)
}

type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditEntry records who did what when. Entries outlive deleted requests.
type AuditEntry struct {
	ID        string
	RequestID string
	ActorID   string
	Action    AuditAction
	At        time.Time
	Payload   map[string]any
}

type AuditAction string

const (
	AuditRequestCreated   AuditAction = "request_created"
	AuditRequestApproved  AuditAction = "request_approved"
	AuditRequestRejected  AuditAction = "request_rejected"
	AuditRequestDeleted   AuditAction = "request_deleted"
	AuditLedgerRecomputed AuditAction = "ledger_recomputed"
)
