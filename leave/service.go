package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-engine/approval"
	"github.com/warp/leave-engine/entitlement"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service exposes the leave operations. Every operation takes the acting
// user explicitly.
type Service struct {
	store  TxStore
	dir    Directory
	ledger *LedgerUpdater
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

func NewService(store TxStore, dir Directory, ledger *LedgerUpdater, opts ...Option) *Service {
	s := &Service{
		store:  store,
		dir:    dir,
		ledger: ledger,
		logger: slog.Default(),
		now:    time.Now,
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// CREATE
// =============================================================================

func (s *Service) Create(ctx context.Context, in CreateInput) (Request, error) {
	if in.RequesterID == "" {
		return Request{}, generic.ValidationErrors{}.Add("requester_id", "is required")
	}
	requester, err := s.dir.GetUser(ctx, in.RequesterID)
	if err != nil {
		return Request{}, err
	}
	for _, id := range in.Deputies {
		if id == "" {
			continue
		}
		if _, err := s.dir.GetUser(ctx, id); err != nil {
			return Request{}, fmt.Errorf("deputy: %w", err)
		}
	}
	members, err := ResolveTierMembers(ctx, s.dir, requester)
	if err != nil {
		return Request{}, err
	}

	now := s.now()
	req, err := NewRequest(in, requester, members, s.newID(), now)
	if err != nil {
		return Request{}, err
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.WriteRequest(ctx, req); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, AuditEntry{
			ID:        s.newID(),
			RequestID: req.ID,
			ActorID:   requester.ID,
			Action:    AuditRequestCreated,
			At:        now,
			Payload: map[string]any{
				"type":        string(req.Type),
				"total_hours": req.TotalHours.String(),
				"approvers":   req.CurrentApprovers,
			},
		})
	})
	if err != nil {
		return Request{}, fmt.Errorf("create request: %w", err)
	}

	s.logger.InfoContext(ctx, "leave request created",
		slog.String("request_id", req.ID),
		slog.String("requester_id", req.RequesterID),
		slog.String("type", string(req.Type)),
		slog.Any("current_approvers", req.CurrentApprovers),
	)
	return req, nil
}

// =============================================================================
// DECIDE
// =============================================================================

func (s *Service) Approve(ctx context.Context, requestID, actorID string) (Request, error) {
	return s.Decide(ctx, requestID, actorID, approval.DecisionApprove)
}

func (s *Service) Reject(ctx context.Context, requestID, actorID string) (Request, error) {
	return s.Decide(ctx, requestID, actorID, approval.DecisionReject)
}

// Decide applies the actor's decision. When it completes approval of an
// Annual request, the requester's ledger is recomputed in the same
// transaction. Refusals leave the stored request untouched.
func (s *Service) Decide(ctx context.Context, requestID, actorID string, decision approval.Decision) (Request, error) {
	actor, err := s.dir.GetUser(ctx, actorID)
	if err != nil {
		return Request{}, err
	}
	pre, err := s.store.ReadRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	// Only an approval can complete the flow and touch the ledger.
	var requester User
	if decision == approval.DecisionApprove && pre.Type.DebitsEntitlement() {
		if requester, err = s.dir.GetUser(ctx, pre.RequesterID); err != nil {
			return Request{}, fmt.Errorf("requester of %s: %w", requestID, err)
		}
	}

	var (
		req    Request
		ledger *Ledger
	)
	err = s.store.WithTx(ctx, func(tx Store) error {
		var err error
		req, err = tx.ReadRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if err := req.ConsistencyCheck(); err != nil {
			return err
		}

		now := s.now()
		res, err := approval.ApplyDecision(req.Flow, approval.Actor{ID: actor.ID, Tier: actor.Rank.Tier()}, decision, now)
		if err != nil {
			var aerr *generic.AuthorizationError
			if errors.As(err, &aerr) {
				aerr.RequestID = req.ID
			}
			return err
		}
		req.Apply(res, now)

		if err := tx.WriteRequest(ctx, req); err != nil {
			return err
		}
		action := AuditRequestApproved
		if decision == approval.DecisionReject {
			action = AuditRequestRejected
		}
		if err := tx.AppendAudit(ctx, AuditEntry{
			ID:        s.newID(),
			RequestID: req.ID,
			ActorID:   actor.ID,
			Action:    action,
			At:        now,
			Payload: map[string]any{
				"entries": res.Changed,
				"status":  string(res.Status),
			},
		}); err != nil {
			return err
		}

		if res.Status != approval.StatusApproved || !req.Type.DebitsEntitlement() {
			return nil
		}
		l, err := s.ledger.Recompute(ctx, tx, requester, now)
		if err != nil {
			return err
		}
		ledger = &l
		return tx.AppendAudit(ctx, AuditEntry{
			ID:        s.newID(),
			RequestID: req.ID,
			ActorID:   actor.ID,
			Action:    AuditLedgerRecomputed,
			At:        now,
			Payload: map[string]any{
				"period":    l.Period.String(),
				"total":     l.Total.Value.String(),
				"used":      l.Used.Value.String(),
				"remaining": l.Remaining.Value.String(),
			},
		})
	})
	if err != nil {
		s.logFailure(ctx, "decision refused", err, slog.String("request_id", requestID), slog.String("actor_id", actorID))
		return Request{}, err
	}

	s.logger.InfoContext(ctx, "leave request decided",
		slog.String("request_id", req.ID),
		slog.String("actor_id", actor.ID),
		slog.String("decision", string(decision)),
		slog.String("status", string(req.Status)),
	)
	if ledger != nil {
		s.logger.InfoContext(ctx, "ledger recomputed",
			slog.String("user_id", ledger.UserID),
			slog.String("period", ledger.Period.String()),
			slog.String("used", ledger.Used.Value.String()),
			slog.String("remaining", ledger.Remaining.Value.String()),
		)
	}
	return req, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete withdraws a request. Only the requester may do it, and only while the
// request is pending with no approvals recorded.
func (s *Service) Delete(ctx context.Context, requestID, actorID string) error {
	if _, err := s.dir.GetUser(ctx, actorID); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx Store) error {
		req, err := tx.ReadRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.RequesterID != actorID {
			return &generic.AuthorizationError{ActorID: actorID, RequestID: requestID, Reason: generic.ErrNotRequester}
		}
		if !req.Deletable() {
			return &generic.AuthorizationError{ActorID: actorID, RequestID: requestID, Reason: generic.ErrNotDeletable}
		}
		if err := tx.DeleteRequest(ctx, requestID); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, AuditEntry{
			ID:        s.newID(),
			RequestID: requestID,
			ActorID:   actorID,
			Action:    AuditRequestDeleted,
			At:        s.now(),
		})
	})
	if err != nil {
		s.logFailure(ctx, "delete refused", err, slog.String("request_id", requestID), slog.String("actor_id", actorID))
		return err
	}
	s.logger.InfoContext(ctx, "leave request deleted", slog.String("request_id", requestID))
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, requestID string) (Request, error) {
	req, err := s.store.ReadRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if err := req.ConsistencyCheck(); err != nil {
		s.logFailure(ctx, "stored request failed consistency check", err, slog.String("request_id", requestID))
		return Request{}, err
	}
	return req, nil
}

// PendingFor is the reviewer queue: pending requests the user may decide now.
func (s *Service) PendingFor(ctx context.Context, userID string) ([]Request, error) {
	if _, err := s.dir.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListPendingFor(ctx, userID)
}

func (s *Service) ListByRequester(ctx context.Context, userID string) ([]Request, error) {
	if _, err := s.dir.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListByRequester(ctx, userID)
}

func (s *Service) Audit(ctx context.Context, requestID string) ([]AuditEntry, error) {
	return s.store.ListAudit(ctx, requestID)
}

// Policy is the entitlement policy ledgers are computed under.
func (s *Service) Policy() entitlement.Policy {
	return s.ledger.Policy()
}

// Entitlement computes the user's position as of asOf without persisting it.
func (s *Service) Entitlement(ctx context.Context, userID string, asOf time.Time) (Snapshot, error) {
	user, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.ledger.Snapshot(ctx, s.store, user, asOf)
}

// RefreshLedgers recomputes every stored ledger whose period no longer
// contains asOf, so balances roll over at each anniversary. It returns how
// many ledgers were rewritten. Users missing from the directory are skipped.
func (s *Service) RefreshLedgers(ctx context.Context, asOf time.Time) (int, error) {
	ledgers, err := s.store.ListLedgers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list ledgers: %w", err)
	}

	refreshed := 0
	for _, l := range ledgers {
		if l.Period.Contains(asOf) {
			continue
		}
		user, err := s.dir.GetUser(ctx, l.UserID)
		if generic.IsNotFound(err) {
			s.logger.WarnContext(ctx, "ledger owner not in directory", slog.String("user_id", l.UserID))
			continue
		}
		if err != nil {
			return refreshed, err
		}
		err = s.store.WithTx(ctx, func(tx Store) error {
			fresh, err := s.ledger.Recompute(ctx, tx, user, asOf)
			if err != nil {
				return err
			}
			return tx.AppendAudit(ctx, AuditEntry{
				ID:      s.newID(),
				ActorID: user.ID,
				Action:  AuditLedgerRecomputed,
				At:      s.now(),
				Payload: map[string]any{"period": fresh.Period.String(), "reason": "rollover"},
			})
		})
		if err != nil {
			return refreshed, fmt.Errorf("refresh ledger for %s: %w", user.ID, err)
		}
		refreshed++
	}
	if refreshed > 0 {
		s.logger.InfoContext(ctx, "ledgers rolled over", slog.Int("count", refreshed))
	}
	return refreshed, nil
}

// logFailure logs system faults loudly and client mistakes quietly.
func (s *Service) logFailure(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	level := slog.LevelInfo
	if generic.IsSystemFault(err) && !generic.IsNotFound(err) {
		level = slog.LevelError
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	s.logger.LogAttrs(ctx, level, msg, attrs...)
}
