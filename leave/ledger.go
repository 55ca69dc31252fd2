package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/approval"
	"github.com/warp/leave-engine/entitlement"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// ENTITLEMENT LEDGER
// =============================================================================

// Snapshot is a requester's annual-leave position in one accrual period.
//
//	Total     = allotment for tenure as of AsOf
//	Used      = sum(TotalHours of approved Annual requests starting in Period) / 8
//	Remaining = Total - Used
//
// Used and Remaining are rounded to 2 decimals. Remaining is never clamped:
// the engine does not block over-allotment.
type Snapshot struct {
	UserID     string
	AsOf       time.Time
	Period     generic.Period
	Total      generic.Amount
	Used       generic.Amount
	Remaining  generic.Amount
	TenureText string
}

// Ledger is the persisted snapshot for one requester.
type Ledger struct {
	Snapshot
	ComputedAt time.Time
}

// LedgerUpdater recomputes ledgers from scratch. A recomputation reads every
// approved Annual request in the period, so it is idempotent and does not
// depend on the order approvals arrive in.
type LedgerUpdater struct {
	policy entitlement.Policy
}

func NewLedgerUpdater(policy entitlement.Policy) *LedgerUpdater {
	return &LedgerUpdater{policy: policy}
}

func (u *LedgerUpdater) Policy() entitlement.Policy { return u.policy }

// Snapshot computes the position without writing it.
func (u *LedgerUpdater) Snapshot(ctx context.Context, store Store, requester User, asOf time.Time) (Snapshot, error) {
	period := u.policy.ResolvePeriod(requester.HireDate, asOf)

	reqs, err := store.ListApprovedAnnualRequests(ctx, requester.ID, period)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list approved annual requests for %s: %w", requester.ID, err)
	}

	hours := decimal.Zero
	for _, r := range reqs {
		if r.RequesterID != requester.ID || !r.Type.DebitsEntitlement() || r.Status != approval.StatusApproved || !period.Contains(r.StartAt) {
			return Snapshot{}, &generic.InconsistentStateError{
				RequestID: r.ID,
				Detail:    "store returned a request outside the approved annual set for " + period.String(),
			}
		}
		hours = hours.Add(r.TotalHours)
	}

	total := u.policy.Allotment(requester.HireDate, asOf)
	used := generic.HoursToDays(generic.NewAmountFromDecimal(hours, generic.UnitHours)).Round(2)
	return Snapshot{
		UserID:     requester.ID,
		AsOf:       asOf,
		Period:     period,
		Total:      total,
		Used:       used,
		Remaining:  total.Sub(used).Round(2),
		TenureText: entitlement.DescribeTenure(requester.HireDate, asOf),
	}, nil
}

// Recompute computes the snapshot as of asOf and saves it as the requester's
// ledger.
func (u *LedgerUpdater) Recompute(ctx context.Context, store Store, requester User, asOf time.Time) (Ledger, error) {
	snap, err := u.Snapshot(ctx, store, requester, asOf)
	if err != nil {
		return Ledger{}, err
	}
	l := Ledger{Snapshot: snap, ComputedAt: asOf}
	if err := store.SaveLedger(ctx, l); err != nil {
		return Ledger{}, fmt.Errorf("save ledger for %s: %w", requester.ID, err)
	}
	return l, nil
}
