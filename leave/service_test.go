package leave_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/approval"
	"github.com/warp/leave-engine/entitlement"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc   *leave.Service
	store *memory.Store
	clock *time.Time
}

// newFixture seeds a small organization:
//
//	eng:   emp, dep1, dep2 (staff), sup1, sup2 (supervisors)
//	solo:  lone, buddy (staff only, no approvers above deputies)
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	users := []leave.User{
		{ID: "emp", DisplayName: "Emp", Rank: leave.RankStaff, Departments: []string{"eng"}, HireDate: day(2020, 1, 1)},
		{ID: "dep1", Rank: leave.RankStaff, Departments: []string{"eng"}, HireDate: day(2018, 5, 1)},
		{ID: "dep2", Rank: leave.RankStaff, Departments: []string{"eng"}, HireDate: day(2019, 5, 1)},
		{ID: "sup1", Rank: leave.RankSupervisor, Departments: []string{"eng"}, HireDate: day(2015, 5, 1)},
		{ID: "sup2", Rank: leave.RankSupervisor, Departments: []string{"eng"}, HireDate: day(2016, 5, 1)},
		{ID: "lone", Rank: leave.RankStaff, Departments: []string{"solo"}, HireDate: day(2022, 7, 15)},
		{ID: "buddy", Rank: leave.RankStaff, Departments: []string{"solo"}, HireDate: day(2022, 7, 15)},
	}
	for _, u := range users {
		require.NoError(t, store.SaveUser(ctx, u))
	}

	clock := day(2024, 3, 1)
	var seq atomic.Int64
	svc := leave.NewService(store, store, leave.NewLedgerUpdater(entitlement.StatutoryPolicy()),
		leave.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		leave.WithClock(func() time.Time { return clock }),
		leave.WithIDGenerator(func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) }),
	)
	return &fixture{svc: svc, store: store, clock: &clock}
}

func (f *fixture) create(t *testing.T, requester string, lt leave.LeaveType, start time.Time, hours int64, deputies ...string) leave.Request {
	t.Helper()
	req, err := f.svc.Create(context.Background(), leave.CreateInput{
		RequesterID: requester,
		Type:        lt,
		StartAt:     start,
		EndAt:       start.Add(time.Duration(hours) * time.Hour),
		TotalHours:  decimal.NewFromInt(hours),
		Reason:      "time off",
		Deputies:    deputies,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) approve(t *testing.T, requestID, actor string) leave.Request {
	t.Helper()
	req, err := f.svc.Approve(context.Background(), requestID, actor)
	require.NoError(t, err)
	return req
}

// =============================================================================
// CREATE
// =============================================================================

func TestService_Create_DraftsDepartmentSupervisors(t *testing.T) {
	f := newFixture(t)

	req := f.create(t, "emp", leave.TypeAnnual, day(2024, 3, 11), 8, "dep1")

	assert.Equal(t, "id-001", req.ID)
	assert.Equal(t, []string{"sup1", "sup2"}, []string{req.Flow.Supervisors[0].ApproverID, req.Flow.Supervisors[1].ApproverID})
	assert.Equal(t, []string{"dep1"}, req.CurrentApprovers)

	stored, err := f.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.Flow, stored.Flow)

	audit, err := f.svc.Audit(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, leave.AuditRequestCreated, audit[0].Action)
}

func TestService_Create_UnknownUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, leave.CreateInput{RequesterID: "ghost", Type: leave.TypeAnnual})
	assert.True(t, generic.IsNotFound(err))

	in := leave.CreateInput{
		RequesterID: "emp", Type: leave.TypeSick, StartAt: day(2024, 3, 4), EndAt: day(2024, 3, 5),
		TotalHours: decimal.NewFromInt(8), Reason: "flu", Deputies: []string{"nobody"},
	}
	_, err = f.svc.Create(ctx, in)
	assert.True(t, generic.IsNotFound(err))

	_, err = f.svc.Create(ctx, leave.CreateInput{})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// DECIDE
// =============================================================================

func TestService_Decide_ApprovalChain(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "emp", leave.TypePersonal, day(2024, 3, 11), 8, "dep1", "dep2")

	req = f.approve(t, req.ID, "dep2")
	assert.Equal(t, []string{"dep1"}, req.CurrentApprovers)

	req = f.approve(t, req.ID, "dep1")
	assert.Equal(t, []string{"sup1", "sup2"}, req.CurrentApprovers)

	queue, err := f.svc.PendingFor(context.Background(), "sup2")
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, req.ID, queue[0].ID)

	req = f.approve(t, req.ID, "sup2")
	assert.Equal(t, approval.StatusApproved, req.Status)

	queue, err = f.svc.PendingFor(context.Background(), "sup1")
	require.NoError(t, err)
	assert.Empty(t, queue)

	// Late rejection after approval completed is refused.
	_, err = f.svc.Reject(context.Background(), req.ID, "sup1")
	assert.ErrorIs(t, err, generic.ErrRequestTerminal)
	var aerr *generic.AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, req.ID, aerr.RequestID)

	stored, err := f.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, stored.Status)
}

func TestService_Decide_RefusalsDoNotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, "emp", leave.TypeAnnual, day(2024, 3, 11), 8, "dep1")

	_, err := f.svc.Approve(ctx, req.ID, "sup1")
	assert.ErrorIs(t, err, generic.ErrNotCurrentApprover)

	_, err = f.svc.Approve(ctx, req.ID, "ghost")
	assert.True(t, generic.IsNotFound(err))

	_, err = f.svc.Approve(ctx, "no-such-request", "dep1")
	assert.True(t, generic.IsNotFound(err))

	stored, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req, stored)

	audit, err := f.svc.Audit(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, audit, 1)
}

func TestService_Decide_RejectionEndsRequest(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "emp", leave.TypeAnnual, day(2024, 3, 11), 8, "dep1")
	f.approve(t, req.ID, "dep1")

	req, err := f.svc.Reject(context.Background(), req.ID, "sup1")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusRejected, req.Status)
	assert.Empty(t, req.CurrentApprovers)

	_, err = f.svc.Approve(context.Background(), req.ID, "sup2")
	assert.ErrorIs(t, err, generic.ErrRequestTerminal)

	_, err = f.store.GetLedger(context.Background(), "emp")
	assert.True(t, generic.IsNotFound(err), "rejected annual leave never touches the ledger")
}

// departedDirectory hides one user, as if they had left the organization.
type departedDirectory struct {
	leave.Directory
	gone string
}

func (d departedDirectory) GetUser(ctx context.Context, id string) (leave.User, error) {
	if id == d.gone {
		return leave.User{}, &generic.NotFoundError{Kind: "user", ID: id}
	}
	return d.Directory.GetUser(ctx, id)
}

func TestService_Decide_RejectsAfterRequesterLeft(t *testing.T) {
	// GIVEN: An annual request whose requester has since left the directory
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, "emp", leave.TypeAnnual, day(2024, 3, 11), 8, "dep1")
	svc := leave.NewService(f.store, departedDirectory{Directory: f.store, gone: "emp"},
		leave.NewLedgerUpdater(entitlement.StatutoryPolicy()),
		leave.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		leave.WithClock(func() time.Time { return *f.clock }),
	)

	// WHEN: A deputy rejects it
	got, err := svc.Reject(ctx, req.ID, "dep1")

	// THEN: The rejection goes through without a requester lookup
	require.NoError(t, err)
	assert.Equal(t, approval.StatusRejected, got.Status)
	_, err = f.store.GetLedger(ctx, "emp")
	assert.True(t, generic.IsNotFound(err))
}

func TestService_Policy(t *testing.T) {
	policy := entitlement.StatutoryPolicy()
	policy.MaxDays = decimal.NewFromInt(21)
	svc := leave.NewService(memory.New(), memory.New(), leave.NewLedgerUpdater(policy))

	assert.True(t, svc.Policy().MaxDays.Equal(decimal.NewFromInt(21)))
	assert.Len(t, svc.Policy().Tiers, len(policy.Tiers))
}

func TestService_Decide_RefusesCorruptStoredRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, "emp", leave.TypeAnnual, day(2024, 3, 11), 8, "dep1")

	corrupt := req.Clone()
	corrupt.Status = approval.StatusApproved
	require.NoError(t, f.store.WriteRequest(ctx, corrupt))

	_, err := f.svc.Approve(ctx, req.ID, "dep1")
	assert.ErrorIs(t, err, generic.ErrInconsistentState)
	assert.True(t, generic.IsSystemFault(err))

	_, err = f.svc.Get(ctx, req.ID)
	assert.ErrorIs(t, err, generic.ErrInconsistentState)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestService_Ledger_AnnualApprovalDebits(t *testing.T) {
	// GIVEN: emp hired 2020-01-01, so the current period starts 2024-01-01
	// WHEN: A 16 hour Annual request and an 8 hour Personal request are approved
	// THEN: used = 2.0 days, only the Annual request counts

	f := newFixture(t)
	ctx := context.Background()

	personal := f.create(t, "emp", leave.TypePersonal, day(2024, 2, 5), 8, "dep1")
	f.approve(t, personal.ID, "dep1")
	f.approve(t, personal.ID, "sup1")

	_, err := f.store.GetLedger(ctx, "emp")
	require.True(t, generic.IsNotFound(err), "personal leave does not recompute the ledger")

	annual := f.create(t, "emp", leave.TypeAnnual, day(2024, 2, 12), 16, "dep1")
	f.approve(t, annual.ID, "dep1")
	f.approve(t, annual.ID, "sup2")

	l, err := f.store.GetLedger(ctx, "emp")
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 1), l.Period.Start)
	assert.Equal(t, day(2025, 1, 1), l.Period.End)
	assert.True(t, l.Used.Equal(generic.NewAmount(2, generic.UnitDays)), "used %s", l.Used)
	assert.True(t, l.Total.Equal(generic.NewAmount(14, generic.UnitDays)), "total %s", l.Total)
	assert.True(t, l.Remaining.Equal(generic.NewAmount(12, generic.UnitDays)), "remaining %s", l.Remaining)
	assert.Equal(t, "4 years 2 months", l.TenureText)

	audit, err := f.svc.Audit(ctx, annual.ID)
	require.NoError(t, err)
	require.Len(t, audit, 4)
	assert.Equal(t, leave.AuditLedgerRecomputed, audit[3].Action)
}

func TestService_Ledger_IgnoresOtherPeriods(t *testing.T) {
	f := newFixture(t)

	lastYear := f.create(t, "emp", leave.TypeAnnual, day(2023, 12, 27), 24, "dep1")
	f.approve(t, lastYear.ID, "dep1")
	f.approve(t, lastYear.ID, "sup1")

	snap, err := f.svc.Entitlement(context.Background(), "emp", day(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, snap.Used.IsZero(), "used %s", snap.Used)

	snap, err = f.svc.Entitlement(context.Background(), "emp", day(2023, 12, 31))
	require.NoError(t, err)
	assert.True(t, snap.Used.Equal(generic.NewAmount(3, generic.UnitDays)))
}

func TestLedgerUpdater_RecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, "emp", leave.TypeAnnual, day(2024, 2, 12), 12, "dep1")
	f.approve(t, req.ID, "dep1")
	f.approve(t, req.ID, "sup1")

	emp, err := f.store.GetUser(ctx, "emp")
	require.NoError(t, err)
	updater := leave.NewLedgerUpdater(entitlement.StatutoryPolicy())

	first, err := updater.Recompute(ctx, f.store, emp, *f.clock)
	require.NoError(t, err)
	second, err := updater.Recompute(ctx, f.store, emp, *f.clock)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "1.5", first.Used.Value.String())
}

func TestLedger_UsedRoundsToTwoDecimals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 0.1 hours = 0.0125 days
	req, err := f.svc.Create(ctx, leave.CreateInput{
		RequesterID: "emp", Type: leave.TypeAnnual, StartAt: day(2024, 2, 12), EndAt: day(2024, 2, 12),
		TotalHours: decimal.RequireFromString("0.1"), Reason: "appointment", Deputies: []string{"dep1"},
	})
	require.NoError(t, err)
	f.approve(t, req.ID, "dep1")
	f.approve(t, req.ID, "sup1")

	l, err := f.store.GetLedger(ctx, "emp")
	require.NoError(t, err)
	assert.Equal(t, "0.01", l.Used.Value.String())
	assert.Equal(t, "13.99", l.Remaining.Value.String())
}

func TestService_Ledger_ConcurrentApprovals(t *testing.T) {
	// GIVEN: Five pending Annual requests of one requester
	// WHEN: All are approved concurrently
	// THEN: The ledger reflects every one of them

	f := newFixture(t)
	var ids []string
	for i := 0; i < 5; i++ {
		req := f.create(t, "lone", leave.TypeAnnual, day(2024, 1, 8+i), 8, "buddy")
		ids = append(ids, req.ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.Approve(context.Background(), id, "buddy")
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	l, err := f.store.GetLedger(context.Background(), "lone")
	require.NoError(t, err)
	assert.True(t, l.Used.Equal(generic.NewAmount(5, generic.UnitDays)), "used %s", l.Used)
}

func TestService_RefreshLedgers_RollsOverAtAnniversary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, "emp", leave.TypeAnnual, day(2024, 2, 12), 16, "dep1")
	f.approve(t, req.ID, "dep1")
	f.approve(t, req.ID, "sup1")

	n, err := f.svc.RefreshLedgers(ctx, day(2024, 12, 31))
	require.NoError(t, err)
	assert.Zero(t, n, "still inside the period")

	n, err = f.svc.RefreshLedgers(ctx, day(2025, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	l, err := f.store.GetLedger(ctx, "emp")
	require.NoError(t, err)
	assert.Equal(t, day(2025, 1, 1), l.Period.Start)
	assert.True(t, l.Used.IsZero())
	assert.True(t, l.Total.Equal(generic.NewAmount(15, generic.UnitDays)))
}

// =============================================================================
// DELETE
// =============================================================================

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("only the requester", func(t *testing.T) {
		req := f.create(t, "emp", leave.TypeSick, day(2024, 3, 4), 8, "dep1")
		err := f.svc.Delete(ctx, req.ID, "dep1")
		assert.ErrorIs(t, err, generic.ErrNotRequester)
	})

	t.Run("pending without approvals", func(t *testing.T) {
		req := f.create(t, "emp", leave.TypeSick, day(2024, 3, 4), 8, "dep1")
		require.NoError(t, f.svc.Delete(ctx, req.ID, "emp"))

		_, err := f.svc.Get(ctx, req.ID)
		assert.True(t, generic.IsNotFound(err))

		audit, err := f.svc.Audit(ctx, req.ID)
		require.NoError(t, err)
		require.Len(t, audit, 2)
		assert.Equal(t, leave.AuditRequestDeleted, audit[1].Action)
	})

	t.Run("not after a deputy approved", func(t *testing.T) {
		req := f.create(t, "emp", leave.TypeSick, day(2024, 3, 4), 8, "dep1", "dep2")
		f.approve(t, req.ID, "dep1")

		err := f.svc.Delete(ctx, req.ID, "emp")
		assert.ErrorIs(t, err, generic.ErrNotDeletable)
	})

	t.Run("not after rejection", func(t *testing.T) {
		req := f.create(t, "emp", leave.TypeSick, day(2024, 3, 4), 8, "dep1")
		_, err := f.svc.Reject(ctx, req.ID, "dep1")
		require.NoError(t, err)

		assert.ErrorIs(t, f.svc.Delete(ctx, req.ID, "emp"), generic.ErrNotDeletable)
	})
}

func TestService_ListByRequester(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "emp", leave.TypeSick, day(2024, 3, 4), 8, "dep1")
	b := f.create(t, "emp", leave.TypeAnnual, day(2024, 3, 5), 8, "dep2")
	f.create(t, "lone", leave.TypeAnnual, day(2024, 3, 5), 8, "buddy")

	got, err := f.svc.ListByRequester(context.Background(), "emp")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, []string{got[0].ID, got[1].ID})

	_, err = f.svc.ListByRequester(context.Background(), "ghost")
	assert.True(t, generic.IsNotFound(err))
}
