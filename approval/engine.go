package approval

import (
	"fmt"
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// INITIALIZE
// =============================================================================

// InitializeFlow builds the pending flow for a new request. Each tier keeps
// the given order with duplicates dropped. At least one deputy is required.
func InitializeFlow(deputies, supervisors, managers, directors []string) (Flow, error) {
	var verr generic.ValidationErrors
	if len(deputies) == 0 {
		verr = verr.Add(TierDeputy.Field(), "at least one deputy is required")
	}

	var f Flow
	for i, ids := range [][]string{deputies, supervisors, managers, directors} {
		tier := Order[i]
		entries := make([]Entry, 0, len(ids))
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if id == "" {
				verr = verr.Add(tier.Field(), "approver id must not be empty")
				continue
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			entries = append(entries, Entry{Tier: tier, ApproverID: id, Status: StatusPending})
		}
		f.setEntries(tier, entries)
	}
	if err := verr.Err(); err != nil {
		return Flow{}, err
	}
	return f, nil
}

// =============================================================================
// EVALUATE
// =============================================================================

// Outcome is what a flow derives to. CurrentApprovers is empty iff Status is
// terminal.
type Outcome struct {
	Status           Status
	CurrentApprovers []string
}

// Evaluate derives status and current approvers from the flow. It is the
// only place these are computed.
//
//   - any rejected entry: rejected, nobody may act
//   - deputies not all approved: pending, pending deputies may act
//   - otherwise the first non-empty higher tier with no approval: pending,
//     its pending members may act
//   - otherwise: approved
func Evaluate(f Flow) (Outcome, error) {
	if err := checkStructure(f); err != nil {
		return Outcome{}, err
	}

	for _, tier := range Order {
		for _, e := range f.Entries(tier) {
			if e.Status == StatusRejected {
				return Outcome{Status: StatusRejected}, nil
			}
		}
	}

	if pending := pendingIDs(f.Deputies); len(pending) > 0 {
		return Outcome{Status: StatusPending, CurrentApprovers: pending}, nil
	}

	for _, tier := range Order[1:] {
		entries := f.Entries(tier)
		if len(entries) == 0 || anyApproved(entries) {
			continue
		}
		return Outcome{Status: StatusPending, CurrentApprovers: pendingIDs(entries)}, nil
	}

	return Outcome{Status: StatusApproved}, nil
}

func checkStructure(f Flow) error {
	if len(f.Deputies) == 0 {
		return &generic.InconsistentStateError{Detail: "flow has no deputies"}
	}
	for _, tier := range Order {
		seen := make(map[string]bool)
		for i, e := range f.Entries(tier) {
			where := fmt.Sprintf("%s[%d]", tier, i)
			switch {
			case e.Tier != tier:
				return &generic.InconsistentStateError{Detail: fmt.Sprintf("%s is tagged %q", where, e.Tier)}
			case e.ApproverID == "":
				return &generic.InconsistentStateError{Detail: where + " has no approver"}
			case !e.Status.valid():
				return &generic.InconsistentStateError{Detail: fmt.Sprintf("%s has unknown status %q", where, e.Status)}
			case seen[e.ApproverID]:
				return &generic.InconsistentStateError{Detail: fmt.Sprintf("%s duplicates approver %s", where, e.ApproverID)}
			case e.Status == StatusPending && e.DecidedAt != nil:
				return &generic.InconsistentStateError{Detail: where + " is pending but has a decision time"}
			case e.Status != StatusPending && e.DecidedAt == nil:
				return &generic.InconsistentStateError{Detail: where + " is decided but has no decision time"}
			}
			seen[e.ApproverID] = true
		}
	}
	return nil
}

func pendingIDs(entries []Entry) []string {
	var ids []string
	for _, e := range entries {
		if e.Status == StatusPending {
			ids = append(ids, e.ApproverID)
		}
	}
	return ids
}

func anyApproved(entries []Entry) bool {
	for _, e := range entries {
		if e.Status == StatusApproved {
			return true
		}
	}
	return false
}

// =============================================================================
// APPLY DECISION
// =============================================================================

// Result is the flow after a decision plus what it derives to.
type Result struct {
	Flow             Flow
	Status           Status
	CurrentApprovers []string
	// Changed lists every entry the decision was recorded on.
	Changed []EntryRef
}

// ApplyDecision records the actor's decision on every pending entry they
// hold, in every tier. The input flow is never modified.
//
// Refused with an *generic.AuthorizationError and no mutation when the flow
// is already terminal, when the actor holds entries but none are pending, or
// when the actor is not a current approver.
func ApplyDecision(f Flow, actor Actor, decision Decision, at time.Time) (Result, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return Result{}, generic.ValidationErrors{}.Add("decision", fmt.Sprintf("unknown decision %q", decision))
	}

	before, err := Evaluate(f)
	if err != nil {
		return Result{}, err
	}
	if before.Status.IsTerminal() {
		return Result{}, &generic.AuthorizationError{ActorID: actor.ID, Reason: generic.ErrRequestTerminal}
	}

	held := f.EntriesFor(actor.ID)
	if len(held) > 0 && len(pendingIDs(held)) == 0 {
		return Result{}, &generic.AuthorizationError{ActorID: actor.ID, Reason: generic.ErrAlreadyDecided}
	}
	if !contains(before.CurrentApprovers, actor.ID) {
		return Result{}, &generic.AuthorizationError{ActorID: actor.ID, Reason: generic.ErrNotCurrentApprover}
	}

	next := f.Clone()
	decidedAt := at
	var changed []EntryRef
	for _, tier := range Order {
		entries := next.Entries(tier)
		for i, e := range entries {
			if e.ApproverID != actor.ID || e.Status != StatusPending {
				continue
			}
			entries[i] = Entry{Tier: tier, ApproverID: e.ApproverID, Status: decision.status(), DecidedAt: &decidedAt}
			changed = append(changed, EntryRef{Tier: tier, Index: i})
		}
	}

	after, err := Evaluate(next)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Flow:             next,
		Status:           after.Status,
		CurrentApprovers: after.CurrentApprovers,
		Changed:          changed,
	}, nil
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
