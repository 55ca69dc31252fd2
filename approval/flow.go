/*
Package approval is the leave approval state machine.

PURPOSE:
  Routes a request through an ordered chain of approval tiers and derives,
  from the embedded flow alone, the overall status and who may act next.
  Pure logic: no I/O, no clock, no directory lookups. Callers resolve the
  acting user and pass it in explicitly.

TIERS (in order):
  deputy -> supervisor -> manager -> director

  - Deputies are nominated per request and must ALL approve.
  - Each higher tier is satisfied by ANY ONE approval among its members.
  - A tier with no members is satisfied.
  - A single rejection anywhere ends the request as rejected.

KEY CONCEPTS IN THIS FILE (flow.go):
  - Entry: One approver's slot in one tier {tier, approver, status, decidedAt}
  - Flow:  One ordered slice of entries per tier
  - Actor: The acting user, resolved by the caller

SEE ALSO:
  - engine.go: InitializeFlow, Evaluate, ApplyDecision
*/
package approval

import (
	"time"
)

// =============================================================================
// TIERS
// =============================================================================

type Tier string

const (
	TierDeputy     Tier = "deputy"
	TierSupervisor Tier = "supervisor"
	TierManager    Tier = "manager"
	TierDirector   Tier = "director"
)

// Order is the evaluation order of tiers.
var Order = []Tier{TierDeputy, TierSupervisor, TierManager, TierDirector}

// Field is the flow's JSON field holding the tier, also used as the
// validation key for its approver ids.
func (t Tier) Field() string {
	switch t {
	case TierDeputy:
		return "deputies"
	case TierSupervisor:
		return "supervisors"
	case TierManager:
		return "managers"
	case TierDirector:
		return "directors"
	}
	return string(t)
}

// =============================================================================
// STATUS & DECISION
// =============================================================================

// Status is used both for a single entry and for the request as a whole.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsTerminal() bool { return s == StatusApproved || s == StatusRejected }

func (s Status) valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) status() Status {
	if d == DecisionReject {
		return StatusRejected
	}
	return StatusApproved
}

// =============================================================================
// FLOW
// =============================================================================

// Entry is one approver's slot in one tier. Entries move pending -> approved
// or pending -> rejected and never back.
type Entry struct {
	Tier       Tier       `json:"tier"`
	ApproverID string     `json:"approver_id"`
	Status     Status     `json:"status"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
}

// Flow is the approval chain embedded in a leave request.
type Flow struct {
	Deputies    []Entry `json:"deputies"`
	Supervisors []Entry `json:"supervisors"`
	Managers    []Entry `json:"managers"`
	Directors   []Entry `json:"directors"`
}

// Entries returns the slice for tier. The slice is shared with f.
func (f Flow) Entries(tier Tier) []Entry {
	switch tier {
	case TierDeputy:
		return f.Deputies
	case TierSupervisor:
		return f.Supervisors
	case TierManager:
		return f.Managers
	case TierDirector:
		return f.Directors
	}
	return nil
}

func (f *Flow) setEntries(tier Tier, entries []Entry) {
	switch tier {
	case TierDeputy:
		f.Deputies = entries
	case TierSupervisor:
		f.Supervisors = entries
	case TierManager:
		f.Managers = entries
	case TierDirector:
		f.Directors = entries
	}
}

// Clone deep-copies the flow so a transition never aliases its input.
func (f Flow) Clone() Flow {
	var out Flow
	for _, tier := range Order {
		src := f.Entries(tier)
		dst := make([]Entry, len(src))
		for i, e := range src {
			if e.DecidedAt != nil {
				at := *e.DecidedAt
				e.DecidedAt = &at
			}
			dst[i] = e
		}
		out.setEntries(tier, dst)
	}
	return out
}

// EntriesFor returns every entry held by approverID, in tier order.
func (f Flow) EntriesFor(approverID string) []Entry {
	var out []Entry
	for _, tier := range Order {
		for _, e := range f.Entries(tier) {
			if e.ApproverID == approverID {
				out = append(out, e)
			}
		}
	}
	return out
}

// HasApproval reports whether any entry in any tier is approved.
func (f Flow) HasApproval() bool {
	for _, tier := range Order {
		for _, e := range f.Entries(tier) {
			if e.Status == StatusApproved {
				return true
			}
		}
	}
	return false
}

// Actor is the user deciding. Tier is the organizational tier the directory
// resolved for them; entries are matched by ID in every tier regardless.
type Actor struct {
	ID   string
	Tier Tier
}

// EntryRef locates one entry changed by a transition.
type EntryRef struct {
	Tier  Tier `json:"tier"`
	Index int  `json:"index"`
}
