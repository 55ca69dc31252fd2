package leave

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/approval"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// REQUEST AGGREGATE
// =============================================================================

// Request is one leave request with its embedded approval flow. Status and
// CurrentApprovers are stored alongside the flow for querying, but are only
// ever produced by approval.Evaluate / approval.ApplyDecision.
type Request struct {
	ID            string
	RequesterID   string
	RequesterName string
	Type          LeaveType
	StartAt       time.Time
	EndAt         time.Time
	TotalHours    decimal.Decimal
	Reason        string
	Deputies      []string

	Flow             approval.Flow
	Status           approval.Status
	CurrentApprovers []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput is what a requester submits.
type CreateInput struct {
	RequesterID string
	Type        LeaveType
	StartAt     time.Time
	EndAt       time.Time
	TotalHours  decimal.Decimal
	Reason      string
	Deputies    []string
}

var hourStep = decimal.New(1, -1)

// NewRequest validates input and builds a pending request. Every failed check
// is reported at once as generic.ValidationErrors; nothing is built on error.
func NewRequest(in CreateInput, requester User, members TierMembers, id string, now time.Time) (Request, error) {
	var verr generic.ValidationErrors

	if !in.Type.Valid() {
		verr = verr.Add("type", "unknown leave type")
	}
	switch {
	case in.StartAt.IsZero():
		verr = verr.Add("start_at", "is required")
	case in.EndAt.IsZero():
		verr = verr.Add("end_at", "is required")
	case in.StartAt.After(in.EndAt):
		verr = verr.Add("end_at", "must not be before start_at")
	}
	switch {
	case !in.TotalHours.IsPositive():
		verr = verr.Add("total_hours", "must be greater than zero")
	case !in.TotalHours.Mod(hourStep).IsZero():
		verr = verr.Add("total_hours", "must be in steps of 0.1 hours")
	}
	if strings.TrimSpace(in.Reason) == "" {
		verr = verr.Add("reason", "is required")
	}
	if slices.Contains(in.Deputies, requester.ID) {
		verr = verr.Add("deputies", "requester cannot be their own deputy")
	}

	flow, err := approval.InitializeFlow(
		in.Deputies,
		without(members.Supervisors, requester.ID),
		without(members.Managers, requester.ID),
		without(members.Directors, requester.ID),
	)
	var flowErr generic.ValidationErrors
	if errors.As(err, &flowErr) {
		verr = append(verr, flowErr...)
	} else if err != nil {
		return Request{}, err
	}
	if err := verr.Err(); err != nil {
		return Request{}, err
	}

	outcome, err := approval.Evaluate(flow)
	if err != nil {
		return Request{}, err
	}
	return Request{
		ID:               id,
		RequesterID:      requester.ID,
		RequesterName:    requester.DisplayName,
		Type:             in.Type,
		StartAt:          in.StartAt,
		EndAt:            in.EndAt,
		TotalHours:       in.TotalHours,
		Reason:           strings.TrimSpace(in.Reason),
		Deputies:         approverIDs(flow.Deputies),
		Flow:             flow,
		Status:           outcome.Status,
		CurrentApprovers: outcome.CurrentApprovers,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Apply records an engine transition on the request.
func (r *Request) Apply(res approval.Result, now time.Time) {
	r.Flow = res.Flow
	r.Status = res.Status
	r.CurrentApprovers = res.CurrentApprovers
	r.UpdatedAt = now
}

// Deletable reports whether the requester may still withdraw the request:
// pending, and nobody has approved anything yet.
func (r Request) Deletable() bool {
	return r.Status == approval.StatusPending && !r.Flow.HasApproval()
}

// Days is TotalHours in working days, unrounded.
func (r Request) Days() generic.Amount {
	return generic.HoursToDays(generic.NewAmountFromDecimal(r.TotalHours, generic.UnitHours))
}

// ConsistencyCheck re-derives status and current approvers from the flow and
// compares them with what was stored. A mismatch is never repaired.
func (r Request) ConsistencyCheck() error {
	out, err := approval.Evaluate(r.Flow)
	if err != nil {
		var ierr *generic.InconsistentStateError
		if errors.As(err, &ierr) && ierr.RequestID == "" {
			ierr.RequestID = r.ID
		}
		return err
	}
	if out.Status != r.Status {
		return &generic.InconsistentStateError{RequestID: r.ID, Detail: "stored status " + string(r.Status) + " but flow derives " + string(out.Status)}
	}
	if !slices.Equal(out.CurrentApprovers, r.CurrentApprovers) {
		return &generic.InconsistentStateError{RequestID: r.ID, Detail: "stored current approvers do not match flow"}
	}
	return nil
}

// Clone deep-copies the request for stores that hand out values.
func (r Request) Clone() Request {
	r.Deputies = slices.Clone(r.Deputies)
	r.CurrentApprovers = slices.Clone(r.CurrentApprovers)
	r.Flow = r.Flow.Clone()
	return r
}

func approverIDs(entries []approval.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ApproverID
	}
	return ids
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
