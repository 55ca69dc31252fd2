/*
Package leave is the leave-request domain: the request aggregate, the
entitlement ledger, and the service that ties them to storage.

PURPOSE:
  Everything that needs I/O lives here. The approval state machine and the
  entitlement calculator stay pure; this package reads users from the
  directory, feeds the engine, writes the result, and keeps each
  requester's annual-leave ledger current.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveType: The fixed leave categories (only Annual is debited)
  - Rank:      A user's organizational level, mapped to an approval tier
  - User:      A directory entry {id, name, rank, departments, hire date}
  - Directory: External user lookup

FLOW:
  Create -> Directory lookups -> approval.InitializeFlow -> Store.WriteRequest
  Decide -> Directory lookups -> approval.ApplyDecision -> Store.WriteRequest
         -> (approved Annual) LedgerUpdater.Recompute

SEE ALSO:
  - request.go: Request aggregate and creation rules
  - ledger.go:  Entitlement ledger recomputation
  - service.go: Operations exposed to the API
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/leave-engine/approval"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

type LeaveType string

const (
	TypeAnnual             LeaveType = "annual"
	TypePersonal           LeaveType = "personal"
	TypeSick               LeaveType = "sick"
	TypeOfficial           LeaveType = "official"
	TypeBereavement        LeaveType = "bereavement"
	TypeMarriage           LeaveType = "marriage"
	TypePaternity          LeaveType = "paternity"
	TypeOccupationalInjury LeaveType = "occupational_injury"
	TypeMenstrual          LeaveType = "menstrual"
)

// LeaveTypes lists every type in display order.
var LeaveTypes = []LeaveType{
	TypeAnnual, TypePersonal, TypeSick, TypeOfficial, TypeBereavement,
	TypeMarriage, TypePaternity, TypeOccupationalInjury, TypeMenstrual,
}

var leaveTypeLabels = map[LeaveType]string{
	TypeAnnual:             "Annual leave",
	TypePersonal:           "Personal leave",
	TypeSick:               "Sick leave",
	TypeOfficial:           "Official leave",
	TypeBereavement:        "Bereavement leave",
	TypeMarriage:           "Marriage leave",
	TypePaternity:          "Paternity leave",
	TypeOccupationalInjury: "Occupational injury leave",
	TypeMenstrual:          "Menstrual leave",
}

func (t LeaveType) Valid() bool {
	_, ok := leaveTypeLabels[t]
	return ok
}

func (t LeaveType) Label() string { return leaveTypeLabels[t] }

// DebitsEntitlement reports whether approved requests of this type count
// against the annual allotment.
func (t LeaveType) DebitsEntitlement() bool { return t == TypeAnnual }

func ParseLeaveType(s string) (LeaveType, error) {
	t := LeaveType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown leave type %q", s)
	}
	return t, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

type Rank string

const (
	RankStaff      Rank = "staff"
	RankSupervisor Rank = "supervisor"
	RankManager    Rank = "manager"
	RankDirector   Rank = "director"
)

func ParseRank(s string) (Rank, error) {
	switch r := Rank(s); r {
	case RankStaff, RankSupervisor, RankManager, RankDirector:
		return r, nil
	}
	return "", fmt.Errorf("unknown rank %q", s)
}

// Tier is the approval tier a user of this rank is drafted into. Staff only
// ever approve as nominated deputies.
func (r Rank) Tier() approval.Tier {
	switch r {
	case RankSupervisor:
		return approval.TierSupervisor
	case RankManager:
		return approval.TierManager
	case RankDirector:
		return approval.TierDirector
	}
	return approval.TierDeputy
}

type User struct {
	ID          string
	DisplayName string
	Rank        Rank
	Departments []string
	HireDate    time.Time
}

// Directory resolves users. GetUser returns a *generic.NotFoundError for an
// unknown id.
type Directory interface {
	GetUser(ctx context.Context, id string) (User, error)
	ListDepartmentMembers(ctx context.Context, department string) ([]User, error)
}

// TierMembers are the organizational approvers drafted into a new request.
type TierMembers struct {
	Supervisors []string
	Managers    []string
	Directors   []string
}

// ResolveTierMembers collects supervisors, managers and directors from every
// department the requester belongs to, excluding the requester.
func ResolveTierMembers(ctx context.Context, dir Directory, requester User) (TierMembers, error) {
	var m TierMembers
	for _, dept := range requester.Departments {
		members, err := dir.ListDepartmentMembers(ctx, dept)
		if err != nil {
			return TierMembers{}, fmt.Errorf("list department %s: %w", dept, err)
		}
		for _, u := range members {
			if u.ID == requester.ID {
				continue
			}
			switch u.Rank {
			case RankSupervisor:
				m.Supervisors = append(m.Supervisors, u.ID)
			case RankManager:
				m.Managers = append(m.Managers, u.ID)
			case RankDirector:
				m.Directors = append(m.Directors, u.ID)
			}
		}
	}
	return m, nil
}
