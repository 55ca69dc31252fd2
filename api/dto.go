/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the leave domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Users:        UserDTO, CreateUserRequest
  Entitlement:  EntitlementDTO
  Requests:     LeaveRequestDTO, CreateLeaveRequest, DecisionRequest
  Audit:        AuditEntryDTO
  Scenarios:    ScenarioDTO, LoadScenarioRequest
  Errors:       ErrorResponse

VALIDATION:
  Validation is done by the leave package, not in DTOs. DTOs are pure data
  carriers; handlers only parse formats (dates, decimals).

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/approval"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Rank        string   `json:"rank"`
	Departments []string `json:"departments"`
	HireDate    string   `json:"hire_date"`
}

type CreateUserRequest struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Rank        string   `json:"rank"`
	Departments []string `json:"departments"`
	HireDate    string   `json:"hire_date"`
}

func toUserDTO(u leave.User) UserDTO {
	depts := u.Departments
	if depts == nil {
		depts = []string{}
	}
	return UserDTO{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Rank:        string(u.Rank),
		Departments: depts,
		HireDate:    u.HireDate.Format(generic.DateLayout),
	}
}

// =============================================================================
// ENTITLEMENT
// =============================================================================

// EntitlementDTO is a requester's annual-leave position in days.
type EntitlementDTO struct {
	UserID      string          `json:"user_id"`
	AsOf        string          `json:"as_of"`
	PeriodStart string          `json:"period_start"`
	PeriodEnd   string          `json:"period_end"`
	Total       decimal.Decimal `json:"total_days"`
	Used        decimal.Decimal `json:"used_days"`
	Remaining   decimal.Decimal `json:"remaining_days"`
	Tenure      string          `json:"tenure"`
}

func toEntitlementDTO(s leave.Snapshot) EntitlementDTO {
	return EntitlementDTO{
		UserID:      s.UserID,
		AsOf:        s.AsOf.Format(generic.DateLayout),
		PeriodStart: s.Period.Start.Format(generic.DateLayout),
		PeriodEnd:   s.Period.End.Format(generic.DateLayout),
		Total:       s.Total.Value,
		Used:        s.Used.Value,
		Remaining:   s.Remaining.Value,
		Tenure:      s.TenureText,
	}
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// CreateLeaveRequest is the body of POST /api/requests. StartAt and EndAt
// are RFC 3339 timestamps.
type CreateLeaveRequest struct {
	RequesterID string          `json:"requester_id"`
	Type        string          `json:"type"`
	StartAt     string          `json:"start_at"`
	EndAt       string          `json:"end_at"`
	TotalHours  decimal.Decimal `json:"total_hours"`
	Reason      string          `json:"reason"`
	Deputies    []string        `json:"deputies"`
}

// DecisionRequest is the body of approve and reject.
type DecisionRequest struct {
	ActorID string `json:"actor_id"`
}

type LeaveRequestDTO struct {
	ID               string          `json:"id"`
	RequesterID      string          `json:"requester_id"`
	RequesterName    string          `json:"requester_name"`
	Type             string          `json:"type"`
	TypeLabel        string          `json:"type_label"`
	StartAt          string          `json:"start_at"`
	EndAt            string          `json:"end_at"`
	TotalHours       decimal.Decimal `json:"total_hours"`
	Reason           string          `json:"reason"`
	Deputies         []string        `json:"deputies"`
	Flow             approval.Flow   `json:"flow"`
	Status           string          `json:"status"`
	CurrentApprovers []string        `json:"current_approvers"`
	Deletable        bool            `json:"deletable"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

func toLeaveRequestDTO(r leave.Request) LeaveRequestDTO {
	approvers := r.CurrentApprovers
	if approvers == nil {
		approvers = []string{}
	}
	return LeaveRequestDTO{
		ID:               r.ID,
		RequesterID:      r.RequesterID,
		RequesterName:    r.RequesterName,
		Type:             string(r.Type),
		TypeLabel:        r.Type.Label(),
		StartAt:          r.StartAt.Format(time.RFC3339),
		EndAt:            r.EndAt.Format(time.RFC3339),
		TotalHours:       r.TotalHours,
		Reason:           r.Reason,
		Deputies:         r.Deputies,
		Flow:             r.Flow,
		Status:           string(r.Status),
		CurrentApprovers: approvers,
		Deletable:        r.Deletable(),
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        r.UpdatedAt.Format(time.RFC3339),
	}
}

func toLeaveRequestDTOs(reqs []leave.Request) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toLeaveRequestDTO(r)
	}
	return dtos
}

// LeaveTypeDTO describes one selectable leave type.
type LeaveTypeDTO struct {
	ID                string `json:"id"`
	Label             string `json:"label"`
	DebitsEntitlement bool   `json:"debits_entitlement"`
}

// =============================================================================
// AUDIT
// =============================================================================

type AuditEntryDTO struct {
	ID        string         `json:"id"`
	RequestID string         `json:"request_id"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	At        string         `json:"at"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func toAuditEntryDTOs(entries []leave.AuditEntry) []AuditEntryDTO {
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:        e.ID,
			RequestID: e.RequestID,
			ActorID:   e.ActorID,
			Action:    string(e.Action),
			At:        e.At.Format(time.RFC3339),
			Payload:   e.Payload,
		}
	}
	return dtos
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
