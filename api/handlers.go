/*
handlers.go - HTTP API handlers for the leave approval engine

PURPOSE:
  Exposes leave.Service via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the leave package. The acting user is
  always an explicit parameter (body actor_id or query actor_id).

ENDPOINTS:
  Reference:
    GET    /api/leave-types                 Selectable leave types
    GET    /api/entitlement-policy          Active tier table

  Users:
    GET    /api/users                       List directory users
    POST   /api/users                       Create or replace a user
    GET    /api/users/{id}                  Get user
    GET    /api/users/{id}/entitlement      Annual entitlement (?as_of=YYYY-MM-DD)
    GET    /api/users/{id}/requests         Requests filed by the user
    GET    /api/users/{id}/queue            Requests awaiting the user's decision

  Requests:
    POST   /api/requests                    File a leave request
    GET    /api/requests/{id}               Get request with its flow
    DELETE /api/requests/{id}?actor_id=     Withdraw an untouched request
    POST   /api/requests/{id}/approve       Approve as actor_id
    POST   /api/requests/{id}/reject        Reject as actor_id
    GET    /api/requests/{id}/audit         Audit trail

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    POST   /api/scenarios/load              Load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (field messages in "fields")
  - 403: Actor may not perform the action
  - 404: Unknown user or request
  - 409: Request already approved or rejected
  - 500: Inconsistent stored state and internal errors (logged)

SECURITY NOTE:
  No authentication. Callers are trusted to state the acting user.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is the record store and directory the handlers run against.
// store/sqlite.Store and store/memory.Store both satisfy it.
type Backend interface {
	leave.TxStore
	leave.Directory
	SaveUser(ctx context.Context, u leave.User) error
	ListUsers(ctx context.Context) ([]leave.User, error)
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         Backend
	Service       *leave.Service
	PolicyFactory *factory.PolicyFactory
	Logger        *slog.Logger

	now func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over store and svc. svc must use store
// as both its record store and its directory.
func NewHandler(store Backend, svc *leave.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:         store,
		Service:       svc,
		PolicyFactory: factory.NewPolicyFactory(),
		Logger:        logger,
		now:           time.Now,
	}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	dtos := make([]LeaveTypeDTO, len(leave.LeaveTypes))
	for i, t := range leave.LeaveTypes {
		dtos[i] = LeaveTypeDTO{ID: string(t), Label: t.Label(), DebitsEntitlement: t.DebitsEntitlement()}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEntitlementPolicy returns the tier table in the policy file format.
func (h *Handler) GetEntitlementPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.PolicyFactory.ToJSON("active", h.Service.Policy()))
}

// =============================================================================
// USER HANDLERS
// =============================================================================

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list users", err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Store.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// CreateUser adds or replaces a directory user.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var verr generic.ValidationErrors
	if strings.TrimSpace(req.ID) == "" {
		verr = verr.Add("id", "is required")
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		verr = verr.Add("display_name", "is required")
	}
	rank, err := leave.ParseRank(req.Rank)
	if err != nil {
		verr = verr.Add("rank", err.Error())
	}
	hireDate, err := time.Parse(generic.DateLayout, req.HireDate)
	if err != nil {
		verr = verr.Add("hire_date", "must be YYYY-MM-DD")
	}
	if err := verr.Err(); err != nil {
		h.writeServiceError(w, r, "Invalid user", err)
		return
	}

	user := leave.User{
		ID:          strings.TrimSpace(req.ID),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Rank:        rank,
		Departments: req.Departments,
		HireDate:    hireDate,
	}
	if err := h.Store.SaveUser(r.Context(), user); err != nil {
		h.writeServiceError(w, r, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// GetEntitlement returns the annual-leave position. as_of defaults to today.
func (h *Handler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	asOf := h.now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(generic.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		asOf = parsed
	}

	snap, err := h.Service.Entitlement(r.Context(), chi.URLParam(r, "id"), asOf)
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute entitlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntitlementDTO(snap))
}

func (h *Handler) ListUserRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Service.ListByRequester(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// GetQueue lists the pending requests the user can decide right now.
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Service.PendingFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to list queue", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := leave.CreateInput{
		RequesterID: req.RequesterID,
		Type:        leave.LeaveType(req.Type),
		TotalHours:  req.TotalHours,
		Reason:      req.Reason,
		Deputies:    req.Deputies,
	}
	var verr generic.ValidationErrors
	var err error
	if in.StartAt, err = parseTimestamp(req.StartAt); err != nil {
		verr = verr.Add("start_at", "must be an RFC 3339 timestamp")
	}
	if in.EndAt, err = parseTimestamp(req.EndAt); err != nil {
		verr = verr.Add("end_at", "must be an RFC 3339 timestamp")
	}
	if err := verr.Err(); err != nil {
		h.writeServiceError(w, r, "Invalid leave request", err)
		return
	}

	created, err := h.Service.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create leave request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(created))
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// DeleteRequest withdraws a request. Only the requester may do so, and only
// while nobody has approved anything.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	actorID := r.URL.Query().Get("actor_id")
	if actorID == "" {
		h.writeServiceError(w, r, "Invalid delete", generic.ValidationErrors{}.Add("actor_id", "is required"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.Service.Delete(r.Context(), id, actorID); err != nil {
		h.writeServiceError(w, r, "Failed to delete leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Service.Approve)
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Service.Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, string) (leave.Request, error)) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActorID == "" {
		h.writeServiceError(w, r, "Invalid decision", generic.ValidationErrors{}.Add("actor_id", "is required"))
		return
	}

	updated, err := fn(r.Context(), chi.URLParam(r, "id"), req.ActorID)
	if err != nil {
		h.writeServiceError(w, r, "Failed to record decision", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(updated))
}

func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.Audit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get audit trail", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditEntryDTOs(entries))
}

// =============================================================================
// HELPERS
// =============================================================================

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrRequestTerminal):
		return http.StatusConflict
	case errors.Is(err, generic.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with its mapped status. Server-side failures
// are logged with the request id; client errors are not.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: message, Details: err.Error()}

	var verr generic.ValidationErrors
	if errors.As(err, &verr) {
		resp.Fields = verr.ToMap()
	}
	if status == http.StatusInternalServerError {
		h.Logger.ErrorContext(r.Context(), message,
			slog.String("path", r.URL.Path),
			slog.Bool("inconsistent_state", errors.Is(err, generic.ErrInconsistentState)),
			slog.String("error", err.Error()),
		)
		if !errors.Is(err, generic.ErrInconsistentState) {
			resp.Details = ""
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
