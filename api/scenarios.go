/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a small
	organization and leave requests in various approval states. Every
	request goes through leave.Service, so flows, ledgers and the audit
	trail are exactly what real traffic would produce.

AVAILABLE SCENARIOS:

	org-chart:            Engineering department, no requests yet
	approval-in-progress: Requests waiting at different tiers, one rejected
	entitlement-used:     Fully approved annual leave debiting the ledger

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Create directory users (hire dates relative to today)
 3. File requests as their requesters
 4. Record approvals and rejections as the approvers

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "approval-in-progress"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add it to 'scenarioLoaders'

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Request handlers the scenarios mirror
  - leave/service.go: Operations used to seed
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "org-chart",
		Name:        "Org Chart",
		Description: "Engineering department with three staff, two supervisors, a manager and a director",
	},
	{
		ID:          "approval-in-progress",
		Name:        "Approval In Progress",
		Description: "Annual leave past both deputies waiting on supervisors; sick leave rejected by its deputy",
	},
	{
		ID:          "entitlement-used",
		Name:        "Entitlement Used",
		Description: "Three days of annual leave approved through every tier and debited from the ledger",
	},
}

func (h *Handler) scenarioLoaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"org-chart":            h.loadOrgChartScenario,
		"approval-in-progress": h.loadApprovalInProgressScenario,
		"entitlement-used":     h.loadEntitlementUsedScenario,
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	load, ok := h.scenarioLoaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Store.Reset(ctx); err != nil {
		h.writeServiceError(w, r, "Failed to reset store", err)
		return
	}
	if err := load(ctx); err != nil {
		h.writeServiceError(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadOrgChartScenario(ctx context.Context) error {
	today := h.now().UTC().Truncate(24 * time.Hour)
	users := []leave.User{
		{ID: "ana", DisplayName: "Ana Putri", Rank: leave.RankStaff, Departments: []string{"engineering"},
			HireDate: generic.AddMonths(today, -(5*12 + 5))},
		{ID: "budi", DisplayName: "Budi Santoso", Rank: leave.RankStaff, Departments: []string{"engineering"},
			HireDate: generic.AddYears(today, -2)},
		{ID: "citra", DisplayName: "Citra Lestari", Rank: leave.RankStaff, Departments: []string{"engineering"},
			HireDate: generic.AddMonths(today, -8)},
		{ID: "dewi", DisplayName: "Dewi Anggraini", Rank: leave.RankSupervisor, Departments: []string{"engineering"},
			HireDate: generic.AddYears(today, -7)},
		{ID: "eko", DisplayName: "Eko Prasetyo", Rank: leave.RankSupervisor, Departments: []string{"engineering"},
			HireDate: generic.AddYears(today, -4)},
		{ID: "fajar", DisplayName: "Fajar Nugroho", Rank: leave.RankManager, Departments: []string{"engineering"},
			HireDate: generic.AddYears(today, -11)},
		{ID: "gita", DisplayName: "Gita Maharani", Rank: leave.RankDirector, Departments: []string{"engineering", "operations"},
			HireDate: generic.AddYears(today, -15)},
	}
	for _, u := range users {
		if err := h.Store.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("save user %s: %w", u.ID, err)
		}
	}
	return nil
}

func (h *Handler) loadApprovalInProgressScenario(ctx context.Context) error {
	if err := h.loadOrgChartScenario(ctx); err != nil {
		return err
	}
	start := h.workdayAt(14)

	annual, err := h.Service.Create(ctx, leave.CreateInput{
		RequesterID: "ana",
		Type:        leave.TypeAnnual,
		StartAt:     start,
		EndAt:       start.Add(24*time.Hour + 8*time.Hour),
		TotalHours:  decimal.NewFromInt(16),
		Reason:      "Family trip",
		Deputies:    []string{"budi", "citra"},
	})
	if err != nil {
		return err
	}
	for _, deputy := range []string{"budi", "citra"} {
		if _, err := h.Service.Approve(ctx, annual.ID, deputy); err != nil {
			return err
		}
	}

	sick, err := h.Service.Create(ctx, leave.CreateInput{
		RequesterID: "citra",
		Type:        leave.TypeSick,
		StartAt:     start,
		EndAt:       start.Add(4 * time.Hour),
		TotalHours:  decimal.NewFromInt(4),
		Reason:      "Dental appointment",
		Deputies:    []string{"budi"},
	})
	if err != nil {
		return err
	}
	_, err = h.Service.Reject(ctx, sick.ID, "budi")
	return err
}

func (h *Handler) loadEntitlementUsedScenario(ctx context.Context) error {
	if err := h.loadOrgChartScenario(ctx); err != nil {
		return err
	}
	start := h.workdayAt(7)

	req, err := h.Service.Create(ctx, leave.CreateInput{
		RequesterID: "ana",
		Type:        leave.TypeAnnual,
		StartAt:     start,
		EndAt:       start.Add(2*24*time.Hour + 8*time.Hour),
		TotalHours:  decimal.NewFromInt(24),
		Reason:      "Wedding anniversary",
		Deputies:    []string{"budi"},
	})
	if err != nil {
		return err
	}
	// Deputy, one supervisor, the manager, then the director.
	for _, actor := range []string{"budi", "dewi", "fajar", "gita"} {
		if _, err := h.Service.Approve(ctx, req.ID, actor); err != nil {
			return err
		}
	}
	return nil
}

// workdayAt returns 09:00 UTC, days from today.
func (h *Handler) workdayAt(days int) time.Time {
	today := h.now().UTC().Truncate(24 * time.Hour)
	return today.AddDate(0, 0, days).Add(9 * time.Hour)
}
