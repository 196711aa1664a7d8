/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	leave histories. Every scenario goes through Service.Allocate and
	Service.AdvanceSubsidy, so the data obeys every allocation rule.

AVAILABLE SCENARIOS:

	threshold-crossing: 15 then 10 days of illness; the second leave splits 5/5
	maternity:          Three-month maternity leave, all reimbursable
	long-illness:       A year of continuous illness, accepted, over the 365-day limit
	overdue-filing:     Reimbursable periods granted long ago and never filed

HOW SCENARIOS WORK:
 1. Each scenario owns one demo subject (demo-<scenario id>)
 2. Submissions are allocated in order
 3. Optionally every new reimbursable subsidy period is accepted

Loading a scenario twice is harmless: resubmissions overlap the recorded
leave and come back as nothing_to_record.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "threshold-crossing"}

SEE ALSO:
  - handlers.go: Allocation and workflow handlers
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/subsidy-engine/subsidy"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenarioLeave struct {
	start, end, granted string
	category            subsidy.Category
}

type scenario struct {
	ScenarioDTO
	leaves []scenarioLeave
	accept bool // accept every new reimbursable subsidy period
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "threshold-crossing",
			Name:        "Threshold Crossing",
			Description: "15 days then 10 days of common illness; the second leave is split 5 employer-borne / 5 reimbursable",
		},
		leaves: []scenarioLeave{
			{start: "2024-01-08", end: "2024-01-22", category: subsidy.CategoryCommonIllness},
			{start: "2024-03-04", end: "2024-03-13", category: subsidy.CategoryCommonIllness},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "maternity",
			Name:        "Maternity",
			Description: "Maternity leave spanning three months, reimbursable from day one",
		},
		leaves: []scenarioLeave{
			{start: "2024-04-15", end: "2024-06-20", category: subsidy.CategoryMaternity},
		},
		accept: true,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "long-illness",
			Name:        "Long Illness",
			Description: "A year of continuous illness submitted month by month and accepted",
		},
		leaves: []scenarioLeave{
			{start: "2023-01-02", end: "2023-03-31", category: subsidy.CategoryOccupational},
			{start: "2023-04-01", end: "2023-06-30", category: subsidy.CategoryOccupational},
			{start: "2023-07-01", end: "2023-09-30", category: subsidy.CategoryOccupational},
			{start: "2023-10-01", end: "2024-01-31", category: subsidy.CategoryOccupational},
		},
		accept: true,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "overdue-filing",
			Name:        "Overdue Filing",
			Description: "Work accident periods granted in 2023 and never filed",
		},
		leaves: []scenarioLeave{
			{start: "2023-05-02", end: "2023-06-15", granted: "2023-05-03", category: subsidy.CategoryWorkAccident},
		},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
		dtos[i].SubjectID = s.subjectID()
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sc, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	results, err := h.loadScenario(r.Context(), sc)
	if err != nil {
		writeDomainError(w, fmt.Sprintf("Failed to load scenario %s", sc.ID), err)
		return
	}

	resp := LoadScenarioResponse{
		Status:    "loaded",
		Scenario:  sc.ID,
		SubjectID: sc.subjectID(),
	}
	for _, result := range results {
		resp.Allocations = append(resp.Allocations, toAllocationResponse(result))
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// SCENARIO LOADER
// =============================================================================

func (s scenario) subjectID() string {
	return "demo-" + s.ID
}

func (h *Handler) loadScenario(ctx context.Context, sc scenario) ([]*subsidy.AllocationResult, error) {
	var results []*subsidy.AllocationResult
	for _, l := range sc.leaves {
		sub, err := SubmitLeaveRequest{
			StartDate:   l.start,
			EndDate:     l.end,
			Category:    string(l.category),
			GrantedDate: l.granted,
		}.toSubmission(sc.subjectID())
		if err != nil {
			return nil, err
		}

		result, err := h.Service.Allocate(ctx, sub, h.ThresholdDays)
		if err != nil {
			return nil, err
		}
		results = append(results, result)

		if !sc.accept {
			continue
		}
		for _, p := range result.Subsidies {
			if !p.Reimbursable {
				continue
			}
			if _, _, err := h.Service.AdvanceSubsidy(ctx, p.ID, subsidy.SubsidyAccepted); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

