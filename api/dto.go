/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in package subsidy from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Allocation:  SubmitLeaveRequest, AllocationResponse, IntervalDTO, EventDTO
  Workflow:    AdvanceStatusRequest, AdvanceStatusResponse, ReviewLeaveResponse, ClaimDTO
  Reports:     BreachDTO
  Scenarios:   ScenarioDTO, LoadScenarioRequest, LoadScenarioResponse

DATES:
  All dates are YYYY-MM-DD strings. Money is a decimal string.

VALIDATION:
  Validation is done in handlers and in the domain, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/subsidy-engine/generic"
	"github.com/warp/subsidy-engine/subsidy"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SubmitLeaveRequest is one certified leave submission.
// GrantedDate defaults to StartDate when omitted.
type SubmitLeaveRequest struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Category    string `json:"category"`
	GrantedDate string `json:"granted_date,omitempty"`
}

// AdvanceStatusRequest moves a subsidy period through its workflow.
type AdvanceStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// IntervalDTO represents a leave interval or subsidy period.
type IntervalDTO struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	SubjectID     string `json:"subject_id"`
	LeaveID       string `json:"leave_id,omitempty"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	TotalDays     int    `json:"total_days"`
	Category      string `json:"category"`
	Continuous    bool   `json:"continuous"`
	Status        string `json:"status"`
	Reimbursable  bool   `json:"reimbursable"`
	MaxFilingDate string `json:"max_filing_date,omitempty"`
	GrantedDate   string `json:"granted_date,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// ClaimDTO is the reimbursement claim drafted on acceptance.
type ClaimDTO struct {
	SubsidyID string          `json:"subsidy_id"`
	LeaveID   string          `json:"leave_id,omitempty"`
	SubjectID string          `json:"subject_id"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Days      int             `json:"days"`
	DailyRate decimal.Decimal `json:"daily_rate"`
	Amount    decimal.Decimal `json:"amount"`
	FileBy    string          `json:"file_by,omitempty"`
}

// EventDTO is a domain event for an external dispatcher.
type EventDTO struct {
	Type       string    `json:"type"`
	SubjectID  string    `json:"subject_id"`
	IntervalID string    `json:"interval_id,omitempty"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	Status     string    `json:"status,omitempty"`
	Claim      *ClaimDTO `json:"claim,omitempty"`
}

// AllocationResponse is returned by POST /api/subjects/{id}/leaves.
type AllocationResponse struct {
	Outcome          string        `json:"outcome"`
	CumulativeDays   int           `json:"cumulative_days"`
	ReimbursableDays int           `json:"reimbursable_days"`
	Leaves           []IntervalDTO `json:"leaves"`
	Subsidies        []IntervalDTO `json:"subsidies"`
	Events           []EventDTO    `json:"events"`
}

// AdvanceStatusResponse is returned by POST /api/subsidies/{id}/status.
type AdvanceStatusResponse struct {
	Subsidy IntervalDTO `json:"subsidy"`
	Events  []EventDTO  `json:"events"`
}

// ReviewLeaveResponse is returned by POST /api/leaves/{id}/status.
type ReviewLeaveResponse struct {
	Leave  IntervalDTO `json:"leave"`
	Events []EventDTO  `json:"events"`
}

// BreachDTO is one subject over a limit.
type BreachDTO struct {
	SubjectID string        `json:"subject_id"`
	Kind      string        `json:"kind"`
	TotalDays int           `json:"total_days"`
	LimitDays int           `json:"limit_days"`
	Periods   []IntervalDTO `json:"periods"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SubjectID   string `json:"subject_id,omitempty"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse lists the allocations a scenario produced.
type LoadScenarioResponse struct {
	Status      string               `json:"status"`
	Scenario    string               `json:"scenario"`
	SubjectID   string               `json:"subject_id"`
	Allocations []AllocationResponse `json:"allocations"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func dateString(tp generic.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.String()
}

func toIntervalDTO(iv subsidy.Interval) IntervalDTO {
	dto := IntervalDTO{
		ID:            string(iv.ID),
		Kind:          string(iv.Kind),
		SubjectID:     string(iv.SubjectID),
		LeaveID:       string(iv.LeaveID),
		StartDate:     dateString(iv.Period.Start),
		EndDate:       dateString(iv.Period.End),
		TotalDays:     iv.TotalDays,
		Category:      string(iv.Category),
		Continuous:    iv.Continuous,
		Status:        string(iv.Status),
		Reimbursable:  iv.Reimbursable,
		MaxFilingDate: dateString(iv.MaxFilingDate),
		GrantedDate:   dateString(iv.GrantedDate),
	}
	if !iv.CreatedAt.IsZero() {
		dto.CreatedAt = iv.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toIntervalDTOs(ivs []subsidy.Interval) []IntervalDTO {
	dtos := make([]IntervalDTO, len(ivs))
	for i, iv := range ivs {
		dtos[i] = toIntervalDTO(iv)
	}
	return dtos
}

func toEventDTOs(events []subsidy.Event) []EventDTO {
	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = EventDTO{
			Type:       string(e.Type),
			SubjectID:  string(e.SubjectID),
			IntervalID: string(e.IntervalID),
			StartDate:  dateString(e.Period.Start),
			EndDate:    dateString(e.Period.End),
			Status:     string(e.Status),
		}
		if c := e.Claim; c != nil {
			dtos[i].Claim = &ClaimDTO{
				SubsidyID: string(c.SubsidyID),
				LeaveID:   string(c.LeaveID),
				SubjectID: string(c.SubjectID),
				StartDate: dateString(c.Period.Start),
				EndDate:   dateString(c.Period.End),
				Days:      c.Days,
				DailyRate: c.DailyRate,
				Amount:    c.Amount,
				FileBy:    dateString(c.FileBy),
			}
		}
	}
	return dtos
}

func toAllocationResponse(result *subsidy.AllocationResult) AllocationResponse {
	return AllocationResponse{
		Outcome:          string(result.Outcome),
		CumulativeDays:   result.CumulativeDays,
		ReimbursableDays: result.ReimbursableDays(),
		Leaves:           toIntervalDTOs(result.Leaves),
		Subsidies:        toIntervalDTOs(result.Subsidies),
		Events:           toEventDTOs(result.Events),
	}
}

func toBreachDTOs(breaches []subsidy.SubjectBreach) []BreachDTO {
	dtos := make([]BreachDTO, len(breaches))
	for i, b := range breaches {
		dtos[i] = BreachDTO{
			SubjectID: string(b.SubjectID),
			Kind:      string(b.Kind),
			TotalDays: b.TotalDays,
			LimitDays: b.LimitDays,
			Periods:   toIntervalDTOs(b.Periods),
		}
	}
	return dtos
}
