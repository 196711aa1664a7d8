/*
handlers.go - HTTP API handlers for the subsidy allocation engine

PURPOSE:
  Exposes allocation, the subsidy workflow and the reports via REST API.
  Handles HTTP request/response and JSON serialization; all rules live in
  package subsidy.

ENDPOINTS:
  Subjects:
    POST   /api/subjects/{id}/leaves     Submit a leave, derive subsidy periods
    GET    /api/subjects/{id}/leaves     Leave intervals of a subject
    GET    /api/subjects/{id}/subsidies  Subsidy periods of a subject

  Workflows:
    POST   /api/subsidies/{id}/status    Advance a subsidy period
    POST   /api/leaves/{id}/status       Review a leave's documentation

  Reports:
    GET    /api/reports/breaches?kind=&limit=   Subjects over a limit
    GET    /api/reports/overdue?as_of=          Periods past their filing date

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Interval not found
  - 409: Workflow transition not allowed
  - 500: Store failures, threshold misconfiguration

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/subsidy-engine/config"
	"github.com/warp/subsidy-engine/generic"
	"github.com/warp/subsidy-engine/metrics"
	"github.com/warp/subsidy-engine/subsidy"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is what the handlers need from persistence.
type Store interface {
	subsidy.TxStore
	subsidy.ReportStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service       *subsidy.Service
	Reporter      *subsidy.Reporter
	Reports       subsidy.ReportStore
	ThresholdDays int

	// Now defaults to time.Now; used for the overdue report's default date.
	Now func() time.Time
}

// NewHandler creates a new handler over store, configured by cfg.
func NewHandler(store Store, cfg *config.Config) *Handler {
	return &Handler{
		Service:       subsidy.NewService(store, cfg.NewAllocator(), cfg.DailyRate()),
		Reporter:      &subsidy.Reporter{Store: store},
		Reports:       store,
		ThresholdDays: cfg.Allocation.ThresholdDays,
		Now:           time.Now,
	}
}

// =============================================================================
// SUBJECT HANDLERS
// =============================================================================

// SubmitLeave records a leave submission and returns the allocation.
// POST /api/subjects/{id}/leaves
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "id")

	var req SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sub, err := req.toSubmission(subjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid submission", err)
		return
	}

	result, err := h.Service.Allocate(r.Context(), sub, h.ThresholdDays)
	if err != nil {
		metrics.ObserveAllocationError(errorClass(err))
		writeDomainError(w, "Allocation failed", err)
		return
	}
	metrics.ObserveAllocation(result)

	status := http.StatusCreated
	if result.Empty() {
		status = http.StatusOK
	}
	writeJSON(w, status, toAllocationResponse(result))
}

func (req SubmitLeaveRequest) toSubmission(subjectID string) (subsidy.Submission, error) {
	start, err := generic.ParseDate(req.StartDate)
	if err != nil {
		return subsidy.Submission{}, err
	}
	end, err := generic.ParseDate(req.EndDate)
	if err != nil {
		return subsidy.Submission{}, err
	}
	granted := start
	if req.GrantedDate != "" {
		if granted, err = generic.ParseDate(req.GrantedDate); err != nil {
			return subsidy.Submission{}, err
		}
	}
	return subsidy.Submission{
		SubjectID:   subsidy.SubjectID(subjectID),
		Period:      generic.Period{Start: start, End: end},
		Category:    subsidy.Category(req.Category),
		GrantedDate: granted,
	}, nil
}

// ListLeaves returns a subject's leave intervals ordered by start.
// GET /api/subjects/{id}/leaves
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	h.listIntervals(w, r, subsidy.KindLeave)
}

// ListSubsidies returns a subject's subsidy periods ordered by start.
// GET /api/subjects/{id}/subsidies
func (h *Handler) ListSubsidies(w http.ResponseWriter, r *http.Request) {
	h.listIntervals(w, r, subsidy.KindSubsidy)
}

func (h *Handler) listIntervals(w http.ResponseWriter, r *http.Request, kind subsidy.Kind) {
	filter := subsidy.IntervalFilter{
		Kind:      kind,
		SubjectID: subsidy.SubjectID(chi.URLParam(r, "id")),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Statuses = []subsidy.Status{subsidy.Status(status)}
	}

	intervals, err := h.Reports.ListIntervals(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list intervals", err)
		return
	}
	writeJSON(w, http.StatusOK, toIntervalDTOs(intervals))
}

// =============================================================================
// SUBSIDY WORKFLOW HANDLERS
// =============================================================================

// AdvanceSubsidy moves a subsidy period to a new status.
// POST /api/subsidies/{id}/status
func (h *Handler) AdvanceSubsidy(w http.ResponseWriter, r *http.Request) {
	id := subsidy.IntervalID(chi.URLParam(r, "id"))

	var req AdvanceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required", nil)
		return
	}

	updated, events, err := h.Service.AdvanceSubsidy(r.Context(), id, subsidy.Status(req.Status))
	if err != nil {
		writeDomainError(w, "Status change failed", err)
		return
	}

	for _, e := range events {
		if e.Type == subsidy.EventClaimTriggered {
			log.Printf("[Claims] Drafted claim for subsidy %s: %s over %d days", e.IntervalID, e.Claim.Amount.StringFixed(2), e.Claim.Days)
		}
	}

	writeJSON(w, http.StatusOK, AdvanceStatusResponse{
		Subsidy: toIntervalDTO(*updated),
		Events:  toEventDTOs(events),
	})
}

// ReviewLeave moves a leave interval through document review.
// POST /api/leaves/{id}/status
func (h *Handler) ReviewLeave(w http.ResponseWriter, r *http.Request) {
	id := subsidy.IntervalID(chi.URLParam(r, "id"))

	var req AdvanceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required", nil)
		return
	}

	updated, events, err := h.Service.ReviewLeave(r.Context(), id, subsidy.Status(req.Status))
	if err != nil {
		writeDomainError(w, "Leave review failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ReviewLeaveResponse{
		Leave:  toIntervalDTO(*updated),
		Events: toEventDTOs(events),
	})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// ListBreaches returns subjects whose accepted reimbursable days exceed limit.
// GET /api/reports/breaches?kind=global&limit=545
func (h *Handler) ListBreaches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind, err := subsidy.ParseBreachKind(q.Get("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid kind", err)
		return
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer", err)
		return
	}

	breaches, err := h.Reporter.FindOverThreshold(r.Context(), kind, limit)
	if err != nil {
		writeDomainError(w, "Breach report failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toBreachDTOs(breaches))
}

// ListOverdue returns reimbursable subsidy periods past their filing date.
// GET /api/reports/overdue?as_of=2024-05-01 (defaults to today)
func (h *Handler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	asOf := generic.FromTime(h.now())
	if v := r.URL.Query().Get("as_of"); v != "" {
		parsed, err := generic.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of", err)
			return
		}
		asOf = parsed
	}

	overdue, err := h.Reporter.FindOverdueFilings(r.Context(), asOf)
	if err != nil {
		writeDomainError(w, "Overdue report failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toIntervalDTOs(overdue))
}

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// =============================================================================
// HELPERS
// =============================================================================

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

// writeDomainError maps engine errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, generic.ErrValidation):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, generic.ErrNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, subsidy.ErrInvalidTransition):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, generic.ErrPersistence):
		log.Printf("[API] %s: %v", message, err)
		writeError(w, http.StatusInternalServerError, message, errors.New("storage failure, nothing was recorded"))
	default:
		log.Printf("[API] %s: %v", message, err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, generic.ErrValidation):
		return "validation"
	case errors.Is(err, generic.ErrThresholdMisconfigured):
		return "threshold"
	case errors.Is(err, generic.ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}
