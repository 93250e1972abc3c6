/*
dto.go - Request/response shapes and error mapping

PURPOSE:
  JSON DTOs for the HTTP surface plus the single place where engine
  errors become HTTP statuses and stable error codes. Handlers never
  inspect errors themselves; they call writeEngineError.

ERROR MAPPING:
  400  validation errors, overlap, cancellation window, and
       insufficient balance at submission
  403  forbidden (generic denial; no guard details leaked)
  404  not found
  409  insufficient balance at approval, invalid state,
       concurrent modification
  500  invariant violations and store failures

SEE ALSO:
  - handlers.go: The handlers using these shapes
  - leave/errors.go: The taxonomy being mapped
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

type submitBody struct {
	EmployeeID     string `json:"employeeId,omitempty"` // elevated roles may file for others
	Category       string `json:"category"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	Reason         string `json:"reason"`
	IsHalfDay      bool   `json:"isHalfDay,omitempty"`
	HalfDaySession string `json:"halfDaySession,omitempty"`
}

type decideBody struct {
	Decision string `json:"decision"` // "approved" | "rejected"
	Comment  string `json:"comment,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type requestDTO struct {
	ID              string     `json:"id"`
	EmployeeID      string     `json:"employeeId"`
	ApproverID      string     `json:"approverId,omitempty"`
	Category        string     `json:"category"`
	StartDate       string     `json:"startDate"`
	EndDate         string     `json:"endDate"`
	IsHalfDay       bool       `json:"isHalfDay"`
	HalfDaySession  string     `json:"halfDaySession,omitempty"`
	DayCount        string     `json:"dayCount"`
	Reason          string     `json:"reason"`
	Status          string     `json:"status"`
	DecisionComment string     `json:"decisionComment,omitempty"`
	DecidedAt       *time.Time `json:"decidedAt,omitempty"`
	AppliedAt       time.Time  `json:"appliedAt"`
}

func toRequestDTO(r *leave.Request) requestDTO {
	return requestDTO{
		ID:              r.ID,
		EmployeeID:      r.EmployeeID,
		ApproverID:      r.ApproverID,
		Category:        string(r.Category),
		StartDate:       r.StartDate.String(),
		EndDate:         r.EndDate.String(),
		IsHalfDay:       r.HalfDay,
		HalfDaySession:  string(r.Session),
		DayCount:        r.DayCount.String(),
		Reason:          r.Reason,
		Status:          string(r.Status),
		DecisionComment: r.DecisionComment,
		DecidedAt:       r.DecidedAt,
		AppliedAt:       r.AppliedAt,
	}
}

func toRequestDTOs(rs []*leave.Request) []requestDTO {
	out := make([]requestDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRequestDTO(r))
	}
	return out
}

type balanceDTO struct {
	Category  string `json:"category"`
	Allocated string `json:"allocated"`
	Used      string `json:"used"`
	Remaining string `json:"remaining"`
}

func toBalanceDTOs(balances map[leave.Category]leave.Balance) []balanceDTO {
	out := make([]balanceDTO, 0, len(balances))
	for _, cat := range leave.Categories() {
		b, ok := balances[cat]
		if !ok {
			continue
		}
		out = append(out, balanceDTO{
			Category:  string(cat),
			Allocated: b.Allocated.String(),
			Used:      b.Used.String(),
			Remaining: b.Remaining().String(),
		})
	}
	return out
}

// =============================================================================
// ERROR RESPONSES
// =============================================================================

type errorDTO struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// errorCode gives each taxonomy member a stable, client-facing code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, leave.ErrInvalidDateRange):
		return "invalid_date_range"
	case errors.Is(err, leave.ErrSpanTooLong):
		return "span_too_long"
	case errors.Is(err, leave.ErrEmptyReason):
		return "empty_reason"
	case errors.Is(err, leave.ErrReasonTooLong):
		return "reason_too_long"
	case errors.Is(err, leave.ErrInvalidHalfDay):
		return "invalid_half_day"
	case errors.Is(err, leave.ErrCommentRequired):
		return "comment_required"
	case errors.Is(err, leave.ErrOverlappingRequest):
		return "overlapping_request"
	case errors.Is(err, leave.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, leave.ErrCancellationWindowClosed):
		return "cancellation_window_closed"
	case errors.Is(err, leave.ErrForbidden):
		return "forbidden"
	case errors.Is(err, leave.ErrNotFound):
		return "not_found"
	case errors.Is(err, leave.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, leave.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, leave.ErrInvariantViolation):
		return "invariant_violation"
	default:
		return "internal_error"
	}
}

// errorDetails surfaces the "why" carried by structured errors: remaining
// balance, conflicting request id. Forbidden stays detail-free on purpose.
func errorDetails(err error) map[string]string {
	var insuff *leave.InsufficientBalanceError
	if errors.As(err, &insuff) {
		return map[string]string{
			"category":  string(insuff.Category),
			"remaining": insuff.Remaining.String(),
			"requested": insuff.Requested.String(),
		}
	}
	var overlap *leave.OverlapError
	if errors.As(err, &overlap) {
		return map[string]string{
			"conflictingRequestId": overlap.ConflictingID,
			"conflictStart":        overlap.ConflictStart.String(),
			"conflictEnd":          overlap.ConflictEnd.String(),
		}
	}
	return nil
}

// writeEngineError maps an engine error onto the wire. atSubmit selects
// the submission mapping, where business refusals (including insufficient
// balance) are 400s rather than 409s.
func writeEngineError(w http.ResponseWriter, err error, atSubmit bool) {
	status := http.StatusInternalServerError
	switch {
	case leave.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, leave.ErrOverlappingRequest),
		errors.Is(err, leave.ErrCancellationWindowClosed):
		status = http.StatusBadRequest
	case errors.Is(err, leave.ErrInsufficientBalance):
		if atSubmit {
			status = http.StatusBadRequest
		} else {
			status = http.StatusConflict
		}
	case errors.Is(err, leave.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, leave.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, leave.ErrConcurrentModification),
		errors.Is(err, leave.ErrInvalidState):
		status = http.StatusConflict
	}

	message := err.Error()
	if errors.Is(err, leave.ErrForbidden) {
		// Generic denial; never explain which guard failed.
		message = "forbidden"
	}

	writeJSON(w, status, errorDTO{
		Error:   errorCode(err),
		Message: message,
		Details: errorDetails(err),
	})
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusBadRequest, errorDTO{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
