/*
handlers.go - HTTP handlers over the leave coordinator

PURPOSE:
  Thin adapters: parse the body, resolve the actor, call the
  Coordinator, map the result. No business rule lives here - every
  state-changing path routes through the Coordinator so the guards
  cannot drift apart between endpoints.

ACTOR RESOLUTION:
  Authentication is an external collaborator. The gateway in front of
  this service injects the verified identity as headers:
      X-Actor-ID:   employee identifier
      X-Actor-Role: employee | manager | admin
  Requests without an actor id are rejected with 401.

SEE ALSO:
  - server.go: Route wiring
  - dto.go: Shapes and error mapping
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/leave-engine/leave"
)

const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

type Handler struct {
	coord *leave.Coordinator
	log   logrus.FieldLogger
}

func NewHandler(coord *leave.Coordinator, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{coord: coord, log: log}
}

// actorFrom resolves the acting identity from the gateway headers.
func actorFrom(r *http.Request) (leave.Actor, bool) {
	id := r.Header.Get(headerActorID)
	if id == "" {
		return leave.Actor{}, false
	}
	role := leave.Role(r.Header.Get(headerActorRole))
	switch role {
	case leave.RoleEmployee, leave.RoleManager, leave.RoleAdmin:
	default:
		role = leave.RoleEmployee
	}
	return leave.Actor{ID: id, Role: role}, true
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorDTO{
		Error:   "unauthenticated",
		Message: "missing " + headerActorID + " header",
	})
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitRequest handles POST /api/leaves.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var body submitBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid_json", "request body is not valid JSON")
		return
	}

	start, err := leave.ParseDate(body.StartDate)
	if err != nil {
		writeBadRequest(w, "invalid_date_range", "startDate must be YYYY-MM-DD")
		return
	}
	end, err := leave.ParseDate(body.EndDate)
	if err != nil {
		writeBadRequest(w, "invalid_date_range", "endDate must be YYYY-MM-DD")
		return
	}

	req, err := h.coord.Submit(r.Context(), actor, leave.SubmitInput{
		EmployeeID: body.EmployeeID,
		Category:   leave.Category(body.Category),
		StartDate:  start,
		EndDate:    end,
		HalfDay:    body.IsHalfDay,
		Session:    leave.HalfDaySession(body.HalfDaySession),
		Reason:     body.Reason,
	})
	if err != nil {
		writeEngineError(w, err, true)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// =============================================================================
// DECIDE / CANCEL
// =============================================================================

// DecideRequest handles PUT /api/leaves/{id}/decision.
func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var body decideBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid_json", "request body is not valid JSON")
		return
	}

	var decision leave.Status
	switch body.Decision {
	case string(leave.StatusApproved):
		decision = leave.StatusApproved
	case string(leave.StatusRejected):
		decision = leave.StatusRejected
	default:
		writeBadRequest(w, "invalid_decision", `decision must be "approved" or "rejected"`)
		return
	}

	req, err := h.coord.Decide(r.Context(), actor, chi.URLParam(r, "id"), decision, body.Comment)
	if err != nil {
		writeEngineError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// CancelRequest handles PUT /api/leaves/{id}/cancel.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	req, err := h.coord.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// READS
// =============================================================================

// GetRequest handles GET /api/leaves/{id}.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	req, err := h.coord.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// ListRequests handles GET /api/leaves.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	reqs, err := h.coord.List(r.Context(), actor)
	if err != nil {
		writeEngineError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// ListPending handles GET /api/leaves/pending - the approver's queue.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	reqs, err := h.coord.PendingForApprover(r.Context(), actor)
	if err != nil {
		writeEngineError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// GetBalance handles GET /api/employees/{id}/balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	balances, err := h.coord.BalanceView(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTOs(balances))
}
