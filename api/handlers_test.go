package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// FIXTURE - Router over the memory store, clock frozen at 2025-06-02
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mem := memory.New()
	alloc := func(n int64) leave.Balance {
		return leave.Balance{Allocated: decimal.NewFromInt(n)}
	}
	mem.PutEmployee(leave.Employee{
		ID: "emp-1", ApproverID: "mgr-1", Role: leave.RoleEmployee,
		Balances: map[leave.Category]leave.Balance{
			leave.CategoryCasual: alloc(12),
			leave.CategorySick:   {Allocated: decimal.NewFromInt(10), Used: decimal.NewFromInt(9)},
			leave.CategoryEarned: alloc(15),
		},
	})
	mem.PutEmployee(leave.Employee{ID: "emp-2", ApproverID: "mgr-1", Role: leave.RoleEmployee,
		Balances: map[leave.Category]leave.Balance{leave.CategoryCasual: alloc(12)}})
	mem.PutEmployee(leave.Employee{ID: "mgr-1", ApproverID: "admin-1", Role: leave.RoleManager})
	mem.PutEmployee(leave.Employee{ID: "admin-1", Role: leave.RoleAdmin})

	log := logrus.New()
	log.SetOutput(io.Discard)

	clock := leave.FixedClock{Instant: time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)}
	coord := leave.NewCoordinator(mem, clock, leave.DefaultPolicy(), log)

	srv := httptest.NewServer(NewRouter(NewHandler(coord, log)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, actorID, role string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set("X-Actor-ID", actorID)
		req.Header.Set("X-Actor-Role", role)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

func submitPayload(category, start, end string) map[string]any {
	return map[string]any{
		"category":  category,
		"startDate": start,
		"endDate":   end,
		"reason":    "family event",
	}
}

func submitOK(t *testing.T, srv *httptest.Server, actorID string, payload map[string]any) string {
	t.Helper()
	resp, body := doJSON(t, srv, http.MethodPost, "/api/leaves", actorID, "employee", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", body)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestAPI_Submit_Created(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/leaves", "emp-1", "employee",
		submitPayload("casual", "2025-06-10", "2025-06-12"))

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "mgr-1", body["approverId"])
	assert.Equal(t, "3", body["dayCount"])
}

func TestAPI_Submit_MissingActor_Unauthenticated(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/leaves", "", "",
		submitPayload("casual", "2025-06-10", "2025-06-12"))

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", body["error"])
}

func TestAPI_Submit_ValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name     string
		payload  map[string]any
		wantCode string
	}{
		{"malformed date", submitPayload("casual", "June 10", "2025-06-12"), "invalid_date_range"},
		{"inverted range", submitPayload("casual", "2025-06-12", "2025-06-10"), "invalid_date_range"},
		{"backdated", submitPayload("casual", "2025-06-01", "2025-06-03"), "invalid_date_range"},
		{"span too long", submitPayload("casual", "2025-06-03", "2025-07-03"), "span_too_long"},
		{"empty reason", func() map[string]any {
			p := submitPayload("casual", "2025-06-10", "2025-06-12")
			p["reason"] = ""
			return p
		}(), "empty_reason"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, srv, http.MethodPost, "/api/leaves", "emp-1", "employee", tt.payload)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.wantCode, body["error"])
		})
	}
}

func TestAPI_Submit_Overlap_BadRequestWithConflictDetails(t *testing.T) {
	srv := newTestServer(t)

	existing := submitOK(t, srv, "emp-1", submitPayload("casual", "2025-06-10", "2025-06-12"))

	resp, body := doJSON(t, srv, http.MethodPost, "/api/leaves", "emp-1", "employee",
		submitPayload("sick", "2025-06-12", "2025-06-13"))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "overlapping_request", body["error"])
	details, _ := body["details"].(map[string]any)
	require.NotNil(t, details)
	assert.Equal(t, existing, details["conflictingRequestId"])
}

func TestAPI_Submit_InsufficientBalance_BadRequest(t *testing.T) {
	// 13 requested against 12 allocated: refused at submission with 400.
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/leaves", "emp-1", "employee",
		submitPayload("casual", "2025-06-02", "2025-06-14"))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "insufficient_balance", body["error"])
}

func TestAPI_Submit_OnBehalf_Forbidden(t *testing.T) {
	srv := newTestServer(t)

	payload := submitPayload("casual", "2025-06-10", "2025-06-12")
	payload["employeeId"] = "emp-2"

	resp, body := doJSON(t, srv, http.MethodPost, "/api/leaves", "emp-1", "employee", payload)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["error"])
	assert.Equal(t, "forbidden", body["message"], "denial carries no guard details")
}

// =============================================================================
// DECIDE
// =============================================================================

func TestAPI_Decide_ApproveFlow(t *testing.T) {
	srv := newTestServer(t)
	id := submitOK(t, srv, "emp-1", submitPayload("casual", "2025-06-10", "2025-06-12"))

	resp, body := doJSON(t, srv, http.MethodPut, "/api/leaves/"+id+"/decision", "mgr-1", "manager",
		map[string]any{"decision": "approved"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", body["status"])
	assert.NotEmpty(t, body["decidedAt"])

	// The 3 days now show in the balance.
	resp, _ = doJSON(t, srv, http.MethodGet, "/api/employees/emp-1/balance", "emp-1", "employee", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Decide_SelfApproval_Forbidden(t *testing.T) {
	srv := newTestServer(t)
	id := submitOK(t, srv, "emp-1", submitPayload("casual", "2025-06-10", "2025-06-12"))

	resp, body := doJSON(t, srv, http.MethodPut, "/api/leaves/"+id+"/decision", "emp-1", "employee",
		map[string]any{"decision": "approved"})

	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["error"])
}

func TestAPI_Decide_RejectWithoutComment_BadRequest(t *testing.T) {
	srv := newTestServer(t)
	id := submitOK(t, srv, "emp-1", submitPayload("casual", "2025-06-10", "2025-06-12"))

	resp, body := doJSON(t, srv, http.MethodPut, "/api/leaves/"+id+"/decision", "mgr-1", "manager",
		map[string]any{"decision": "rejected"})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "comment_required", body["error"])
}

func TestAPI_Decide_InvalidDecisionValue_BadRequest(t *testing.T) {
	srv := newTestServer(t)
	id := submitOK(t, srv, "emp-1", submitPayload("casual", "2025-06-10", "2025-06-12"))

	resp, body := doJSON(t, srv, http.MethodPut, "/api/leaves/"+id+"/decision", "mgr-1", "manager",
		map[string]any{"decision": "maybe"})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_decision", body["error"])
}

func TestAPI_Decide_AlreadyDecided_Conflict(t *testing.T) {
	srv := newTestServer(t)
	id := submitOK(t, srv, "emp-1", submitPayload("casual", "2025-06-10", "2025-06-12"))

	resp, _ := doJSON(t, srv, http.MethodPut, "/api/leaves/"+id+"/decision", "mgr-1", "manager",
		map[string]any{"decision": "approved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, srv, http.MethodPut, "/api/leaves/"+id+"/decision", "mgr-1", "manager",
		map[string]any{"decision": "rejected", "comment": "second thoughts"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_state", body["error"])
}

func TestAPI_Decide_InsufficientAtApproval_Conflict(t *testing.T) {
	// 2 sick days submitted against allocated 10 (ok), approved against
	// remaining 1 (conflict).
	srv := newTestServer(t)

	payload := submitPayload("sick", "2025-06-10", "2025-06-11")
	id := submitOK(t, srv, "emp-1", payload)

	resp, body := doJSON(t, srv, http.MethodPut, "/api/leaves/"+id+"/decision", "mgr-1", "manager",
		map[string]any{"decision": "approved"})

	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "insufficient_balance", body["error"])
	details, _ := body["details"].(map[string]any)
	require.NotNil(t, details)
	assert.Equal(t, "1", details["remaining"])
	assert.Equal(t, "2", details["requested"])
}

func TestAPI_Decide_UnknownRequest_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPut, "/api/leaves/ghost/decision", "mgr-1", "manager",
		map[string]any{"decision": "approved"})

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"])
}

// =============================================================================
// CANCEL
// =============================================================================

func TestAPI_Cancel_Pending_OK(t *testing.T) {
	srv := newTestServer(t)
	id := submitOK(t, srv, "emp-1", submitPayload("casual", "2025-06-10", "2025-06-12"))

	resp, body := doJSON(t, srv, http.MethodPut, "/api/leaves/"+id+"/cancel", "emp-1", "employee", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["status"])
}

func TestAPI_Cancel_ApprovedAfterStart_WindowClosed(t *testing.T) {
	srv := newTestServer(t)

	// Starts "today" relative to the frozen clock.
	id := submitOK(t, srv, "emp-1", submitPayload("casual", "2025-06-02", "2025-06-04"))
	resp, _ := doJSON(t, srv, http.MethodPut, "/api/leaves/"+id+"/decision", "mgr-1", "manager",
		map[string]any{"decision": "approved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, srv, http.MethodPut, "/api/leaves/"+id+"/cancel", "emp-1", "employee", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "cancellation_window_closed", body["error"])
}

func TestAPI_Cancel_ByApprover_Forbidden(t *testing.T) {
	srv := newTestServer(t)
	id := submitOK(t, srv, "emp-1", submitPayload("casual", "2025-06-10", "2025-06-12"))

	resp, body := doJSON(t, srv, http.MethodPut, "/api/leaves/"+id+"/cancel", "mgr-1", "manager", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["error"])
}

// =============================================================================
// READS
// =============================================================================

func TestAPI_Get_ViewerScoping(t *testing.T) {
	srv := newTestServer(t)
	id := submitOK(t, srv, "emp-1", submitPayload("casual", "2025-06-10", "2025-06-12"))

	resp, _ := doJSON(t, srv, http.MethodGet, "/api/leaves/"+id, "emp-1", "employee", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "owner")

	resp, _ = doJSON(t, srv, http.MethodGet, "/api/leaves/"+id, "mgr-1", "manager", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "approver")

	resp, body := doJSON(t, srv, http.MethodGet, "/api/leaves/"+id, "emp-2", "employee", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "stranger")
	assert.Equal(t, "forbidden", body["error"])
}

func TestAPI_ListPending_ApproverQueue(t *testing.T) {
	srv := newTestServer(t)
	submitOK(t, srv, "emp-1", submitPayload("casual", "2025-06-10", "2025-06-12"))
	submitOK(t, srv, "emp-2", submitPayload("casual", "2025-06-16", "2025-06-17"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/leaves/pending", nil)
	require.NoError(t, err)
	req.Header.Set("X-Actor-ID", "mgr-1")
	req.Header.Set("X-Actor-Role", "manager")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 2)
}

func TestAPI_Balance_ShowsRemaining(t *testing.T) {
	srv := newTestServer(t)
	id := submitOK(t, srv, "emp-1", submitPayload("casual", "2025-06-10", "2025-06-12"))
	resp, _ := doJSON(t, srv, http.MethodPut, "/api/leaves/"+id+"/decision", "mgr-1", "manager",
		map[string]any{"decision": "approved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/employees/emp-1/balance", nil)
	require.NoError(t, err)
	req.Header.Set("X-Actor-ID", "emp-1")
	req.Header.Set("X-Actor-Role", "employee")

	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var balances []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&balances))

	byCategory := map[string]map[string]any{}
	for _, b := range balances {
		byCategory[fmt.Sprint(b["category"])] = b
	}
	require.Contains(t, byCategory, "casual")
	assert.Equal(t, "3", byCategory["casual"]["used"])
	assert.Equal(t, "9", byCategory["casual"]["remaining"])
}

func TestAPI_Balance_StrangerForbidden(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodGet, "/api/employees/emp-1/balance", "emp-2", "employee", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["error"])
}
