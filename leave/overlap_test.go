package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// PURE OVERLAP RULE
// =============================================================================

func TestOverlaps_InclusiveBounds(t *testing.T) {
	d := func(day int) leave.Date { return leave.NewDate(2025, time.June, day) }

	tests := []struct {
		name         string
		aStart, aEnd int
		bStart, bEnd int
		want         bool
	}{
		{"disjoint before", 1, 3, 5, 7, false},
		{"disjoint after", 10, 12, 5, 7, false},
		{"identical", 5, 7, 5, 7, true},
		{"contained", 5, 7, 6, 6, true},
		{"containing", 6, 6, 5, 7, true},
		{"partial front", 4, 6, 5, 7, true},
		{"partial back", 6, 9, 5, 7, true},
		{"shared single boundary day", 1, 5, 5, 9, true},
		{"adjacent, no shared day", 1, 4, 5, 9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := leave.Overlaps(d(tt.aStart), d(tt.aEnd), d(tt.bStart), d(tt.bEnd))
			assert.Equal(t, tt.want, got)

			// Overlap is symmetric: if A conflicts with B, B conflicts with A.
			sym := leave.Overlaps(d(tt.bStart), d(tt.bEnd), d(tt.aStart), d(tt.aEnd))
			assert.Equal(t, got, sym, "overlap must be symmetric")
		})
	}
}

// =============================================================================
// OVERLAP INDEX
// =============================================================================

func openRequest(id, employeeID string, status leave.Status, start, end leave.Date) *leave.Request {
	return &leave.Request{
		ID:         id,
		EmployeeID: employeeID,
		ApproverID: "mgr-1",
		Category:   leave.CategoryCasual,
		StartDate:  start,
		EndDate:    end,
		DayCount:   leave.DayCountFor(start, end, false),
		Reason:     "trip",
		Status:     status,
		AppliedAt:  testInstant,
		Version:    1,
	}
}

func newOverlapFixture(t *testing.T) (*leave.OverlapIndex, *memory.Memory) {
	t.Helper()
	mem := memory.New()
	return leave.NewOverlapIndex(mem), mem
}

func TestOverlapIndex_PendingBlocks(t *testing.T) {
	// GIVEN: emp-1 has a pending request June 10-12
	// WHEN: proposing June 12-14
	// THEN: conflict reported against the pending request

	idx, mem := newOverlapFixture(t)
	ctx := context.Background()
	existing := openRequest("r1", "emp-1", leave.StatusPending,
		leave.NewDate(2025, time.June, 10), leave.NewDate(2025, time.June, 12))
	require.NoError(t, mem.CreateRequest(ctx, existing))

	conflict, err := idx.Conflict(ctx, "emp-1",
		leave.NewDate(2025, time.June, 12), leave.NewDate(2025, time.June, 14), "")
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, "r1", conflict.ID)
}

func TestOverlapIndex_CrossCategoryBlocks(t *testing.T) {
	// The day is the scarce resource, not the category: an approved sick
	// leave blocks a casual request on the same days.

	idx, mem := newOverlapFixture(t)
	ctx := context.Background()
	sick := openRequest("r1", "emp-1", leave.StatusApproved,
		leave.NewDate(2025, time.June, 10), leave.NewDate(2025, time.June, 11))
	sick.Category = leave.CategorySick
	require.NoError(t, mem.CreateRequest(ctx, sick))

	conflict, err := idx.Conflict(ctx, "emp-1",
		leave.NewDate(2025, time.June, 11), leave.NewDate(2025, time.June, 13), "")
	require.NoError(t, err)
	require.NotNil(t, conflict)
}

func TestOverlapIndex_TerminalStatusesIgnored(t *testing.T) {
	idx, mem := newOverlapFixture(t)
	ctx := context.Background()

	rejected := openRequest("r1", "emp-1", leave.StatusRejected,
		leave.NewDate(2025, time.June, 10), leave.NewDate(2025, time.June, 12))
	cancelled := openRequest("r2", "emp-1", leave.StatusCancelled,
		leave.NewDate(2025, time.June, 10), leave.NewDate(2025, time.June, 12))
	require.NoError(t, mem.CreateRequest(ctx, rejected))
	require.NoError(t, mem.CreateRequest(ctx, cancelled))

	conflict, err := idx.Conflict(ctx, "emp-1",
		leave.NewDate(2025, time.June, 10), leave.NewDate(2025, time.June, 12), "")
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestOverlapIndex_OtherEmployeeIgnored(t *testing.T) {
	idx, mem := newOverlapFixture(t)
	ctx := context.Background()
	other := openRequest("r1", "emp-2", leave.StatusPending,
		leave.NewDate(2025, time.June, 10), leave.NewDate(2025, time.June, 12))
	require.NoError(t, mem.CreateRequest(ctx, other))

	conflict, err := idx.Conflict(ctx, "emp-1",
		leave.NewDate(2025, time.June, 10), leave.NewDate(2025, time.June, 12), "")
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestOverlapIndex_ExcludeSelf(t *testing.T) {
	// A request never conflicts with itself when excluded - the in-place
	// edit path checks against all OTHER requests.

	idx, mem := newOverlapFixture(t)
	ctx := context.Background()
	existing := openRequest("r1", "emp-1", leave.StatusPending,
		leave.NewDate(2025, time.June, 10), leave.NewDate(2025, time.June, 12))
	require.NoError(t, mem.CreateRequest(ctx, existing))

	conflict, err := idx.Conflict(ctx, "emp-1",
		existing.StartDate, existing.EndDate, "r1")
	require.NoError(t, err)
	assert.Nil(t, conflict)

	// Without the exclusion the same range conflicts.
	conflict, err = idx.Conflict(ctx, "emp-1", existing.StartDate, existing.EndDate, "")
	require.NoError(t, err)
	require.NotNil(t, conflict)
}
