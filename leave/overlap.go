/*
overlap.go - Overlap index over one employee's open requests

PURPOSE:
  Answers whether a proposed date range conflicts with any of the
  employee's non-terminal (pending or approved) requests.

WHY CATEGORY-AGNOSTIC:
  The calendar day is the scarce resource, not the category label. An
  approved sick leave and a newly requested casual leave on the same day
  both block: the employee cannot be away twice on March 10th.

OVERLAP RULE:
  Two inclusive ranges conflict iff
      proposedStart <= otherEnd AND proposedEnd >= otherStart
  Inclusive on both ends, not strict: sharing a single boundary day is a
  conflict.

SEE ALSO:
  - coordinator.go: Consults the index at submission time
*/
package leave

import "context"

// Overlaps reports whether [aStart, aEnd] and [bStart, bEnd] share at
// least one calendar day.
func Overlaps(aStart, aEnd, bStart, bEnd Date) bool {
	return aStart.BeforeOrEqual(bEnd) && aEnd.AfterOrEqual(bStart)
}

// =============================================================================
// OVERLAP INDEX
// =============================================================================

type OverlapIndex struct {
	store RequestStore
}

func NewOverlapIndex(store RequestStore) *OverlapIndex {
	return &OverlapIndex{store: store}
}

// Conflict returns the first pending or approved request of the employee
// whose range intersects [start, end], across all categories. excludeID
// lets an in-place edit check against all OTHER requests; pass "" for a
// fresh submission. Returns nil when there is no conflict.
func (oi *OverlapIndex) Conflict(ctx context.Context, employeeID string, start, end Date, excludeID string) (*Request, error) {
	open, err := oi.store.ListOpenByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	for _, other := range open {
		if other.ID == excludeID {
			continue
		}
		if Overlaps(start, end, other.StartDate, other.EndDate) {
			return other, nil
		}
	}
	return nil, nil
}
