package leave

// =============================================================================
// POLICY - Submission-time configuration
// =============================================================================

// Policy carries the configurable submission limits. One policy applies
// engine-wide; per-category policies are out of scope.
type Policy struct {
	// MaxSpanDays caps the day count of a single request.
	MaxSpanDays int

	// MaxReasonLength bounds the free-text reason.
	MaxReasonLength int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxSpanDays:     30,
		MaxReasonLength: 500,
	}
}
