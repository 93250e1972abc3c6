/*
authz.go - Authorization scoper

PURPOSE:
  Three named capability predicates replacing scattered per-route role
  checks. Pure functions of (actor identity/role, request owner/approver);
  they hold no state and touch no store.

THE SELF-APPROVAL HOLE:
  Ownership NEVER grants decision rights. An employee who happens to be
  their own resolved approver may decide (that assignment is the org
  chart's problem), but mere ownership cannot approve - CanDecide checks
  the approver field, not the owner field.

SEE ALSO:
  - coordinator.go: Evaluates exactly one predicate per operation
*/
package leave

// CanView reports whether the actor may read the request: owner, resolved
// approver, or elevated role.
func CanView(actor Actor, r *Request) bool {
	if actor.Elevated() {
		return true
	}
	return actor.ID == r.EmployeeID || (r.ApproverID != "" && actor.ID == r.ApproverID)
}

// CanDecide reports whether the actor may approve or reject the request:
// the resolved approver or an elevated role. Never the owner as owner.
func CanDecide(actor Actor, r *Request) bool {
	if actor.Elevated() {
		return true
	}
	return r.ApproverID != "" && actor.ID == r.ApproverID
}

// CanCancel reports whether the actor may cancel the request: the owner
// or an elevated role.
func CanCancel(actor Actor, r *Request) bool {
	if actor.Elevated() {
		return true
	}
	return actor.ID == r.EmployeeID
}
