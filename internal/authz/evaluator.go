// Package authz holds the pure permission evaluator that gates every
// workbook and measurement operation. It encodes the role hierarchy and lab
// scoping as a fixed precedence table; callers (services, handlers) must treat
// its verdict as final, and UI-side checks are advisory only.
package authz

import (
	"fmt"

	"telab/internal/models"
)

type Action string

const (
	ActionRead              Action = "read"
	ActionUpdate            Action = "update"
	ActionDelete            Action = "delete"
	ActionComment           Action = "comment"
	ActionCreateMeasurement Action = "create_measurement"
)

type EntityKind string

const (
	EntityWorkbook    EntityKind = "workbook"
	EntityMeasurement EntityKind = "measurement"
)

// Deny reasons, surfaced unchanged through PermissionError.
const (
	ReasonLabScope  = "lab-scope"
	ReasonNotOwner  = "not-owner"
	ReasonImmutable = "immutable"
	ReasonNoRule    = "no-rule"
)

// Target identifies the entity an action is aimed at. Measurements carry the
// lab and owner of their parent workbook.
type Target struct {
	Kind    EntityKind
	LabID   uint
	OwnerID uint
}

func WorkbookTarget(wb *models.Workbook) Target {
	return Target{Kind: EntityWorkbook, LabID: wb.LabID, OwnerID: wb.ResearcherID}
}

func MeasurementTarget(wb *models.Workbook) Target {
	return Target{Kind: EntityMeasurement, LabID: wb.LabID, OwnerID: wb.ResearcherID}
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// PermissionError is the typed error raised when a gateway call is denied.
type PermissionError struct {
	Action Action
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s (%s)", e.Action, e.Reason)
}

// Denied converts a deny decision into a PermissionError.
func Denied(action Action, d Decision) *PermissionError {
	return &PermissionError{Action: action, Reason: d.Reason}
}

// Evaluate decides whether actor may perform action on target. Rules are
// checked in a fixed precedence order; the first match wins.
//
// Measurement rows are immutable for every role, including super admins, so
// that rule precedes all role-based allows. Workbooks are strictly private to
// their owning researcher: same-lab colleagues get not-owner, other labs get
// lab-scope. Lab admins may read and comment within their lab, nothing else.
func Evaluate(actor *models.User, action Action, target Target) Decision {
	if target.Kind == EntityMeasurement && (action == ActionUpdate || action == ActionDelete) {
		return deny(ReasonImmutable)
	}

	if actor.IsSuperAdmin() {
		return allow()
	}

	if !actor.CanAccessLab(target.LabID) {
		return deny(ReasonLabScope)
	}

	if actor.IsLabAdmin() {
		if action == ActionRead || action == ActionComment {
			return allow()
		}
		return deny(ReasonNoRule)
	}

	if actor.IsResearcher() {
		switch action {
		case ActionRead, ActionUpdate, ActionDelete, ActionCreateMeasurement:
			if target.OwnerID == actor.ID {
				return allow()
			}
			return deny(ReasonNotOwner)
		}
	}

	return deny(ReasonNoRule)
}
