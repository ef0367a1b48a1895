// Package lifecycle implements the licensee status lifecycle: expiration
// evaluation, the status transition state machine, the audit trail, and the
// expiration sweep that ties them together.
package lifecycle

import (
	"errors"

	"github.com/MacJediWizard/licensee-manager/internal/models"
)

// DefaultHorizonDays is the look-ahead used when a caller supplies none.
const DefaultHorizonDays = 30

// ErrInvalidHorizon is returned when the look-ahead horizon is not positive.
var ErrInvalidHorizon = errors.New("horizon days must be positive")

// NormalizeHorizon substitutes DefaultHorizonDays for a non-positive horizon.
func NormalizeHorizon(days int) int {
	if days <= 0 {
		return DefaultHorizonDays
	}
	return days
}

// Caller distinguishes user edits from the automated sweep. Only system
// callers may move a licensee into the expired status.
type Caller int

const (
	// CallerManual is a user-initiated edit.
	CallerManual Caller = iota
	// CallerSystem is the expiration sweep.
	CallerSystem
)

// String returns the caller name.
func (c Caller) String() string {
	if c == CallerSystem {
		return "system"
	}
	return "manual"
}

// Source returns the audit source recorded for this caller.
func (c Caller) Source() models.AuditSource {
	if c == CallerSystem {
		return models.AuditSourceSystem
	}
	return models.AuditSourceManual
}

// Rejection is the reason a requested transition was refused.
type Rejection string

const (
	// RejectionManualExpirationForbidden means a manual caller asked for Expired.
	RejectionManualExpirationForbidden Rejection = "manual_expiration_forbidden"
	// RejectionNotFound means the licensee does not exist.
	RejectionNotFound Rejection = "not_found"
	// RejectionInvalidTransition covers every other disallowed move.
	RejectionInvalidTransition Rejection = "invalid_transition"
)

// Message returns a user-facing description of the rejection.
func (r Rejection) Message() string {
	switch r {
	case RejectionManualExpirationForbidden:
		return "Expired status is set automatically when the expiration date passes; renew the license to change it"
	case RejectionNotFound:
		return "licensee not found"
	case RejectionInvalidTransition:
		return "status transition not allowed"
	default:
		return string(r)
	}
}

// TransitionResult is the outcome of a Transition call. Rejections are
// expected outcomes and are reported here rather than as errors.
type TransitionResult struct {
	LicenseeID int64                 `json:"licensee_id"`
	Accepted   bool                  `json:"accepted"`
	Reason     Rejection             `json:"reason,omitempty"`
	OldStatus  models.LicenseeStatus `json:"old_status,omitempty"`
	NewStatus  models.LicenseeStatus `json:"new_status,omitempty"`
	// Changed is false for an accepted no-op.
	Changed bool                `json:"changed"`
	Audit   *models.StatusAudit `json:"audit,omitempty"`
}

func rejected(id int64, reason Rejection) TransitionResult {
	return TransitionResult{LicenseeID: id, Reason: reason}
}

// transitionAllowed reports whether caller may move a licensee from one
// status to another. Same-status requests are handled before this is called.
func transitionAllowed(from, to models.LicenseeStatus, caller Caller) bool {
	if from == models.LicenseeStatusExpired {
		return false
	}
	switch to {
	case models.LicenseeStatusExpired:
		return caller == CallerSystem
	case models.LicenseeStatusActive, models.LicenseeStatusInactive:
		return from == models.LicenseeStatusActive || from == models.LicenseeStatusInactive
	default:
		return false
	}
}
