package models

import "time"

// AuditSource identifies which class of caller produced a status change.
type AuditSource string

const (
	// AuditSourceManual is a user-initiated edit.
	AuditSourceManual AuditSource = "manual"
	// AuditSourceSystem is the automated expiration sweep.
	AuditSourceSystem AuditSource = "system"
)

// StatusAudit is an append-only record of one licensee status change.
type StatusAudit struct {
	ID         int64          `json:"id"`
	LicenseeID int64          `json:"licensee_id"`
	OldStatus  LicenseeStatus `json:"old_status"`
	NewStatus  LicenseeStatus `json:"new_status"`
	ChangedAt  time.Time      `json:"changed_at"`
	Source     AuditSource    `json:"source"`
}

// NewStatusAudit creates a StatusAudit for a change observed at the given time.
func NewStatusAudit(licenseeID int64, oldStatus, newStatus LicenseeStatus, changedAt time.Time, source AuditSource) *StatusAudit {
	return &StatusAudit{
		LicenseeID: licenseeID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		ChangedAt:  changedAt,
		Source:     source,
	}
}
