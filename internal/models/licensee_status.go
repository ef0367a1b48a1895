package models

import "fmt"

// LicenseeStatus represents where a licensee is in its license lifecycle.
type LicenseeStatus string

const (
	// LicenseeStatusInactive marks a licensee that is not currently authorized.
	LicenseeStatusInactive LicenseeStatus = "inactive"
	// LicenseeStatusActive marks a licensee in good standing.
	LicenseeStatusActive LicenseeStatus = "active"
	// LicenseeStatusExpired marks a licensee whose license date has passed.
	// Only the expiration sweep moves a licensee into this status.
	LicenseeStatusExpired LicenseeStatus = "expired"
)

// licenseeStatusCodes is the persisted integer representation of each status.
// These values are stored in the licensees and licensee_status_audits tables
// and must never be renumbered.
var licenseeStatusCodes = map[LicenseeStatus]int{
	LicenseeStatusInactive: 1,
	LicenseeStatusActive:   2,
	LicenseeStatusExpired:  3,
}

// ValidLicenseeStatuses returns all licensee statuses in code order.
func ValidLicenseeStatuses() []LicenseeStatus {
	return []LicenseeStatus{LicenseeStatusInactive, LicenseeStatusActive, LicenseeStatusExpired}
}

// IsValid checks if the status is a recognized value.
func (s LicenseeStatus) IsValid() bool {
	_, ok := licenseeStatusCodes[s]
	return ok
}

// Code returns the persisted integer code, or 0 for an unknown status.
func (s LicenseeStatus) Code() int {
	return licenseeStatusCodes[s]
}

// DisplayName returns the capitalized label shown to users.
func (s LicenseeStatus) DisplayName() string {
	switch s {
	case LicenseeStatusInactive:
		return "Inactive"
	case LicenseeStatusActive:
		return "Active"
	case LicenseeStatusExpired:
		return "Expired"
	default:
		return string(s)
	}
}

// LicenseeStatusFromCode maps a persisted integer code back to a status.
func LicenseeStatusFromCode(code int) (LicenseeStatus, error) {
	for status, c := range licenseeStatusCodes {
		if c == code {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown licensee status code: %d", code)
}

// ParseLicenseeStatus parses a status name, accepting either the stored name
// ("active") or the display name ("Active").
func ParseLicenseeStatus(s string) (LicenseeStatus, error) {
	for _, status := range ValidLicenseeStatuses() {
		if s == string(status) || s == status.DisplayName() {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown licensee status: %q", s)
}
