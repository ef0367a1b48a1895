// Package models defines the domain models for the licensee manager.
package models

import (
	"strings"
	"time"
)

// Licensee represents a person holding a license issued through an office.
type Licensee struct {
	ID             int64          `json:"id"`
	FirstName      string         `json:"first_name" validate:"required,max=50"`
	LastName       string         `json:"last_name" validate:"required,max=50"`
	Email          string         `json:"email" validate:"required,email,max=254"`
	LicenseNumber  string         `json:"license_number" validate:"required,max=50"`
	LicenseTypeID  int64          `json:"license_type_id" validate:"required,gt=0"`
	OfficeID       int64          `json:"office_id" validate:"required,gt=0"`
	Status         LicenseeStatus `json:"status"`
	IssueDate      *time.Time     `json:"issue_date,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
	// Version is incremented on every write and checked on conditional updates.
	Version int64 `json:"version"`
}

// NewLicensee creates a new Licensee with the given identity and assignment.
func NewLicensee(firstName, lastName, email, licenseNumber string, licenseTypeID, officeID int64, status LicenseeStatus) *Licensee {
	return &Licensee{
		FirstName:     firstName,
		LastName:      lastName,
		Email:         email,
		LicenseNumber: licenseNumber,
		LicenseTypeID: licenseTypeID,
		OfficeID:      officeID,
		Status:        status,
		CreatedAt:     time.Now(),
		Version:       1,
	}
}

// FullName returns the first and last name joined by a space.
func (l *Licensee) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// ExpiredAsOf reports whether the expiration date falls strictly before asOf.
// A licensee without an expiration date never expires.
func (l *Licensee) ExpiredAsOf(asOf time.Time) bool {
	if l.ExpirationDate == nil {
		return false
	}
	return l.ExpirationDate.Before(asOf)
}
