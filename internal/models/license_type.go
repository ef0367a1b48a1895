package models

// LicenseType is reference data naming a kind of license.
type LicenseType struct {
	ID   int64  `json:"id"`
	Name string `json:"name" validate:"required,max=50"`
}
