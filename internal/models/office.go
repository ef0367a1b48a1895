package models

// Office represents a physical location licensees are assigned to.
type Office struct {
	ID     int64  `json:"id"`
	Name   string `json:"name" validate:"required,max=50"`
	City   string `json:"city" validate:"required,max=50"`
	State  string `json:"state" validate:"required,max=50"`
	Active bool   `json:"active"`
}

// NewOffice creates a new active Office.
func NewOffice(name, city, state string) *Office {
	return &Office{
		Name:   name,
		City:   city,
		State:  state,
		Active: true,
	}
}
