// Package licensees creates and edits licensee records and their reference
// data. Status changes are not handled here; they go through the lifecycle
// guard.
package licensees

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/clock"
	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Details holds the editable, non-status fields of a licensee.
type Details struct {
	FirstName      string     `json:"first_name" validate:"required,max=50"`
	LastName       string     `json:"last_name" validate:"required,max=50"`
	Email          string     `json:"email" validate:"required,email,max=254"`
	LicenseNumber  string     `json:"license_number" validate:"required,max=50"`
	LicenseTypeID  int64      `json:"license_type_id" validate:"required,gt=0"`
	OfficeID       int64      `json:"office_id" validate:"required,gt=0"`
	IssueDate      *time.Time `json:"issue_date,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

// NewLicensee is the input for creating a licensee.
type NewLicensee struct {
	Details
	Status models.LicenseeStatus `json:"status" validate:"required,oneof=inactive active"`
}

// ValidationError lists field problems keyed by the field's JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Registry manages licensees, offices, and license types.
type Registry struct {
	store    store.Store
	clock    clock.Clock
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewRegistry creates a new Registry.
func NewRegistry(s store.Store, clk clock.Clock, logger zerolog.Logger) *Registry {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Registry{
		store:    s,
		clock:    clk,
		validate: v,
		logger:   logger.With().Str("component", "licensee_registry").Logger(),
	}
}

func (r *Registry) check(v any) *ValidationError {
	verr := &ValidationError{}
	err := r.validate.Struct(v)
	if err == nil {
		return verr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add("_", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		verr.add(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func normalizeDates(d *Details) {
	if d.IssueDate != nil {
		day := clock.DateOf(*d.IssueDate)
		d.IssueDate = &day
	}
	if d.ExpirationDate != nil {
		day := clock.DateOf(*d.ExpirationDate)
		d.ExpirationDate = &day
	}
}

func checkDates(d Details, verr *ValidationError) {
	if d.IssueDate != nil && d.ExpirationDate != nil && d.ExpirationDate.Before(*d.IssueDate) {
		verr.add("expiration_date", "must not be before the issue date")
	}
}

// checkReferences verifies the license type exists and, when requireActive
// is set, that the office exists and is active.
func checkReferences(ctx context.Context, tx store.Tx, d Details, requireActive bool, verr *ValidationError) error {
	if _, err := tx.GetLicenseType(ctx, d.LicenseTypeID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		verr.add("license_type_id", "does not exist")
	}
	if !requireActive {
		return nil
	}
	office, err := tx.GetOfficeForUpdate(ctx, d.OfficeID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		verr.add("office_id", "must reference an active office")
		return nil
	}
	if !office.Active {
		verr.add("office_id", "must reference an active office")
	}
	return nil
}

// Create adds a licensee. New licensees start active or inactive, never
// expired, and may not carry an expiration date in the past.
func (r *Registry) Create(ctx context.Context, in NewLicensee) (*models.Licensee, error) {
	normalizeDates(&in.Details)

	l := models.NewLicensee(in.FirstName, in.LastName, in.Email, in.LicenseNumber, in.LicenseTypeID, in.OfficeID, in.Status)
	l.IssueDate = in.IssueDate
	l.ExpirationDate = in.ExpirationDate
	l.CreatedAt = r.clock.Now().UTC()

	verr := r.check(in)
	checkDates(in.Details, verr)
	if l.ExpiredAsOf(clock.Today(r.clock)) {
		verr.add("expiration_date", "must be today or later")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		if err := checkReferences(ctx, tx, in.Details, true, verr); err != nil {
			return err
		}
		if err := verr.orNil(); err != nil {
			return err
		}
		return tx.CreateLicensee(ctx, l)
	})
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, fmt.Errorf("create licensee: %w", err)
	}

	r.logger.Info().
		Int64("licensee_id", l.ID).
		Int64("office_id", l.OfficeID).
		Str("status", string(l.Status)).
		Msg("licensee created")
	return l, nil
}

// UpdateDetails edits the non-status fields of a licensee whose stored
// version equals version. A stale version yields store.ErrConflict. Moving
// the licensee to another office requires that office to be active.
func (r *Registry) UpdateDetails(ctx context.Context, id, version int64, d Details) (*models.Licensee, error) {
	normalizeDates(&d)

	verr := r.check(d)
	checkDates(d, verr)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	var updated *models.Licensee
	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		l, err := tx.GetLicensee(ctx, id)
		if err != nil {
			return err
		}
		if l.Version != version {
			return fmt.Errorf("licensee %d at version %d, edit based on %d: %w", id, l.Version, version, store.ErrConflict)
		}

		if err := checkReferences(ctx, tx, d, d.OfficeID != l.OfficeID, verr); err != nil {
			return err
		}
		if err := verr.orNil(); err != nil {
			return err
		}

		now := r.clock.Now().UTC()
		l.FirstName = d.FirstName
		l.LastName = d.LastName
		l.Email = d.Email
		l.LicenseNumber = d.LicenseNumber
		l.LicenseTypeID = d.LicenseTypeID
		l.OfficeID = d.OfficeID
		l.IssueDate = d.IssueDate
		l.ExpirationDate = d.ExpirationDate
		l.UpdatedAt = &now

		if err := tx.UpdateLicenseeDetails(ctx, l); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, fmt.Errorf("update licensee %d: %w", id, err)
	}

	r.logger.Info().Int64("licensee_id", id).Int64("version", updated.Version).Msg("licensee updated")
	return updated, nil
}

// CreateLicenseType adds a license type.
func (r *Registry) CreateLicenseType(ctx context.Context, name string) (*models.LicenseType, error) {
	lt := &models.LicenseType{Name: strings.TrimSpace(name)}
	if err := r.check(lt).orNil(); err != nil {
		return nil, err
	}

	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateLicenseType(ctx, lt)
	})
	if err != nil {
		return nil, fmt.Errorf("create license type: %w", err)
	}
	return lt, nil
}

// ListLicenseTypes returns all license types ordered by name.
func (r *Registry) ListLicenseTypes(ctx context.Context) ([]*models.LicenseType, error) {
	return r.store.ListLicenseTypes(ctx)
}

// CreateOffice adds an active office.
func (r *Registry) CreateOffice(ctx context.Context, name, city, state string) (*models.Office, error) {
	o := models.NewOffice(strings.TrimSpace(name), strings.TrimSpace(city), strings.TrimSpace(state))
	if err := r.check(o).orNil(); err != nil {
		return nil, err
	}

	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateOffice(ctx, o)
	})
	if err != nil {
		return nil, fmt.Errorf("create office: %w", err)
	}

	r.logger.Info().Int64("office_id", o.ID).Str("name", o.Name).Msg("office created")
	return o, nil
}
