package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/alerts"
	"github.com/MacJediWizard/licensee-manager/internal/api/middleware"
	"github.com/MacJediWizard/licensee-manager/internal/lifecycle"
	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/offices"
	"github.com/MacJediWizard/licensee-manager/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LicensingService defines the lifecycle operations exposed over HTTP.
type LicensingService interface {
	Today() time.Time
	DashboardAlerts(ctx context.Context, asOf time.Time, horizonDays int) (alerts.Summary, error)
	GetAuditTrail(ctx context.Context, licenseeID int64) ([]*models.StatusAudit, error)
	TransitionLicenseeStatus(ctx context.Context, licenseeID int64, status models.LicenseeStatus, isManual bool) (lifecycle.TransitionResult, error)
	DeactivateOffice(ctx context.Context, officeID int64, replacementID *int64) (offices.DeactivationResult, error)
	OfficeLicensees(ctx context.Context, officeID int64) ([]*models.Licensee, error)
	ReplacementCandidates(ctx context.Context, officeID int64) ([]*models.Office, error)
}

// LicensingHandler handles licensee lifecycle and office endpoints.
type LicensingHandler struct {
	service LicensingService
	logger  zerolog.Logger
}

// NewLicensingHandler creates a new LicensingHandler.
func NewLicensingHandler(service LicensingService, logger zerolog.Logger) *LicensingHandler {
	return &LicensingHandler{
		service: service,
		logger:  logger.With().Str("component", "licensing_handler").Logger(),
	}
}

// RegisterRoutes registers the lifecycle routes on the given router group.
func (h *LicensingHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/alerts", h.Alerts)

	licensees := r.Group("/licensees")
	{
		licensees.GET("/:id/audits", h.AuditTrail)
		licensees.PUT("/:id/status", h.UpdateStatus)
	}

	officeRoutes := r.Group("/offices")
	{
		officeRoutes.GET("/:id/licensees", h.OfficeLicensees)
		officeRoutes.GET("/:id/replacements", h.Replacements)
		officeRoutes.POST("/:id/deactivate", h.Deactivate)
	}
}

// UpdateStatusRequest is the request body for a manual status change.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// DeactivateOfficeRequest is the request body for an office deactivation.
type DeactivateOfficeRequest struct {
	ReplacementOfficeID *int64 `json:"replacement_office_id,omitempty"`
}

// Alerts returns the expired and expiring-soon counts.
// GET /api/v1/alerts?horizon_days=30
func (h *LicensingHandler) Alerts(c *gin.Context) {
	horizon := lifecycle.DefaultHorizonDays
	if raw := c.Query("horizon_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "horizon_days must be a positive integer"})
			return
		}
		horizon = n
	}

	summary, err := h.service.DashboardAlerts(c.Request.Context(), h.service.Today(), horizon)
	if err != nil {
		h.logger.Error().Err(err).Int("horizon_days", horizon).Msg("failed to compute alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute alerts"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// AuditTrail returns the status history of a licensee, oldest first.
// GET /api/v1/licensees/:id/audits
func (h *LicensingHandler) AuditTrail(c *gin.Context) {
	id, ok := parseID(c, "invalid licensee ID")
	if !ok {
		return
	}

	trail, err := h.service.GetAuditTrail(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "licensee not found"})
			return
		}
		h.logger.Error().Err(err).Int64("licensee_id", id).Msg("failed to load audit trail")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit trail"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"audits": trail})
}

// UpdateStatus applies a manual status change.
// PUT /api/v1/licensees/:id/status
func (h *LicensingHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "invalid licensee ID")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	status, err := models.ParseLicenseeStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.TransitionLicenseeStatus(c.Request.Context(), id, status, true)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "licensee was modified concurrently"})
			return
		}
		h.logger.Error().Err(err).Int64("licensee_id", id).Msg("failed to update status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}

	if result.Reason != "" {
		middleware.SetRejection(c, string(result.Reason))
	}
	switch result.Reason {
	case "":
		c.JSON(http.StatusOK, result)
	case lifecycle.RejectionNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": result.Reason.Message(), "reason": result.Reason})
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": result.Reason.Message(), "reason": result.Reason})
	}
}

// OfficeLicensees lists the licensees assigned to an office.
// GET /api/v1/offices/:id/licensees
func (h *LicensingHandler) OfficeLicensees(c *gin.Context) {
	id, ok := parseID(c, "invalid office ID")
	if !ok {
		return
	}

	roster, err := h.service.OfficeLicensees(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "office not found"})
			return
		}
		h.logger.Error().Err(err).Int64("office_id", id).Msg("failed to list office licensees")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list office licensees"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"licensees": roster})
}

// Replacements lists the offices a deactivated office's licensees may move to.
// GET /api/v1/offices/:id/replacements
func (h *LicensingHandler) Replacements(c *gin.Context) {
	id, ok := parseID(c, "invalid office ID")
	if !ok {
		return
	}

	candidates, err := h.service.ReplacementCandidates(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "office not found"})
			return
		}
		h.logger.Error().Err(err).Int64("office_id", id).Msg("failed to list replacement offices")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list replacement offices"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"offices": candidates})
}

// Deactivate deactivates an office, optionally reassigning its licensees.
// POST /api/v1/offices/:id/deactivate
func (h *LicensingHandler) Deactivate(c *gin.Context) {
	id, ok := parseID(c, "invalid office ID")
	if !ok {
		return
	}

	var req DeactivateOfficeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
	}

	result, err := h.service.DeactivateOffice(c.Request.Context(), id, req.ReplacementOfficeID)
	if err != nil {
		h.logger.Error().Err(err).Int64("office_id", id).Msg("failed to deactivate office")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate office"})
		return
	}

	if result.Reason != "" {
		middleware.SetRejection(c, string(result.Reason))
	}
	switch result.Reason {
	case "":
		c.JSON(http.StatusOK, result)
	case offices.RejectionNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "office not found", "reason": result.Reason})
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid replacement office", "reason": result.Reason})
	}
}

func parseID(c *gin.Context, msg string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return 0, false
	}
	return id, true
}
