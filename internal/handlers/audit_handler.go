package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/primatransit/tour-audit-backend/internal/database"
	"github.com/primatransit/tour-audit-backend/internal/middleware"
	"github.com/primatransit/tour-audit-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// AuditRunner runs one audit over the tour graph
type AuditRunner interface {
	Run() (*services.AuditResult, error)
}

// AuditHandler handles HTTP requests for tour audits
type AuditHandler struct {
	service AuditRunner
	cronSvc *services.CronService
	logger  *logrus.Logger
}

// NewAuditHandler creates a new audit handler. cronSvc may be nil when the
// process runs without scheduled audits.
func NewAuditHandler(service AuditRunner, cronSvc *services.CronService, logger *logrus.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		cronSvc: cronSvc,
		logger:  logger,
	}
}

// RunAudit handles POST /api/v1/admin/audit/run
// @Summary Run a tour consistency audit
// @Description Loads the full tour graph and runs every consistency check, returning all findings
// @Tags Audit
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Failure 503 {object} map[string]interface{} "Tour data source unavailable"
// @Security Bearer
// @Router /api/v1/admin/audit/run [post]
func (h *AuditHandler) RunAudit(c *gin.Context) {
	if opCtx, exists := middleware.GetOperatorContext(c); exists {
		h.logger.WithFields(logrus.Fields{
			"operator": opCtx.Operator,
			"ip":       c.ClientIP(),
		}).Info("Audit run triggered via API")
	}

	result, err := h.service.Run()
	if err != nil {
		if errors.Is(err, database.ErrDataUnavailable) {
			h.logger.WithError(err).Error("Audit aborted - tour data source unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "error",
				"message": "Tour data source is unavailable",
				"error":   err.Error(),
			})
			return
		}

		h.logger.WithError(err).Error("Audit run failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to run tour audit. Please try again later.",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"run_id":   result.RunID,
		"tours":    result.TourCount,
		"summary":  result.Summary,
		"findings": result.Findings,
	})
}

// GetAuditStatus handles GET /api/v1/admin/audit/status
// @Summary Get scheduled audit status
// @Description Returns the state of the scheduled audit jobs
// @Tags Audit
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security Bearer
// @Router /api/v1/admin/audit/status [get]
func (h *AuditHandler) GetAuditStatus(c *gin.Context) {
	if h.cronSvc == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"cron":    gin.H{"running": false},
			"message": "Scheduled audits are disabled",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"cron":   h.cronSvc.GetJobStatus(),
	})
}

// HealthCheck handles GET /health
// @Summary Audit service health check
// @Description Check if the audit service is up
// @Tags Audit
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *AuditHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "tour-audit",
		"message": "Tour audit service is operational",
	})
}
