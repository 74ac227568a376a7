package provision

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nutriplan/nutriplan-api/internal/handler"
	"github.com/nutriplan/nutriplan-api/internal/model"
	"github.com/nutriplan/nutriplan-api/internal/service/provision"
	"github.com/nutriplan/nutriplan-api/pkg/metrics"
)

type Handler struct {
	service provision.Servicer
	metrics *metrics.Metrics
}

func NewHandler(service provision.Servicer, m *metrics.Metrics) *Handler {
	return &Handler{service: service, metrics: m}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("/provision", h.ProvisionPatient)
		patients.POST("/:id/resend-invite", h.ResendInvite)
	}
}

// ProvisionPatient runs the create-account / insert-record / send-invite
// workflow. Validation failures are 400; any downstream failure is 500 with
// the stage-tagged message passed through verbatim.
func (h *Handler) ProvisionPatient(c *gin.Context) {
	var req model.ProvisionPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if h.metrics != nil {
		h.metrics.ProvisioningAttempts.Inc()
		timer := prometheus.NewTimer(h.metrics.ProvisioningLatency)
		defer timer.ObserveDuration()
	}

	patient, err := h.service.ProvisionPatient(c.Request.Context(), &req)
	if err != nil {
		var verr *provision.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(verr.Error()))
			return
		}
		var perr *provision.ProvisioningError
		if errors.As(err, &perr) && h.metrics != nil {
			h.metrics.ProvisioningFailures.WithLabelValues(string(perr.Stage)).Inc()
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	if h.metrics != nil {
		h.metrics.ProvisioningCompleted.Inc()
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Patient created successfully",
		"patient": patient,
	})
}

func (h *Handler) ResendInvite(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient id"))
		return
	}

	if err := h.service.ResendInvite(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invitation sent"})
}
