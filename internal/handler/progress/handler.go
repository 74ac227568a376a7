package progress

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nutriplan/nutriplan-api/internal/handler"
	"github.com/nutriplan/nutriplan-api/internal/middleware"
	"github.com/nutriplan/nutriplan-api/internal/model"
	patientsvc "github.com/nutriplan/nutriplan-api/internal/service/patient"
	"github.com/nutriplan/nutriplan-api/internal/service/progress"
)

type Handler struct {
	service  progress.Servicer
	patients patientsvc.Servicer
}

func NewHandler(service progress.Servicer, patients patientsvc.Servicer) *Handler {
	return &Handler{service: service, patients: patients}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/patients/:id/progress", h.CreateRecord)
	r.GET("/patients/:id/progress", h.ListPatientRecords)
	r.GET("/progress/:id", h.GetRecord)
	r.DELETE("/progress/:id", h.DeleteRecord)
}

// RegisterPatientRoutes wires the patient-facing progress reads.
func (h *Handler) RegisterPatientRoutes(r *gin.RouterGroup) {
	r.GET("/me/progress", h.ListOwnRecords)
}

// caller pulls the authenticated nutritionist's id and the :id path param.
func caller(c *gin.Context, resource string) (uuid.UUID, uuid.UUID, bool) {
	nutritionistID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid caller identity"))
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid "+resource+" id"))
		return uuid.Nil, uuid.Nil, false
	}
	return nutritionistID, id, true
}

func (h *Handler) CreateRecord(c *gin.Context) {
	nutritionistID, patientID, ok := caller(c, "patient")
	if !ok {
		return
	}

	var req model.CreateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	record, err := h.service.Create(c.Request.Context(), nutritionistID, patientID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"progress": record})
}

func (h *Handler) ListPatientRecords(c *gin.Context) {
	nutritionistID, patientID, ok := caller(c, "patient")
	if !ok {
		return
	}

	records, err := h.service.ListByPatient(c.Request.Context(), nutritionistID, patientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": records})
}

func (h *Handler) GetRecord(c *gin.Context) {
	nutritionistID, id, ok := caller(c, "progress record")
	if !ok {
		return
	}

	record, err := h.service.Get(c.Request.Context(), nutritionistID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": record})
}

func (h *Handler) DeleteRecord(c *gin.Context) {
	nutritionistID, id, ok := caller(c, "progress record")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), nutritionistID, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Progress record deleted"})
}

// ListOwnRecords returns the records of the patient profile linked to the
// caller. The patient's own nutritionist id satisfies the ownership check.
func (h *Handler) ListOwnRecords(c *gin.Context) {
	authUserID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid caller identity"))
		return
	}

	p, err := h.patients.GetByAuthUser(c.Request.Context(), authUserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	records, err := h.service.ListByPatient(c.Request.Context(), p.NutritionistID, p.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": records})
}
