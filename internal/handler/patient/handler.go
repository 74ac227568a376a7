package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nutriplan/nutriplan-api/internal/handler"
	"github.com/nutriplan/nutriplan-api/internal/middleware"
	"github.com/nutriplan/nutriplan-api/internal/model"
	"github.com/nutriplan/nutriplan-api/internal/service/patient"
)

type Handler struct {
	service patient.Servicer
}

func NewHandler(service patient.Servicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires the nutritionist-facing patient endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)
	}
}

// RegisterPatientRoutes wires the patient-facing self-service reads.
func (h *Handler) RegisterPatientRoutes(r *gin.RouterGroup) {
	r.GET("/me/profile", h.GetOwnProfile)
}

func (h *Handler) ListPatients(c *gin.Context) {
	nutritionistID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid caller identity"))
		return
	}

	patients, err := h.service.List(c.Request.Context(), nutritionistID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patients": patients})
}

func (h *Handler) GetPatient(c *gin.Context) {
	nutritionistID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid caller identity"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient id"))
		return
	}

	p, err := h.service.Get(c.Request.Context(), nutritionistID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patient": p})
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	nutritionistID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid caller identity"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient id"))
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	p, err := h.service.Update(c.Request.Context(), nutritionistID, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patient": p})
}

func (h *Handler) DeletePatient(c *gin.Context) {
	nutritionistID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid caller identity"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), nutritionistID, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Patient deleted"})
}

// GetOwnProfile resolves the profile linked to the caller's identity account.
func (h *Handler) GetOwnProfile(c *gin.Context) {
	authUserID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid caller identity"))
		return
	}

	p, err := h.service.GetByAuthUser(c.Request.Context(), authUserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patient": p})
}
