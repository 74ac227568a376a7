package upload

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nutriplan/nutriplan-api/internal/handler"
	"github.com/nutriplan/nutriplan-api/internal/middleware"
	"github.com/nutriplan/nutriplan-api/internal/service/upload"
)

type Handler struct {
	service upload.Servicer
}

func NewHandler(service upload.Servicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/diets/:id/pdf-upload", h.RequestDietPDFUpload)
	r.POST("/progress/:id/photo-upload", h.RequestProgressPhotoUpload)
	r.GET("/uploads/download-url", h.DownloadURL)
}

type uploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
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

func (h *Handler) RequestDietPDFUpload(c *gin.Context) {
	nutritionistID, dietID, ok := caller(c, "diet")
	if !ok {
		return
	}

	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	ticket, err := h.service.RequestDietPDFUpload(c.Request.Context(), nutritionistID, dietID, req.ContentType)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upload": ticket})
}

func (h *Handler) RequestProgressPhotoUpload(c *gin.Context) {
	nutritionistID, recordID, ok := caller(c, "progress record")
	if !ok {
		return
	}

	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	ticket, err := h.service.RequestProgressPhotoUpload(c.Request.Context(), nutritionistID, recordID, req.ContentType)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upload": ticket})
}

func (h *Handler) DownloadURL(c *gin.Context) {
	nutritionistID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid caller identity"))
		return
	}

	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("missing object key"))
		return
	}

	url, err := h.service.DownloadURL(c.Request.Context(), nutritionistID, key)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
