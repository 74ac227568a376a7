package diet

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nutriplan/nutriplan-api/internal/handler"
	"github.com/nutriplan/nutriplan-api/internal/middleware"
	"github.com/nutriplan/nutriplan-api/internal/model"
	"github.com/nutriplan/nutriplan-api/internal/service/diet"
	patientsvc "github.com/nutriplan/nutriplan-api/internal/service/patient"
)

type Handler struct {
	service  diet.Servicer
	patients patientsvc.Servicer
}

func NewHandler(service diet.Servicer, patients patientsvc.Servicer) *Handler {
	return &Handler{service: service, patients: patients}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	diets := r.Group("/diets")
	{
		diets.POST("", h.CreateDiet)
		diets.GET("/:id", h.GetDiet)
		diets.PUT("/:id", h.UpdateDiet)
		diets.POST("/:id/activate", h.ActivateDiet)
		diets.DELETE("/:id", h.DeleteDiet)

		diets.POST("/:id/meals", h.AddMeal)
	}
	r.GET("/patients/:id/diets", h.ListPatientDiets)
	r.PUT("/meals/:id", h.UpdateMeal)
	r.DELETE("/meals/:id", h.DeleteMeal)
	r.POST("/meals/:id/food-items", h.AddFoodItem)
	r.DELETE("/food-items/:id", h.DeleteFoodItem)
}

// RegisterPatientRoutes wires the patient-facing diet reads.
func (h *Handler) RegisterPatientRoutes(r *gin.RouterGroup) {
	r.GET("/me/diets", h.ListOwnDiets)
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

func (h *Handler) CreateDiet(c *gin.Context) {
	nutritionistID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid caller identity"))
		return
	}

	var req model.CreateDietRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	d, err := h.service.Create(c.Request.Context(), nutritionistID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"diet": d})
}

func (h *Handler) GetDiet(c *gin.Context) {
	nutritionistID, id, ok := caller(c, "diet")
	if !ok {
		return
	}

	d, err := h.service.Get(c.Request.Context(), nutritionistID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diet": d})
}

func (h *Handler) ListPatientDiets(c *gin.Context) {
	nutritionistID, patientID, ok := caller(c, "patient")
	if !ok {
		return
	}

	diets, err := h.service.ListByPatient(c.Request.Context(), nutritionistID, patientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diets": diets})
}

func (h *Handler) UpdateDiet(c *gin.Context) {
	nutritionistID, id, ok := caller(c, "diet")
	if !ok {
		return
	}

	var req model.UpdateDietRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	d, err := h.service.Update(c.Request.Context(), nutritionistID, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diet": d})
}

func (h *Handler) ActivateDiet(c *gin.Context) {
	nutritionistID, id, ok := caller(c, "diet")
	if !ok {
		return
	}

	if err := h.service.Activate(c.Request.Context(), nutritionistID, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Diet activated"})
}

func (h *Handler) DeleteDiet(c *gin.Context) {
	nutritionistID, id, ok := caller(c, "diet")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), nutritionistID, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Diet deleted"})
}

func (h *Handler) AddMeal(c *gin.Context) {
	nutritionistID, dietID, ok := caller(c, "diet")
	if !ok {
		return
	}

	var req model.CreateMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	meal, err := h.service.AddMeal(c.Request.Context(), nutritionistID, dietID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"meal": meal})
}

func (h *Handler) UpdateMeal(c *gin.Context) {
	nutritionistID, id, ok := caller(c, "meal")
	if !ok {
		return
	}

	var req model.UpdateMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.UpdateMeal(c.Request.Context(), nutritionistID, id, &req); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Meal updated"})
}

func (h *Handler) DeleteMeal(c *gin.Context) {
	nutritionistID, id, ok := caller(c, "meal")
	if !ok {
		return
	}

	if err := h.service.DeleteMeal(c.Request.Context(), nutritionistID, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Meal deleted"})
}

func (h *Handler) AddFoodItem(c *gin.Context) {
	nutritionistID, mealID, ok := caller(c, "meal")
	if !ok {
		return
	}

	var req model.CreateFoodItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	item, err := h.service.AddFoodItem(c.Request.Context(), nutritionistID, mealID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"food_item": item})
}

func (h *Handler) DeleteFoodItem(c *gin.Context) {
	nutritionistID, id, ok := caller(c, "food item")
	if !ok {
		return
	}

	if err := h.service.DeleteFoodItem(c.Request.Context(), nutritionistID, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Food item deleted"})
}

// ListOwnDiets returns the diets of the patient profile linked to the caller.
// The patient's own nutritionist id satisfies the ownership check.
func (h *Handler) ListOwnDiets(c *gin.Context) {
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

	diets, err := h.service.ListByPatient(c.Request.Context(), p.NutritionistID, p.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diets": diets})
}
