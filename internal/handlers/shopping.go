package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonnyWalker81/larder/backend/internal/apierror"
	"github.com/JonnyWalker81/larder/backend/internal/lock"
	"github.com/JonnyWalker81/larder/backend/internal/logger"
	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/JonnyWalker81/larder/backend/internal/repository"
	"github.com/JonnyWalker81/larder/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// retryAfterSeconds is sent with 503 responses
const retryAfterSeconds = 30

// ShoppingHandler handles shopping prediction HTTP requests
type ShoppingHandler struct {
	predictionService service.PredictionService
}

// NewShoppingHandler creates a new shopping handler
func NewShoppingHandler(predictionService service.PredictionService) *ShoppingHandler {
	return &ShoppingHandler{
		predictionService: predictionService,
	}
}

// AnalyzeRequest is the optional body of POST /shopping/analyze
type AnalyzeRequest struct {
	ForceRefresh bool `json:"force_refresh"`
}

// AnalyzeResponse wraps the run summary
type AnalyzeResponse struct {
	Status string `json:"status"`
	*models.AnalyzeResult
}

// PredictionsResponse is the body of GET /shopping/predictions
type PredictionsResponse struct {
	Predictions []models.Prediction `json:"predictions"`
	Count       int                 `json:"count"`
}

// GetShoppingList handles GET /api/v1/shopping/list
func (h *ShoppingHandler) GetShoppingList(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	list, err := h.predictionService.GetShoppingList(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "failed to build shopping list")
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetPredictions handles GET /api/v1/shopping/predictions
// Query: urgency=urgent|this_week|later, min_confidence=low|medium|high, limit=1..100
func (h *ShoppingHandler) GetPredictions(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var filter models.PredictionFilter
	var fieldErrors []apierror.FieldError

	if raw := c.Query("urgency"); raw != "" {
		u, valid := models.ParseUrgency(strings.ToLower(raw))
		if valid {
			filter.Urgency = &u
		} else {
			fieldErrors = append(fieldErrors, apierror.FieldError{
				Field:   "urgency",
				Message: "must be one of urgent, this_week, later",
				Code:    "invalid_enum",
			})
		}
	}

	if raw := c.Query("min_confidence"); raw != "" {
		conf, valid := models.ParseConfidence(strings.ToLower(raw))
		if valid {
			filter.MinConfidence = &conf
		} else {
			fieldErrors = append(fieldErrors, apierror.FieldError{
				Field:   "min_confidence",
				Message: "must be one of low, medium, high",
				Code:    "invalid_enum",
			})
		}
	}

	filter.Limit = service.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > service.MaxListLimit {
			fieldErrors = append(fieldErrors, apierror.FieldError{
				Field:   "limit",
				Message: "must be an integer between 1 and " + strconv.Itoa(service.MaxListLimit),
				Code:    "out_of_range",
			})
		} else {
			filter.Limit = limit
		}
	}

	if len(fieldErrors) > 0 {
		apierror.WriteProblem(c, apierror.NewValidationError(apierror.GetRequestID(c), fieldErrors))
		return
	}

	predictions, err := h.predictionService.ListPredictions(c.Request.Context(), userID, filter)
	if err != nil {
		writeServiceError(c, err, "failed to list predictions")
		return
	}

	c.JSON(http.StatusOK, PredictionsResponse{
		Predictions: predictions,
		Count:       len(predictions),
	})
}

// Analyze handles POST /api/v1/shopping/analyze
// The body is optional; an empty body analyzes only stale items.
func (h *ShoppingHandler) Analyze(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req AnalyzeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.WriteProblem(c, apierror.NewBadRequestError(apierror.GetRequestID(c), err.Error(), "Invalid JSON format"))
			return
		}
	}

	result, err := h.predictionService.Analyze(c.Request.Context(), userID, req.ForceRefresh)
	if err != nil {
		writeServiceError(c, err, "analysis failed")
		return
	}

	status := "success"
	if len(result.FailedItems) > 0 {
		status = "partial"
	}

	c.JSON(http.StatusOK, AnalyzeResponse{
		Status:        status,
		AnalyzeResult: result,
	})
}

// GetItemInsight handles GET /api/v1/shopping/insights/:item_name
func (h *ShoppingHandler) GetItemInsight(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	itemName := strings.TrimSpace(c.Param("item_name"))
	if itemName == "" {
		apierror.WriteProblem(c, apierror.NewInvalidParamError(apierror.GetRequestID(c), "item_name", itemName, "is required"))
		return
	}

	insight, err := h.predictionService.GetItemInsight(c.Request.Context(), userID, itemName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierror.WriteProblem(c, apierror.NewNotFoundError(apierror.GetRequestID(c), "Prediction", itemName))
			return
		}
		writeServiceError(c, err, "failed to get item insight")
		return
	}

	c.JSON(http.StatusOK, insight)
}

// GetStatus handles GET /api/v1/shopping/status
func (h *ShoppingHandler) GetStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	status, err := h.predictionService.GetStatus(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "failed to get analysis status")
		return
	}

	c.JSON(http.StatusOK, status)
}

func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		apierror.WriteProblem(c, apierror.NewUnauthorizedError(apierror.GetRequestID(c)))
		return "", false
	}
	return userID, true
}

// writeServiceError maps service errors to problem responses. Details of
// unexpected errors are logged, never returned.
func writeServiceError(c *gin.Context, err error, msg string) {
	requestID := apierror.GetRequestID(c)
	log := logger.Ctx(c.Request.Context())

	switch {
	case errors.Is(err, lock.ErrNotAcquired),
		errors.Is(err, context.DeadlineExceeded):
		log.Warn(msg, logger.Err(err))
		apierror.WriteProblem(c, apierror.NewServiceUnavailableError(requestID, retryAfterSeconds))
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response
		log.Debug(msg, logger.Err(err))
		c.Status(499)
	default:
		log.Error(msg, logger.Err(err))
		apierror.WriteProblem(c, apierror.NewInternalError(requestID))
	}
}
