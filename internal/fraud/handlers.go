package fraud

import (
	"errors"
	"net/http"

	"github.com/driftpay/fraudwatch/internal/validation"
	"github.com/gin-gonic/gin"
)

// DefaultListLimit is how many transactions GET /transactions/:userId returns.
const DefaultListLimit = 20

// Handler provides HTTP endpoints for transaction scoring.
type Handler struct {
	service *Service
}

// NewHandler creates a new fraud handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the scoring routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transactions/analyze", h.AnalyzeTransaction)
	r.GET("/transactions/:userId", h.ListTransactions)
	r.GET("/users/:userId/risk-profile", h.GetRiskProfile)
	r.PATCH("/users/:userId/risk-profile", h.UpdateRiskProfile)
}

// AnalyzeTransaction handles POST /v1/transactions/analyze
func (h *Handler) AnalyzeTransaction(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	tx, err := h.service.ScoreTransaction(c.Request.Context(), &req)
	if err != nil {
		var verrs validation.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_failed",
				"message": verrs.Error(),
				"fields":  verrs,
			})
		case errors.Is(err, ErrPersistence):
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to record the transaction",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     tx.ID,
		"amount": tx.Amount,
		"status": tx.Status,
		"risk":   tx.Risk,
	})
}

// ListTransactions handles GET /v1/transactions/:userId
func (h *Handler) ListTransactions(c *gin.Context) {
	userID := c.Param("userId")

	txs, err := h.service.ListRecent(c.Request.Context(), userID, DefaultListLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

// GetRiskProfile handles GET /v1/users/:userId/risk-profile
func (h *Handler) GetRiskProfile(c *gin.Context) {
	userID := c.Param("userId")

	profile, err := h.service.GetRiskProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// UpdateRiskProfile handles PATCH /v1/users/:userId/risk-profile
func (h *Handler) UpdateRiskProfile(c *gin.Context) {
	userID := c.Param("userId")

	var patch RiskProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}

	profile, err := h.service.UpdateRiskProfile(c.Request.Context(), userID, &patch)
	if err != nil {
		var verrs validation.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_failed",
				"message": verrs.Error(),
				"fields":  verrs,
			})
		case errors.Is(err, ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "User not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
