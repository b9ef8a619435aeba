package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
	"github.com/escrow-service/escrow_service/internal/domain/services/stats"
	"github.com/escrow-service/escrow_service/pkg/logger"
)

// StatsHandlers exposes player stats, referral, and leaderboard endpoints.
type StatsHandlers struct {
	service *stats.Service
	logger  *logger.Logger
}

// NewStatsHandlers creates new stats handlers
func NewStatsHandlers(service *stats.Service, log *logger.Logger) *StatsHandlers {
	return &StatsHandlers{
		service: service,
		logger:  log,
	}
}

// ApplyDeltas handles POST /stats.
func (h *StatsHandlers) ApplyDeltas(c *gin.Context) {
	var req entities.StatsDeltaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	player, err := h.service.ApplyDeltas(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, player)
}

// GetStats handles GET /stats/:address.
func (h *StatsHandlers) GetStats(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		respondBadRequest(c, "wallet address is required")
		return
	}

	player, err := h.service.GetStats(c.Request.Context(), address)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, player)
}

// ApplyReferral handles POST /referral.
func (h *StatsHandlers) ApplyReferral(c *gin.Context) {
	var req entities.ReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	if err := h.service.ApplyReferral(c.Request.Context(), &req); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "referral applied"})
}

// Leaderboard handles GET /leaderboard.
func (h *StatsHandlers) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))

	players, err := h.service.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"players": players})
}

// PlayerTransactions handles GET /stats/:address/transactions.
func (h *StatsHandlers) PlayerTransactions(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		respondBadRequest(c, "wallet address is required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := h.service.PlayerTransactions(c.Request.Context(), address, limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": records})
}
