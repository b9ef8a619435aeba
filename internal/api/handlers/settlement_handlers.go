package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
	"github.com/escrow-service/escrow_service/internal/domain/services/settlement"
	"github.com/escrow-service/escrow_service/pkg/logger"
)

// SettlementHandlers exposes the payout and withdrawal endpoints.
type SettlementHandlers struct {
	service *settlement.Service
	logger  *logger.Logger
}

// NewSettlementHandlers creates new settlement handlers
func NewSettlementHandlers(service *settlement.Service, log *logger.Logger) *SettlementHandlers {
	return &SettlementHandlers{
		service: service,
		logger:  log,
	}
}

// Withdraw handles POST /payout/withdraw. A confirmation timeout answers
// 202 with the transaction hash: the transfer was submitted and the caller
// can poll the transaction endpoint for the final state.
func (h *SettlementHandlers) Withdraw(c *gin.Context) {
	var req entities.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	resp, err := h.service.Withdraw(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, domainerrors.ErrConfirmationTimeout) && resp != nil {
			c.JSON(http.StatusAccepted, resp)
			return
		}
		h.logger.Warn("Withdrawal rejected",
			"request_id", getRequestID(c),
			"wallet", req.PlayerAddress,
			"error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Payout handles POST /payout.
func (h *SettlementHandlers) Payout(c *gin.Context) {
	var req entities.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	resp, err := h.service.Payout(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("Payout rejected",
			"request_id", getRequestID(c),
			"game_id", req.GameID,
			"error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetTransaction handles GET /transactions/:correlationId.
func (h *SettlementHandlers) GetTransaction(c *gin.Context) {
	correlationID := c.Param("correlationId")
	if correlationID == "" {
		respondBadRequest(c, "correlation id is required")
		return
	}

	record, err := h.service.GetRecord(c.Request.Context(), correlationID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			respondNotFound(c, "transaction not found")
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
