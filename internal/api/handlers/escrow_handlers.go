package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/escrow-service/escrow_service/internal/domain/services/funding"
	"github.com/escrow-service/escrow_service/pkg/logger"
)

// EscrowHandlers exposes escrow funding state.
type EscrowHandlers struct {
	service *funding.Service
	logger  *logger.Logger
}

// NewEscrowHandlers creates new escrow handlers
func NewEscrowHandlers(service *funding.Service, log *logger.Logger) *EscrowHandlers {
	return &EscrowHandlers{
		service: service,
		logger:  log,
	}
}

// GetBalances handles GET /escrow/balances. Served from the cached funding
// snapshot; the frontend polls this to decide which tokens to offer.
func (h *EscrowHandlers) GetBalances(c *gin.Context) {
	snapshot, err := h.service.CachedSnapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("Funding snapshot unavailable",
			"request_id", getRequestID(c),
			"error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
