package ledger

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goldpack/exchange-core/internal/types"
	"github.com/goldpack/exchange-core/pkg/response"
)

// GinHandlers contains HTTP handlers for trader provisioning.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

type createTraderRequest struct {
	TraderID      int64  `json:"trader_id" binding:"required"`
	Username      string `json:"username" binding:"required"`
	CapacityTotal int64  `json:"capacity_total" binding:"gte=0"`
}

// CreateTraderHandler handles POST requests registering a trader ledger row.
func (h *GinHandlers) CreateTraderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTraderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		trader := &types.Trader{
			TraderID:      req.TraderID,
			Username:      req.Username,
			CapacityTotal: req.CapacityTotal,
		}
		if err := h.service.RegisterTrader(trader); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, trader)
	}
}

// GetTraderHandler handles GET requests for one trader's ledger state.
func (h *GinHandlers) GetTraderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		traderID, err := strconv.ParseInt(c.Param("trader_id"), 10, 64)
		if err != nil {
			response.BadRequest(c, "Trader ID must be numeric")
			return
		}

		trader, err := h.service.GetTrader(traderID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if trader == nil {
			response.NotFound(c, "Trader not found")
			return
		}
		response.Success(c, trader)
	}
}
