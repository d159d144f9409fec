package pricing

import (
	"github.com/gin-gonic/gin"
	"github.com/goldpack/exchange-core/pkg/response"
)

// GinHandlers contains HTTP handlers for the price-band feed.
type GinHandlers struct {
	provider *Provider
	source   *BoundRateSource
}

func NewGinHandlers(provider *Provider, source *BoundRateSource) *GinHandlers {
	return &GinHandlers{provider: provider, source: source}
}

type setPriceRequest struct {
	Price int64 `json:"price" binding:"required,gt=0"`
}

// SetPriceHandler handles POST requests from the market-data feed updating
// the reference price; the band snapshot refreshes immediately.
func (h *GinHandlers) SetPriceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setPriceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		h.source.SetPrice(req.Price)
		if err := h.provider.Refresh(c.Request.Context()); err != nil {
			response.InternalError(c, "Failed to refresh price band")
			return
		}
		response.Success(c, h.provider.Snapshot())
	}
}

// GetBandHandler handles GET requests for the current band snapshot.
func (h *GinHandlers) GetBandHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.provider.Snapshot())
	}
}
