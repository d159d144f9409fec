package engine

import (
	"github.com/gin-gonic/gin"
	"github.com/goldpack/exchange-core/internal/auth"
	"github.com/goldpack/exchange-core/internal/command"
	"github.com/goldpack/exchange-core/pkg/response"
)

// messageRequest is the transport layer's view of one user message.
type messageRequest struct {
	MessageID int64  `json:"message_id" binding:"required"`
	Text      string `json:"text" binding:"required"`
	Reply     *struct {
		MessageID int64  `json:"message_id"`
		TraderID  int64  `json:"trader_id"`
		Text      string `json:"text"`
	} `json:"reply,omitempty"`
}

// GinHandlers contains HTTP handlers for the message endpoint.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// HandleMessageHandler handles POST requests relaying one user message.
// Requires a valid JWT token; the trader identity comes from its claims.
func (h *GinHandlers) HandleMessageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := c.Get("claims")
		if !exists {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}
		traderID := auth.GetTraderID(claims)
		if traderID == 0 {
			response.Unauthorized(c, "Invalid trader ID in token")
			return
		}

		var req messageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		var reply *command.ReplyTarget
		if req.Reply != nil {
			reply = &command.ReplyTarget{
				MessageID: req.Reply.MessageID,
				TraderID:  req.Reply.TraderID,
				Text:      req.Reply.Text,
			}
		}

		directives := h.service.Handle(traderID, req.MessageID, req.Text, reply)
		response.Success(c, directives)
	}
}
