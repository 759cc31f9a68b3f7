package handlers

import (
	"rentflow/internal/services"
	"rentflow/pkg/logger"
	"rentflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WebhookHandler 身份提供方回调
type WebhookHandler struct {
	identity *services.IdentityService
}

func NewWebhookHandler(identity *services.IdentityService) *WebhookHandler {
	return &WebhookHandler{identity: identity}
}

// Clerk 处理 user.created / user.updated / user.deleted
func (h *WebhookHandler) Clerk(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "读取请求体失败")
		return
	}

	event, err := services.ParseClerkEvent(body)
	if err != nil {
		response.FromError(c, err)
		return
	}

	user, err := h.identity.HandleEvent(c.Request.Context(), event)
	if err != nil {
		response.FromError(c, err)
		return
	}

	fields := logrus.Fields{"type": event.Type, "external_id": event.User.ExternalID}
	data := gin.H{"received": true, "type": event.Type}
	if user != nil {
		fields["user_id"] = user.ID
		data["user_id"] = user.ID
		data["role"] = user.Role
	}
	logger.GetLogger().WithFields(fields).Info("身份事件已处理")

	response.Success(c, data)
}
