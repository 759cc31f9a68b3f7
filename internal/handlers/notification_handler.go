package handlers

import (
	"rentflow/internal/middleware"
	"rentflow/internal/models"
	"rentflow/internal/services"
	"rentflow/pkg/pagination"
	"rentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// NotificationHandler 站内通知
type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// Send 给指定用户发通知，可指定模板和延迟发送时间
func (h *NotificationHandler) Send(c *gin.Context) {
	var req models.CreateNotificationRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.notifications.Send(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, result)
}

// List 当前用户的通知，unread=true 只看未读
func (h *NotificationHandler) List(c *gin.Context) {
	page := pagination.ParsePageParams(c)
	items, total, err := h.notifications.List(c.Request.Context(), middleware.CurrentActor(c).UserID, c.Query("unread") == "true", page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithPage(c, items, pagination.NewPageInfo(page.Page, page.PageSize, total))
}

// MarkRead 标记已读，all=true 时标记全部
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req models.MarkNotificationsRequest
	if !bindJSON(c, &req) {
		return
	}

	userID := middleware.CurrentActor(c).UserID
	var (
		updated int64
		err     error
	)
	if req.All {
		updated, err = h.notifications.MarkAllRead(c.Request.Context(), userID)
	} else {
		updated, err = h.notifications.MarkRead(c.Request.Context(), userID, req.IDs)
	}
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": updated})
}

// UnreadCount 未读数量
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), middleware.CurrentActor(c).UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"unread": count})
}
