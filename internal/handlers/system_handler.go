package handlers

import (
	"context"
	"net/http"
	"time"

	"rentflow/pkg/errors"
	"rentflow/pkg/queue"
	"rentflow/pkg/response"
	"rentflow/pkg/version"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SystemHandler 健康检查
type SystemHandler struct {
	db    *gorm.DB
	queue *queue.RedisQueue
}

func NewSystemHandler(db *gorm.DB, q *queue.RedisQueue) *SystemHandler {
	return &SystemHandler{db: db, queue: q}
}

// Health 检查数据库和Redis，数据库不可用时返回 503
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	components := gin.H{"database": "ok"}
	status := "ok"

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		components["database"] = "unavailable"
		status = "down"
	}

	if h.queue == nil {
		components["redis"] = "disabled"
	} else if err := h.queue.Ping(ctx); err != nil {
		components["redis"] = "unavailable"
		if status == "ok" {
			status = "degraded"
		}
	} else {
		components["redis"] = "ok"
	}

	data := gin.H{
		"status":     status,
		"timestamp":  time.Now(),
		"service":    "rentflow",
		"version":    version.Get(),
		"components": components,
	}
	if status == "down" {
		c.JSON(http.StatusServiceUnavailable, response.Response{
			Code:    http.StatusServiceUnavailable,
			Message: "服务不可用",
			Data:    data,
		})
		return
	}
	c.JSON(http.StatusOK, response.Response{Code: errors.CodeSuccess, Message: "success", Data: data})
}

// Ping 存活探针
func (h *SystemHandler) Ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
