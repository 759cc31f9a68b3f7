package handlers

import (
	"time"

	"rentflow/internal/middleware"
	"rentflow/internal/models"
	"rentflow/internal/services"
	"rentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// CalendarHandler 日程
type CalendarHandler struct {
	calendar *services.CalendarService
	now      func() time.Time
}

func NewCalendarHandler(calendar *services.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendar: calendar, now: time.Now}
}

// Create 创建日程
func (h *CalendarHandler) Create(c *gin.Context) {
	var req models.CreateCalendarEventRequest
	if !bindJSON(c, &req) {
		return
	}
	event, err := h.calendar.Create(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, event)
}

// List 查询时间范围内的日程，默认当月
func (h *CalendarHandler) List(c *gin.Context) {
	now := h.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	from, ok := queryTime(c, "from", monthStart)
	if !ok {
		return
	}
	to, ok := queryTime(c, "to", from.AddDate(0, 1, 0))
	if !ok {
		return
	}

	events, err := h.calendar.List(c.Request.Context(), middleware.CurrentActor(c), from, to)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, events)
}

// Delete 删除日程
func (h *CalendarHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.calendar.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "日程已删除", nil)
}
