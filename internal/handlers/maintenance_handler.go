package handlers

import (
	"rentflow/internal/middleware"
	"rentflow/internal/models"
	"rentflow/internal/services"
	"rentflow/pkg/pagination"
	"rentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaintenanceHandler 维修请求处理器
type MaintenanceHandler struct {
	maintenance *services.MaintenanceService
}

func NewMaintenanceHandler(maintenance *services.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance}
}

// Create 提交维修请求
func (h *MaintenanceHandler) Create(c *gin.Context) {
	var req models.CreateMaintenanceRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.maintenance.Create(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, item)
}

// List 维修请求列表
func (h *MaintenanceHandler) List(c *gin.Context) {
	unitID, ok := queryUint(c, "unit_id")
	if !ok {
		return
	}
	filter := services.MaintenanceFilter{Status: c.Query("status"), UnitID: unitID}
	page := pagination.ParsePageParams(c)
	items, total, err := h.maintenance.List(c.Request.Context(), middleware.CurrentActor(c), filter, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithPage(c, items, pagination.NewPageInfo(page.Page, page.PageSize, total))
}

// Get 维修请求详情
func (h *MaintenanceHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	item, err := h.maintenance.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, item)
}

// UpdateStatus 更新维修状态
func (h *MaintenanceHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateMaintenanceStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.maintenance.UpdateStatus(c.Request.Context(), middleware.CurrentActor(c), id, req.Status)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, item)
}
