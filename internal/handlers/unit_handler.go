package handlers

import (
	"rentflow/internal/middleware"
	"rentflow/internal/models"
	"rentflow/internal/services"
	"rentflow/pkg/pagination"
	"rentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// UnitHandler 单元处理器
type UnitHandler struct {
	units *services.UnitService
}

func NewUnitHandler(units *services.UnitService) *UnitHandler {
	return &UnitHandler{units: units}
}

// List 名下全部单元，可按物业和状态过滤
func (h *UnitHandler) List(c *gin.Context) {
	propertyID, ok := queryUint(c, "property_id")
	if !ok {
		return
	}
	filter := services.UnitFilter{PropertyID: propertyID, Status: c.Query("status")}
	page := pagination.ParsePageParams(c)
	units, total, err := h.units.List(c.Request.Context(), middleware.CurrentActor(c), filter, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithPage(c, units, pagination.NewPageInfo(page.Page, page.PageSize, total))
}

// Vacant 可分配的空置单元
func (h *UnitHandler) Vacant(c *gin.Context) {
	units, err := h.units.ListVacant(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, units)
}

// Get 单元详情
func (h *UnitHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	unit, err := h.units.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, unit)
}

// Update 更新单元，占用状态只能由租约变更
func (h *UnitHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateUnitRequest
	if !bindJSON(c, &req) {
		return
	}
	unit, err := h.units.Update(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, unit)
}

// Delete 删除单元
func (h *UnitHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.units.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "单元已删除", nil)
}
