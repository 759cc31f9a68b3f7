package handlers

import (
	"rentflow/internal/middleware"
	"rentflow/internal/models"
	"rentflow/internal/services"
	"rentflow/pkg/pagination"
	"rentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// PropertyHandler 物业与单元
type PropertyHandler struct {
	properties *services.PropertyService
	units      *services.UnitService
}

func NewPropertyHandler(properties *services.PropertyService, units *services.UnitService) *PropertyHandler {
	return &PropertyHandler{
		properties: properties,
		units:      units,
	}
}

// Create 创建物业
func (h *PropertyHandler) Create(c *gin.Context) {
	var req models.CreatePropertyRequest
	if !bindJSON(c, &req) {
		return
	}
	property, err := h.properties.Create(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, property)
}

// List 物业列表
func (h *PropertyHandler) List(c *gin.Context) {
	filter := services.PropertyFilter{
		Status:  c.Query("status"),
		Keyword: c.Query("keyword"),
	}
	page := pagination.ParsePageParams(c)
	properties, total, err := h.properties.List(c.Request.Context(), middleware.CurrentActor(c), filter, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithPage(c, properties, pagination.NewPageInfo(page.Page, page.PageSize, total))
}

// Get 物业详情
func (h *PropertyHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	property, err := h.properties.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, property)
}

// Update 更新物业
func (h *PropertyHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.UpdatePropertyRequest
	if !bindJSON(c, &req) {
		return
	}
	property, err := h.properties.Update(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, property)
}

// Delete 删除物业，存在租约历史时拒绝
func (h *PropertyHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.properties.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "物业已删除", nil)
}

// CreateUnit 在物业下创建单元
func (h *PropertyHandler) CreateUnit(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.CreateUnitRequest
	if !bindJSON(c, &req) {
		return
	}
	unit, err := h.units.Create(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, unit)
}

// ListUnits 物业下的单元
func (h *PropertyHandler) ListUnits(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	filter := services.UnitFilter{PropertyID: id, Status: c.Query("status")}
	page := pagination.ParsePageParams(c)
	units, total, err := h.units.List(c.Request.Context(), middleware.CurrentActor(c), filter, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithPage(c, units, pagination.NewPageInfo(page.Page, page.PageSize, total))
}
