package handlers

import (
	"rentflow/internal/middleware"
	"rentflow/internal/models"
	"rentflow/internal/services"
	"rentflow/pkg/pagination"
	"rentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// LeaseHandler 租约处理器
type LeaseHandler struct {
	leases *services.LeaseService
}

func NewLeaseHandler(leases *services.LeaseService) *LeaseHandler {
	return &LeaseHandler{leases: leases}
}

// Allocate 把空置单元分配给租客
func (h *LeaseHandler) Allocate(c *gin.Context) {
	var req models.AllocateLeaseRequest
	if !bindJSON(c, &req) {
		return
	}

	// binding 已校验格式，这里只做转换
	start, err := models.ParseDate(req.StartDate)
	if err != nil {
		response.BadRequest(c, "开始日期格式错误")
		return
	}
	end, err := models.ParseDate(req.EndDate)
	if err != nil {
		response.BadRequest(c, "结束日期格式错误")
		return
	}

	lease, err := h.leases.Allocate(c.Request.Context(), middleware.CurrentActor(c), services.AllocateParams{
		TenantID:      req.TenantID,
		UnitID:        req.UnitID,
		RentAmount:    req.RentAmount,
		DepositAmount: req.DepositAmount,
		StartDate:     start,
		EndDate:       end,
		PaymentDay:    req.PaymentDay,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, lease)
}

// Terminate 提前终止租约
func (h *LeaseHandler) Terminate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	lease, err := h.leases.Terminate(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "租约已终止", lease)
}

// List 租约列表，租客只能看到自己的
func (h *LeaseHandler) List(c *gin.Context) {
	unitID, ok := queryUint(c, "unit_id")
	if !ok {
		return
	}
	tenantID, ok := queryUint(c, "tenant_id")
	if !ok {
		return
	}
	filter := services.LeaseFilter{
		Status:   c.Query("status"),
		UnitID:   unitID,
		TenantID: tenantID,
	}

	page := pagination.ParsePageParams(c)
	leases, total, err := h.leases.List(c.Request.Context(), middleware.CurrentActor(c), filter, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithPage(c, leases, pagination.NewPageInfo(page.Page, page.PageSize, total))
}

// Get 租约详情
func (h *LeaseHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	lease, err := h.leases.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, lease)
}
