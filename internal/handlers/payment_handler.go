package handlers

import (
	"rentflow/internal/middleware"
	"rentflow/internal/models"
	"rentflow/internal/services"
	"rentflow/pkg/pagination"
	"rentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler 付款与租客看板
type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create 租客提交付款，房东/管理员登记线下付款
func (h *PaymentHandler) Create(c *gin.Context) {
	var req models.CreatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.payments.Create(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, payment)
}

// Review 核验或驳回待审核付款
func (h *PaymentHandler) Review(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action" binding:"required,oneof=verify reject"`
		Reason string `json:"reason" binding:"max=500"`
	}
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.payments.Review(c.Request.Context(), middleware.CurrentActor(c), &models.ReviewPaymentRequest{
		PaymentID: id,
		Action:    req.Action,
		Reason:    req.Reason,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payment)
}

// List 付款列表
func (h *PaymentHandler) List(c *gin.Context) {
	leaseID, ok := queryUint(c, "lease_id")
	if !ok {
		return
	}
	tenantID, ok := queryUint(c, "tenant_id")
	if !ok {
		return
	}
	filter := services.PaymentFilter{
		LeaseID:  leaseID,
		TenantID: tenantID,
		Status:   c.Query("status"),
	}

	page := pagination.ParsePageParams(c)
	payments, total, err := h.payments.List(c.Request.Context(), middleware.CurrentActor(c), filter, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithPage(c, payments, pagination.NewPageInfo(page.Page, page.PageSize, total))
}

// Get 付款详情
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	payment, err := h.payments.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payment)
}

// Dashboard 租客看板：当前租约、余额、最近付款
func (h *PaymentHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.payments.TenantDashboard(c.Request.Context(), middleware.CurrentActor(c).UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, dashboard)
}
