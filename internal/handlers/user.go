package handlers

import (
	"rentflow/internal/middleware"
	"rentflow/internal/models"
	"rentflow/internal/services"
	"rentflow/pkg/pagination"
	"rentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户处理器
type UserHandler struct {
	identity *services.IdentityService
}

func NewUserHandler(identity *services.IdentityService) *UserHandler {
	return &UserHandler{identity: identity}
}

// Me 当前登录用户
func (h *UserHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Unauthorized(c, "请先登录")
		return
	}
	response.Success(c, gin.H{
		"user":         user,
		"capabilities": capabilitiesOf(user.Role),
	})
}

// List 用户列表，支持 role / keyword / active 过滤
func (h *UserHandler) List(c *gin.Context) {
	filter := services.UserFilter{
		Role:    c.Query("role"),
		Keyword: c.Query("keyword"),
	}
	switch c.Query("active") {
	case "true":
		active := true
		filter.Active = &active
	case "false":
		active := false
		filter.Active = &active
	}

	page := pagination.ParsePageParams(c)
	users, total, err := h.identity.List(c.Request.Context(), filter, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithPage(c, users, pagination.NewPageInfo(page.Page, page.PageSize, total))
}

// Get 用户详情
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := h.identity.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, user)
}

// ChangeRole 修改用户角色（仅管理员）
func (h *UserHandler) ChangeRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.ChangeRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, _ := models.ParseRole(req.Role)

	user, err := h.identity.ChangeRole(c.Request.Context(), middleware.CurrentActor(c), id, role)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "角色已修改", user)
}

func capabilitiesOf(role models.Role) []models.Capability {
	all := []models.Capability{
		models.CapManageProperties,
		models.CapManageLeases,
		models.CapRecordPayments,
		models.CapReviewPayments,
		models.CapSubmitPayments,
		models.CapManageMaintenance,
		models.CapSubmitMaintenance,
		models.CapManageUsers,
		models.CapListUsers,
		models.CapSendNotifications,
		models.CapManageCalendar,
		models.CapViewDashboard,
	}
	caps := make([]models.Capability, 0, len(all))
	for _, c := range all {
		if role.Can(c) {
			caps = append(caps, c)
		}
	}
	return caps
}
