package models

import "strings"

// Role 用户角色
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
	RoleAdmin    Role = "admin"
)

// Capability 角色能力
type Capability string

const (
	CapManageProperties  Capability = "property:manage"
	CapManageLeases      Capability = "lease:manage"
	CapRecordPayments    Capability = "payment:record"
	CapReviewPayments    Capability = "payment:review"
	CapSubmitPayments    Capability = "payment:submit"
	CapManageMaintenance Capability = "maintenance:manage"
	CapSubmitMaintenance Capability = "maintenance:submit"
	CapManageUsers       Capability = "user:manage"
	CapListUsers         Capability = "user:list"
	CapSendNotifications Capability = "notification:send"
	CapManageCalendar    Capability = "calendar:manage"
	CapViewDashboard     Capability = "dashboard:tenant"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleTenant: {
		CapSubmitPayments:    true,
		CapSubmitMaintenance: true,
		CapViewDashboard:     true,
	},
	RoleLandlord: {
		CapManageProperties:  true,
		CapManageLeases:      true,
		CapRecordPayments:    true,
		CapReviewPayments:    true,
		CapManageMaintenance: true,
		CapSubmitMaintenance: true,
		CapListUsers:         true,
		CapSendNotifications: true,
		CapManageCalendar:    true,
	},
}

// ParseRole 解析角色，兼容旧数据中的 property_manager / owner
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tenant":
		return RoleTenant, true
	case "landlord", "owner", "property_manager":
		return RoleLandlord, true
	case "admin":
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Valid 是否为已知角色
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok || r == RoleAdmin
}

// Can 管理员拥有全部能力
func (r Role) Can(c Capability) bool {
	if r == RoleAdmin {
		return true
	}
	return roleCapabilities[r][c]
}

// IsStaff 房东或管理员
func (r Role) IsStaff() bool {
	return r == RoleLandlord || r == RoleAdmin
}
