package models

// Property 物业，房东所有
type Property struct {
	BaseModel
	OwnerID     uint   `json:"owner_id" gorm:"not null;index"`
	Name        string `json:"name" gorm:"not null;size:100"`
	Address     string `json:"address" gorm:"size:255"`
	City        string `json:"city" gorm:"size:100"`
	Type        string `json:"type" gorm:"size:20;default:'apartment'"`
	TotalUnits  int    `json:"total_units" gorm:"not null;default:0"` // 冗余计数，随单元增删维护
	Status      string `json:"status" gorm:"size:20;default:'active';index"`
	Description string `json:"description" gorm:"type:text"`

	Owner *User `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}

// TableName 表名
func (Property) TableName() string {
	return "properties"
}

const (
	PropertyTypeApartment  = "apartment"
	PropertyTypeHouse      = "house"
	PropertyTypeCommercial = "commercial"
	PropertyTypeMixed      = "mixed"
)

const (
	PropertyStatusActive   = "active"
	PropertyStatusInactive = "inactive"
)

// CreatePropertyRequest 创建物业请求
type CreatePropertyRequest struct {
	OwnerID     uint   `json:"owner_id"` // 仅管理员可代房东创建
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Address     string `json:"address" binding:"max=255"`
	City        string `json:"city" binding:"max=100"`
	Type        string `json:"type" binding:"omitempty,oneof=apartment house commercial mixed"`
	Description string `json:"description" binding:"max=2000"`
}

// UpdatePropertyRequest 更新物业请求
type UpdatePropertyRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=2,max=100"`
	Address     *string `json:"address" binding:"omitempty,max=255"`
	City        *string `json:"city" binding:"omitempty,max=100"`
	Type        *string `json:"type" binding:"omitempty,oneof=apartment house commercial mixed"`
	Status      *string `json:"status" binding:"omitempty,oneof=active inactive"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}
