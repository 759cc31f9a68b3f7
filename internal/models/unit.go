package models

import "github.com/shopspring/decimal"

// Unit 单元，属于一个物业
type Unit struct {
	BaseModel
	PropertyID    uint            `json:"property_id" gorm:"not null;uniqueIndex:idx_units_property_number"`
	UnitNumber    string          `json:"unit_number" gorm:"not null;size:50;uniqueIndex:idx_units_property_number"`
	Bedrooms      int             `json:"bedrooms" gorm:"default:0"`
	Bathrooms     int             `json:"bathrooms" gorm:"default:0"`
	SquareFeet    int             `json:"square_feet" gorm:"default:0"`
	RentAmount    decimal.Decimal `json:"rent_amount" gorm:"type:decimal(12,2);not null;default:0"`
	DepositAmount decimal.Decimal `json:"deposit_amount" gorm:"type:decimal(12,2);not null;default:0"`
	Status        string          `json:"status" gorm:"size:20;not null;default:'vacant';index"`

	Property *Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
}

// TableName 表名
func (Unit) TableName() string {
	return "units"
}

// 单元状态，occupied 只能由租约流程设置
const (
	UnitStatusVacant      = "vacant"
	UnitStatusOccupied    = "occupied"
	UnitStatusMaintenance = "maintenance"
	UnitStatusRenovation  = "renovation"
)

// CreateUnitRequest 创建单元请求
type CreateUnitRequest struct {
	UnitNumber    string          `json:"unit_number" binding:"required,min=1,max=50"`
	Bedrooms      int             `json:"bedrooms" binding:"min=0,max=50"`
	Bathrooms     int             `json:"bathrooms" binding:"min=0,max=50"`
	SquareFeet    int             `json:"square_feet" binding:"min=0"`
	RentAmount    decimal.Decimal `json:"rent_amount"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	Status        string          `json:"status" binding:"omitempty,oneof=vacant maintenance renovation"`
}

// UpdateUnitRequest 更新单元请求
type UpdateUnitRequest struct {
	UnitNumber    *string          `json:"unit_number" binding:"omitempty,min=1,max=50"`
	Bedrooms      *int             `json:"bedrooms" binding:"omitempty,min=0,max=50"`
	Bathrooms     *int             `json:"bathrooms" binding:"omitempty,min=0,max=50"`
	SquareFeet    *int             `json:"square_feet" binding:"omitempty,min=0"`
	RentAmount    *decimal.Decimal `json:"rent_amount"`
	DepositAmount *decimal.Decimal `json:"deposit_amount"`
	Status        *string          `json:"status" binding:"omitempty,oneof=vacant occupied maintenance renovation"`
}
