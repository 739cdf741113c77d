package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 警卫状态
const (
	GuardStatusOffDuty    = "off_duty"
	GuardStatusOnDuty     = "on_duty"
	GuardStatusDispatched = "dispatched"
	GuardStatusOnBreak    = "on_break"
	GuardStatusInactive   = "inactive"
)

// GuardStatuses 所有合法的警卫状态
var GuardStatuses = []string{GuardStatusOffDuty, GuardStatusOnDuty, GuardStatusDispatched, GuardStatusOnBreak, GuardStatusInactive}

// Guard 现场警卫
type Guard struct {
	BaseModel
	UserID            *uint          `gorm:"index" json:"user_id,omitempty"`
	EmployeeID        string         `gorm:"type:varchar(30);uniqueIndex;not null" json:"employee_id"`
	FirstName         string         `gorm:"type:varchar(50);not null" json:"first_name"`
	LastName          string         `gorm:"type:varchar(50)" json:"last_name"`
	Phone             string         `gorm:"type:varchar(20)" json:"phone"`
	Email             string         `gorm:"type:varchar(100)" json:"email"`
	LicenseNumber     string         `gorm:"type:varchar(50)" json:"license_number"`
	LicenseExpiry     *time.Time     `json:"license_expiry,omitempty"`
	Status            string         `gorm:"type:varchar(20);index;default:'off_duty'" json:"status"`
	CurrentPropertyID *uint          `gorm:"index" json:"current_property_id,omitempty"`
	LastLatitude      *float64       `json:"last_latitude,omitempty"`
	LastLongitude     *float64       `json:"last_longitude,omitempty"`
	LastSeenAt        *time.Time     `json:"last_seen_at,omitempty"`
	Certifications    datatypes.JSON `json:"certifications,omitempty"`
	Notes             string         `gorm:"type:text" json:"notes"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	// 关联关系
	User            *User     `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	CurrentProperty *Property `gorm:"foreignKey:CurrentPropertyID;constraint:OnDelete:SET NULL" json:"current_property,omitempty"`
}

// IsValidGuardStatus 判断警卫状态是否合法
func IsValidGuardStatus(status string) bool {
	return contains(GuardStatuses, status)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
