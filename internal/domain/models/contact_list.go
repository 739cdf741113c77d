package models

import "gorm.io/datatypes"

// 联系人列表类型
const (
	ContactListEmergency  = "emergency"
	ContactListEscalation = "escalation"
	ContactListClient     = "client"
	ContactListVendor     = "vendor"
	ContactListInternal   = "internal"
)

// ContactListTypes 所有合法的列表类型
var ContactListTypes = []string{ContactListEmergency, ContactListEscalation, ContactListClient, ContactListVendor, ContactListInternal}

// Contact 联系人
type Contact struct {
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Priority int    `json:"priority"`
	Notes    string `json:"notes,omitempty"`
}

// ContactList 联系人列表，PropertyID 为空表示全局
type ContactList struct {
	BaseModel
	Name        string         `gorm:"type:varchar(100);not null" json:"name"`
	PropertyID  *uint          `gorm:"index" json:"property_id,omitempty"`
	Type        string         `gorm:"type:varchar(20);index;default:'emergency'" json:"type"`
	Description string         `gorm:"type:text" json:"description"`
	Contacts    datatypes.JSON `json:"contacts"`
	IsActive    bool           `json:"is_active"`

	Property *Property `gorm:"foreignKey:PropertyID;constraint:OnDelete:SET NULL" json:"property,omitempty"`
}

// IsValidContactListType 判断列表类型是否合法
func IsValidContactListType(t string) bool {
	return contains(ContactListTypes, t)
}
