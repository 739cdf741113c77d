package models

import "gorm.io/gorm"

// Property 受保护的客户物业
type Property struct {
	BaseModel
	Name          string         `gorm:"type:varchar(100);not null" json:"name"`
	Code          string         `gorm:"type:varchar(30);uniqueIndex;not null" json:"code"`
	AddressLine1  string         `gorm:"type:varchar(200)" json:"address_line1"`
	AddressLine2  string         `gorm:"type:varchar(200)" json:"address_line2"`
	City          string         `gorm:"type:varchar(100)" json:"city"`
	State         string         `gorm:"type:varchar(100)" json:"state"`
	PostalCode    string         `gorm:"type:varchar(20)" json:"postal_code"`
	Country       string         `gorm:"type:varchar(50)" json:"country"`
	ClientName    string         `gorm:"type:varchar(100)" json:"client_name"`
	ClientContact string         `gorm:"type:varchar(100)" json:"client_contact"`
	ClientPhone   string         `gorm:"type:varchar(20)" json:"client_phone"`
	ClientEmail   string         `gorm:"type:varchar(100)" json:"client_email"`
	Timezone      string         `gorm:"type:varchar(50);default:'UTC'" json:"timezone"`
	Latitude      *float64       `json:"latitude,omitempty"`
	Longitude     *float64       `json:"longitude,omitempty"`
	Status        string         `gorm:"type:varchar(20);default:'active'" json:"status"` // active, inactive
	Notes         string         `gorm:"type:text" json:"notes"`
	Zones         []Zone         `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"zones,omitempty"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// Zone 物业内的区域
type Zone struct {
	BaseModel
	PropertyID  uint   `gorm:"index;not null" json:"property_id"`
	Name        string `gorm:"type:varchar(100);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	RiskLevel   string `gorm:"type:varchar(20);default:'low'" json:"risk_level"` // low, medium, high
	Status      string `gorm:"type:varchar(20);default:'active'" json:"status"`
}
