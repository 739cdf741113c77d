package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog 操作审计日志
type AuditLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     *uint          `gorm:"index" json:"user_id,omitempty"` // 为空表示匿名请求，如登录失败
	Role       string         `gorm:"type:varchar(30)" json:"role"`
	Action     string         `gorm:"type:varchar(50);index;not null" json:"action"` // create, update, delete, login, status_change ...
	Resource   string         `gorm:"type:varchar(50);index;not null" json:"resource"`
	ResourceID string         `gorm:"type:varchar(50)" json:"resource_id"`
	IPAddress  string         `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent  string         `gorm:"type:varchar(255)" json:"user_agent"`
	Details    datatypes.JSON `json:"details,omitempty"`
	Success    bool           `json:"success"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}
