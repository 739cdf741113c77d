package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// 用户角色
const (
	RoleAdminSuper = "admin_super"
	RoleAdminOps   = "admin_ops"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleDispatcher = "dispatcher"
	RoleGuard      = "guard"
	RoleClient     = "client"
)

// 用户状态
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusLocked   = "locked"
)

// AllRoles 所有合法角色
var AllRoles = []string{RoleAdminSuper, RoleAdminOps, RoleAdmin, RoleManager, RoleDispatcher, RoleGuard, RoleClient}

// User represents platform operators, guards and client contacts that can sign in
type User struct {
	BaseModel
	Email       string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	Username    string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Password    string         `gorm:"type:varchar(100);not null" json:"-"` // Password not exposed in JSON
	FirstName   string         `gorm:"type:varchar(50)" json:"first_name"`
	LastName    string         `gorm:"type:varchar(50)" json:"last_name"`
	Phone       string         `gorm:"type:varchar(20)" json:"phone"`
	Role        string         `gorm:"type:varchar(30);index;default:'dispatcher'" json:"role"`
	Status      string         `gorm:"type:varchar(20);default:'active'" json:"status"` // Status: active, inactive, locked
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsValidRole 判断角色是否合法
func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdminRole admin 以及所有 admin_* 角色
func IsAdminRole(role string) bool {
	return role == RoleAdmin || strings.HasPrefix(role, RoleAdmin+"_")
}
