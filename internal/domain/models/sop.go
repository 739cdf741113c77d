package models

import (
	"time"

	"gorm.io/datatypes"
)

// SOP 状态
const (
	SOPStatusDraft    = "draft"
	SOPStatusActive   = "active"
	SOPStatusArchived = "archived"
)

// SOPStatuses 所有合法的SOP状态
var SOPStatuses = []string{SOPStatusDraft, SOPStatusActive, SOPStatusArchived}

// SOPStep 处置步骤
type SOPStep struct {
	Order       int    `json:"order"`
	Instruction string `json:"instruction"`
	Required    bool   `json:"required"`
}

// SOP 标准作业程序。PropertyID 为空表示全局适用，IncidentType 为空表示适用于所有事件类型
type SOP struct {
	BaseModel
	Title             string         `gorm:"type:varchar(200);not null" json:"title"`
	PropertyID        *uint          `gorm:"index" json:"property_id,omitempty"`
	IncidentType      *string        `gorm:"type:varchar(50);index" json:"incident_type,omitempty"`
	SeverityThreshold string         `gorm:"type:varchar(20);default:'low'" json:"severity_threshold"`
	Version           string         `gorm:"type:varchar(20);default:'1.0'" json:"version"`
	Status            string         `gorm:"type:varchar(20);index;default:'draft'" json:"status"`
	Summary           string         `gorm:"type:text" json:"summary"`
	Steps             datatypes.JSON `gorm:"not null" json:"steps"`
	ContactListID     *uint          `gorm:"index" json:"contact_list_id,omitempty"`
	EffectiveFrom     *time.Time     `json:"effective_from,omitempty"`
	ReviewedAt        *time.Time     `json:"reviewed_at,omitempty"`
	CreatedBy         *uint          `json:"created_by,omitempty"`
	UpdatedBy         *uint          `json:"updated_by,omitempty"`

	// 关联关系
	Property    *Property    `gorm:"foreignKey:PropertyID;constraint:OnDelete:SET NULL" json:"property,omitempty"`
	ContactList *ContactList `gorm:"foreignKey:ContactListID;constraint:OnDelete:SET NULL" json:"contact_list,omitempty"`
}

func (SOP) TableName() string {
	return "sops"
}
