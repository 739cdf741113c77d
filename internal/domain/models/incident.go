package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrInvalidTransition 状态流转不合法
var ErrInvalidTransition = errors.New("invalid status transition")

// 事件状态
const (
	IncidentReported     = "reported"
	IncidentAcknowledged = "acknowledged"
	IncidentDispatched   = "dispatched"
	IncidentInProgress   = "in_progress"
	IncidentResolved     = "resolved"
	IncidentClosed       = "closed"
	IncidentFalseAlarm   = "false_alarm"
	IncidentCancelled    = "cancelled"
)

// 严重程度
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// 优先级
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// 事件来源
const (
	SourceManual      = "manual"
	SourceAIDetection = "ai_detection"
	SourceAlarm       = "alarm"
	SourceGuardReport = "guard_report"
	SourcePhoneCall   = "phone_call"
)

var (
	Severities       = []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	Priorities       = []string{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}
	IncidentSources  = []string{SourceManual, SourceAIDetection, SourceAlarm, SourceGuardReport, SourcePhoneCall}
	IncidentStatuses = []string{IncidentReported, IncidentAcknowledged, IncidentDispatched, IncidentInProgress,
		IncidentResolved, IncidentClosed, IncidentFalseAlarm, IncidentCancelled}
)

// incidentTransitions 事件状态流转表，closed 和 cancelled 为终态
var incidentTransitions = map[string][]string{
	IncidentReported:     {IncidentAcknowledged, IncidentDispatched, IncidentFalseAlarm, IncidentCancelled},
	IncidentAcknowledged: {IncidentDispatched, IncidentInProgress, IncidentResolved, IncidentFalseAlarm, IncidentCancelled},
	IncidentDispatched:   {IncidentInProgress, IncidentResolved, IncidentCancelled},
	IncidentInProgress:   {IncidentResolved},
	IncidentResolved:     {IncidentClosed, IncidentInProgress},
	IncidentFalseAlarm:   {IncidentClosed},
	IncidentClosed:       {},
	IncidentCancelled:    {},
}

// highRiskTypes 严重程度达到 high 即为一级的事件类型
var highRiskTypes = map[string]bool{
	"weapon":   true,
	"violence": true,
	"fire":     true,
	"medical":  true,
}

// EvidenceItem 事件证据
type EvidenceItem struct {
	Type        string    `json:"type"` // photo, video, audio, document
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	UploadedBy  uint      `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Incident 安保事件
type Incident struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	IncidentNumber string `gorm:"type:varchar(40);uniqueIndex;not null" json:"incident_number"`
	Title          string `gorm:"type:varchar(200);not null" json:"title"`
	Description    string `gorm:"type:text" json:"description"`
	IncidentType   string `gorm:"type:varchar(50);index;not null" json:"incident_type"`
	Severity       string `gorm:"type:varchar(20);index;default:'medium'" json:"severity"`
	Priority       string `gorm:"type:varchar(20);default:'normal'" json:"priority"`
	Status         string `gorm:"type:varchar(20);index;default:'reported'" json:"status"`
	Tier           int    `gorm:"index;default:3" json:"tier"`
	Source         string `gorm:"type:varchar(20);default:'manual'" json:"source"`

	PropertyID       uint  `gorm:"index;not null" json:"property_id"`
	ZoneID           *uint `gorm:"index" json:"zone_id,omitempty"`
	ReportedByUserID *uint `gorm:"index" json:"reported_by_user_id,omitempty"`
	AssignedGuardID  *uint `gorm:"index" json:"assigned_guard_id,omitempty"`
	AlarmID          *uint `json:"alarm_id,omitempty"`
	AccessPointID    *uint `json:"access_point_id,omitempty"`

	CameraID            string   `gorm:"type:varchar(50)" json:"camera_id,omitempty"`
	LocationDescription string   `gorm:"type:varchar(255)" json:"location_description"`
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
	AIConfidence        *float64 `json:"ai_confidence,omitempty"`
	DetectionType       string   `gorm:"type:varchar(50)" json:"detection_type,omitempty"`

	DetectedAt     *time.Time `json:"detected_at,omitempty"`
	ReportedAt     time.Time  `gorm:"index;not null" json:"reported_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	DispatchedAt   *time.Time `json:"dispatched_at,omitempty"`
	ArrivedAt      *time.Time `json:"arrived_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`

	ResponseTimeSeconds   *int `json:"response_time_seconds,omitempty"`
	ResolutionTimeSeconds *int `json:"resolution_time_seconds,omitempty"`

	PersonsInvolved    int      `gorm:"default:0" json:"persons_involved"`
	VehiclesInvolved   int      `gorm:"default:0" json:"vehicles_involved"`
	InjuriesReported   bool     `json:"injuries_reported"`
	PoliceNotified     bool     `json:"police_notified"`
	PoliceReportNumber string   `gorm:"type:varchar(50)" json:"police_report_number,omitempty"`
	FireDeptNotified   bool     `json:"fire_dept_notified"`
	EMSNotified        bool     `json:"ems_notified"`
	PropertyDamage     bool     `json:"property_damage"`
	EstimatedLoss      *float64 `json:"estimated_loss,omitempty"`

	Evidence  datatypes.JSON `json:"evidence,omitempty"`
	Photos    datatypes.JSON `json:"photos,omitempty"`
	Videos    datatypes.JSON `json:"videos,omitempty"`
	Witnesses datatypes.JSON `json:"witnesses,omitempty"`
	Tags      datatypes.JSON `json:"tags,omitempty"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`

	ActionsTaken    string `gorm:"type:text" json:"actions_taken"`
	ResolutionNotes string `gorm:"type:text" json:"resolution_notes"`
	Notes           string `gorm:"type:text" json:"notes"`

	FollowUpRequired bool       `json:"follow_up_required"`
	FollowUpDate     *time.Time `json:"follow_up_date,omitempty"`
	ClientNotified   bool       `json:"client_notified"`
	ClientNotifiedAt *time.Time `json:"client_notified_at,omitempty"`

	CreatedBy *uint          `json:"created_by,omitempty"`
	UpdatedBy *uint          `json:"updated_by,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 关联关系
	Property       *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	Zone           *Zone     `gorm:"foreignKey:ZoneID;constraint:OnDelete:SET NULL" json:"zone,omitempty"`
	AssignedGuard  *Guard    `gorm:"foreignKey:AssignedGuardID;constraint:OnDelete:SET NULL" json:"assigned_guard,omitempty"`
	ReportedByUser *User     `gorm:"foreignKey:ReportedByUserID;constraint:OnDelete:SET NULL" json:"reported_by_user,omitempty"`
}

// ClassifyTier 事件分级：1 最高，3 最低
func ClassifyTier(incidentType, severity, priority string) int {
	if severity == SeverityCritical {
		return 1
	}
	if highRiskTypes[incidentType] && SeverityRank(severity) >= SeverityRank(SeverityHigh) {
		return 1
	}
	if severity == SeverityHigh || priority == PriorityUrgent {
		return 2
	}
	return 3
}

// SeverityRank 严重程度排序值，未知返回0
func SeverityRank(severity string) int {
	for i, s := range Severities {
		if s == severity {
			return i + 1
		}
	}
	return 0
}

// CanTransitionIncident 判断事件状态能否从 from 流转到 to
func CanTransitionIncident(from, to string) bool {
	return contains(incidentTransitions[from], to)
}

// IsOpenIncidentStatus 未结束的事件状态
func IsOpenIncidentStatus(status string) bool {
	switch status {
	case IncidentResolved, IncidentClosed, IncidentCancelled, IncidentFalseAlarm:
		return false
	}
	return contains(IncidentStatuses, status)
}

// OpenIncidentStatuses 未结束的事件状态列表
func OpenIncidentStatuses() []string {
	return []string{IncidentReported, IncidentAcknowledged, IncidentDispatched, IncidentInProgress}
}

// RefreshTier 重新计算事件等级
func (i *Incident) RefreshTier() {
	i.Tier = ClassifyTier(i.IncidentType, i.Severity, i.Priority)
}

// TransitionTo 执行状态流转并记录时间戳
func (i *Incident) TransitionTo(to string, now time.Time) error {
	if !CanTransitionIncident(i.Status, to) {
		return ErrInvalidTransition
	}
	from := i.Status
	i.Status = to

	switch to {
	case IncidentAcknowledged:
		i.AcknowledgedAt = &now
	case IncidentDispatched:
		i.DispatchedAt = &now
	case IncidentInProgress:
		if from == IncidentResolved {
			// 重新打开
			i.ResolvedAt = nil
			i.ResolutionTimeSeconds = nil
		} else if i.ArrivedAt == nil {
			i.ArrivedAt = &now
		}
	case IncidentResolved:
		i.ResolvedAt = &now
		secs := int(now.Sub(i.ReportedAt).Seconds())
		i.ResolutionTimeSeconds = &secs
	case IncidentClosed:
		i.ClosedAt = &now
	}

	if i.ResponseTimeSeconds == nil && (to == IncidentAcknowledged || to == IncidentDispatched) {
		secs := int(now.Sub(i.ReportedAt).Seconds())
		i.ResponseTimeSeconds = &secs
	}
	return nil
}
