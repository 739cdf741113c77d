package models

import "time"

// 派遣状态
const (
	DispatchAssigned     = "assigned"
	DispatchAcknowledged = "acknowledged"
	DispatchEnRoute      = "en_route"
	DispatchOnScene      = "on_scene"
	DispatchCompleted    = "completed"
	DispatchCancelled    = "cancelled"
)

// dispatchOrder 派遣状态的前进顺序
var dispatchOrder = []string{DispatchAssigned, DispatchAcknowledged, DispatchEnRoute, DispatchOnScene, DispatchCompleted}

// Dispatch 将警卫指派到事件
type Dispatch struct {
	BaseModel
	DispatchNumber     string     `gorm:"type:varchar(40);uniqueIndex;not null" json:"dispatch_number"`
	IncidentID         uint       `gorm:"index;not null" json:"incident_id"`
	GuardID            uint       `gorm:"index;not null" json:"guard_id"`
	DispatchedByUserID *uint      `json:"dispatched_by_user_id,omitempty"`
	Status             string     `gorm:"type:varchar(20);index;default:'assigned'" json:"status"`
	Priority           string     `gorm:"type:varchar(20);default:'normal'" json:"priority"`
	Notes              string     `gorm:"type:text" json:"notes"`
	ETAMinutes         *int       `json:"eta_minutes,omitempty"`
	AssignedAt         time.Time  `json:"assigned_at"`
	AcknowledgedAt     *time.Time `json:"acknowledged_at,omitempty"`
	EnRouteAt          *time.Time `json:"en_route_at,omitempty"`
	OnSceneAt          *time.Time `json:"on_scene_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelReason       string     `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`

	Incident *Incident `gorm:"foreignKey:IncidentID" json:"incident,omitempty"`
	Guard    *Guard    `gorm:"foreignKey:GuardID" json:"guard,omitempty"`
}

// IsTerminalDispatchStatus 终态
func IsTerminalDispatchStatus(status string) bool {
	return status == DispatchCompleted || status == DispatchCancelled
}

// CanTransitionDispatch 只能按顺序前进（允许跳过中间状态），或从非终态取消
func CanTransitionDispatch(from, to string) bool {
	if IsTerminalDispatchStatus(from) {
		return false
	}
	if to == DispatchCancelled {
		return true
	}
	fromIdx, toIdx := indexOf(dispatchOrder, from), indexOf(dispatchOrder, to)
	return fromIdx >= 0 && toIdx > fromIdx
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

// TransitionTo 执行派遣状态流转并记录时间戳
func (d *Dispatch) TransitionTo(to string, now time.Time) error {
	if !CanTransitionDispatch(d.Status, to) {
		return ErrInvalidTransition
	}
	d.Status = to
	switch to {
	case DispatchAcknowledged:
		d.AcknowledgedAt = &now
	case DispatchEnRoute:
		d.EnRouteAt = &now
	case DispatchOnScene:
		d.OnSceneAt = &now
	case DispatchCompleted:
		d.CompletedAt = &now
	case DispatchCancelled:
		d.CancelledAt = &now
	}
	return nil
}
