package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/infrastructure/config"
	Logger "apex-http-service/pkg/logger"
	"apex-http-service/pkg/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DispatchQuery 派遣列表查询条件
type DispatchQuery struct {
	models.PaginationQuery
	IncidentID *uint  `form:"incident_id"`
	GuardID    *uint  `form:"guard_id"`
	Status     string `form:"status"`
}

// DispatchInput 创建派遣
type DispatchInput struct {
	IncidentID uint   `json:"incident_id" binding:"required"`
	GuardID    uint   `json:"guard_id" binding:"required"`
	Priority   string `json:"priority"`
	Notes      string `json:"notes"`
	ETAMinutes *int   `json:"eta_minutes"`
}

// DispatchStatusInput 派遣状态更新
type DispatchStatusInput struct {
	Status       string `json:"status" binding:"required"`
	CancelReason string `json:"cancel_reason"`
}

// InterfaceDispatchService 派遣服务接口
type InterfaceDispatchService interface {
	ListDispatches(ctx context.Context, q DispatchQuery) ([]models.Dispatch, int64, error)
	GetDispatch(ctx context.Context, id uint) (*models.Dispatch, error)
	CreateDispatch(ctx context.Context, actor Actor, in DispatchInput) (*models.Dispatch, error)
	UpdateStatus(ctx context.Context, actor Actor, id uint, in DispatchStatusInput) (*models.Dispatch, error)
}

// DispatchService 警卫派遣
type DispatchService struct {
	DB     *gorm.DB
	Config *config.Config
	Audit  InterfaceAuditService
	Events EventPublisher
	MQTT   InterfaceMQTTService
}

// NewDispatchService 创建派遣服务，mqttService 可为空
func NewDispatchService(db *gorm.DB, cfg *config.Config, audit InterfaceAuditService, events EventPublisher, mqttService InterfaceMQTTService) InterfaceDispatchService {
	return &DispatchService{DB: db, Config: cfg, Audit: audit, Events: events, MQTT: mqttService}
}

// 1 ListDispatches 获取派遣列表
func (s *DispatchService) ListDispatches(ctx context.Context, q DispatchQuery) ([]models.Dispatch, int64, error) {
	q.Normalize()
	query := s.DB.WithContext(ctx).Model(&models.Dispatch{})
	if q.IncidentID != nil {
		query = query.Where("incident_id = ?", *q.IncidentID)
	}
	if q.GuardID != nil {
		query = query.Where("guard_id = ?", *q.GuardID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var dispatches []models.Dispatch
	if err := query.Preload("Guard").Order("assigned_at DESC, id DESC").Offset(q.Offset()).Limit(q.PageSize).Find(&dispatches).Error; err != nil {
		return nil, 0, err
	}
	return dispatches, total, nil
}

// 2 GetDispatch 获取派遣详情
func (s *DispatchService) GetDispatch(ctx context.Context, id uint) (*models.Dispatch, error) {
	var dispatch models.Dispatch
	if err := s.DB.WithContext(ctx).Preload("Incident").Preload("Guard").First(&dispatch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &dispatch, nil
}

// 3 CreateDispatch 在事务中创建派遣：占用警卫、指派事件并推送通知
func (s *DispatchService) CreateDispatch(ctx context.Context, actor Actor, in DispatchInput) (*models.Dispatch, error) {
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !containsString(models.Priorities, priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, priority)
	}
	if in.ETAMinutes != nil && *in.ETAMinutes < 0 {
		return nil, fmt.Errorf("%w: eta_minutes cannot be negative", ErrValidation)
	}

	now := time.Now().UTC()
	dispatch := &models.Dispatch{
		DispatchNumber: utils.GenerateID("DSP"),
		IncidentID:     in.IncidentID,
		GuardID:        in.GuardID,
		Status:         models.DispatchAssigned,
		Priority:       priority,
		Notes:          utils.SanitizeString(in.Notes),
		ETAMinutes:     in.ETAMinutes,
		AssignedAt:     now,
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		dispatch.DispatchedByUserID = &uid
	}

	var incident models.Incident
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&incident, in.IncidentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: incident %d", ErrNotFound, in.IncidentID)
			}
			return err
		}
		if !models.IsOpenIncidentStatus(incident.Status) {
			return ErrIncidentClosed
		}

		// 条件更新保证同一警卫不会被并发派遣
		result := tx.Model(&models.Guard{}).
			Where("id = ? AND status = ?", in.GuardID, models.GuardStatusOnDuty).
			Update("status", models.GuardStatusDispatched)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&models.Guard{}).Where("id = ?", in.GuardID).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return fmt.Errorf("%w: guard %d", ErrNotFound, in.GuardID)
			}
			return ErrGuardUnavailable
		}

		if err := tx.Create(dispatch).Error; err != nil {
			return err
		}

		guardID := in.GuardID
		incident.AssignedGuardID = &guardID
		if incident.Status == models.IncidentReported || incident.Status == models.IncidentAcknowledged {
			if err := incident.TransitionTo(models.IncidentDispatched, now); err != nil {
				return err
			}
		}
		return tx.Omit(clause.Associations).Save(&incident).Error
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, actor, AuditCreate, "dispatch", dispatch.ID,
		map[string]uint{"incident_id": in.IncidentID, "guard_id": in.GuardID}, true)
	publishEvent(s.Events, EventDispatchCreated, dispatch)
	publishEvent(s.Events, EventIncidentStatus, &incident)
	publishEvent(s.Events, EventGuardStatus, map[string]interface{}{"guard_id": in.GuardID, "status": models.GuardStatusDispatched})
	if s.MQTT != nil && s.MQTT.IsConnected() {
		if err := s.MQTT.PublishDispatch(dispatch, &incident); err != nil {
			Logger.Warning("[MQTT] 派遣通知 %s 发送失败: %v", dispatch.DispatchNumber, err)
		}
	}
	return dispatch, nil
}

// 4 UpdateStatus 推进派遣状态，到场时事件进入处理中，结束后警卫恢复在岗
func (s *DispatchService) UpdateStatus(ctx context.Context, actor Actor, id uint, in DispatchStatusInput) (*models.Dispatch, error) {
	now := time.Now().UTC()
	var (
		dispatch    models.Dispatch
		from        string
		incident    *models.Incident
		guardStatus string
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&dispatch, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		from = dispatch.Status
		if err := dispatch.TransitionTo(in.Status, now); err != nil {
			return fmt.Errorf("%w: %s -> %s", err, from, in.Status)
		}
		if in.Status == models.DispatchCancelled {
			dispatch.CancelReason = utils.SanitizeString(in.CancelReason)
		}
		if err := tx.Omit(clause.Associations).Save(&dispatch).Error; err != nil {
			return err
		}

		switch in.Status {
		case models.DispatchOnScene:
			var inc models.Incident
			if err := tx.First(&inc, dispatch.IncidentID).Error; err != nil {
				return err
			}
			if models.CanTransitionIncident(inc.Status, models.IncidentInProgress) && inc.Status != models.IncidentResolved {
				if err := inc.TransitionTo(models.IncidentInProgress, now); err != nil {
					return err
				}
				if err := tx.Omit(clause.Associations).Save(&inc).Error; err != nil {
					return err
				}
				incident = &inc
			}
		case models.DispatchCompleted, models.DispatchCancelled:
			// 警卫没有其他进行中的派遣时恢复在岗
			var active int64
			if err := tx.Model(&models.Dispatch{}).
				Where("guard_id = ? AND id <> ? AND status NOT IN ?", dispatch.GuardID, dispatch.ID,
					[]string{models.DispatchCompleted, models.DispatchCancelled}).
				Count(&active).Error; err != nil {
				return err
			}
			if active == 0 {
				if err := tx.Model(&models.Guard{}).
					Where("id = ? AND status = ?", dispatch.GuardID, models.GuardStatusDispatched).
					Update("status", models.GuardStatusOnDuty).Error; err != nil {
					return err
				}
			}
			var guard models.Guard
			if err := tx.Select("id", "status").First(&guard, dispatch.GuardID).Error; err != nil {
				return err
			}
			guardStatus = guard.Status
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, actor, AuditStatusChange, "dispatch", id, map[string]string{"from": from, "to": in.Status}, true)
	publishEvent(s.Events, EventDispatchStatus, &dispatch)
	if incident != nil {
		publishEvent(s.Events, EventIncidentStatus, incident)
	}
	if guardStatus != "" {
		publishEvent(s.Events, EventGuardStatus, map[string]interface{}{"guard_id": dispatch.GuardID, "status": guardStatus})
	}
	return &dispatch, nil
}
