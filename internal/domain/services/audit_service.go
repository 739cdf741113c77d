package services

import (
	"context"
	"encoding/json"
	"fmt"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/infrastructure/config"
	Logger "apex-http-service/pkg/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 审计动作
const (
	AuditCreate       = "create"
	AuditUpdate       = "update"
	AuditDelete       = "delete"
	AuditStatusChange = "status_change"
	AuditLogin        = "login"
	AuditLoginFailed  = "login_failed"
	AuditLogout       = "logout"
	AuditExport       = "export"
)

// Actor 发起操作的用户及请求信息
type Actor struct {
	UserID    uint
	Role      string
	IP        string
	UserAgent string
}

// AuditQuery 审计日志查询条件
type AuditQuery struct {
	models.PaginationQuery
	UserID   *uint  `form:"user_id"`
	Resource string `form:"resource"`
	Action   string `form:"action"`
}

// InterfaceAuditService 审计服务接口
type InterfaceAuditService interface {
	Record(ctx context.Context, actor Actor, action, resource string, resourceID interface{}, details interface{}, success bool)
	List(ctx context.Context, q AuditQuery) ([]models.AuditLog, int64, error)
}

// AuditService 记录并查询审计日志
type AuditService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewAuditService 创建审计服务
func NewAuditService(db *gorm.DB, cfg *config.Config) InterfaceAuditService {
	return &AuditService{DB: db, Config: cfg}
}

// 1 Record 写入审计日志，失败只记录警告
func (s *AuditService) Record(ctx context.Context, actor Actor, action, resource string, resourceID interface{}, details interface{}, success bool) {
	entry := models.AuditLog{
		Role:      actor.Role,
		Action:    action,
		Resource:  resource,
		IPAddress: actor.IP,
		UserAgent: truncate(actor.UserAgent, 255),
		Success:   success,
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		entry.UserID = &uid
	}
	if resourceID != nil {
		entry.ResourceID = fmt.Sprint(resourceID)
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = datatypes.JSON(raw)
		}
	}

	if err := s.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		Logger.Warning("写入审计日志失败: action=%s resource=%s err=%v", action, resource, err)
	}
}

// 2 List 分页查询审计日志，按时间倒序
func (s *AuditService) List(ctx context.Context, q AuditQuery) ([]models.AuditLog, int64, error) {
	q.Normalize()
	query := s.DB.WithContext(ctx).Model(&models.AuditLog{})
	if q.UserID != nil {
		query = query.Where("user_id = ?", *q.UserID)
	}
	if q.Resource != "" {
		query = query.Where("resource = ?", q.Resource)
	}
	if q.Action != "" {
		query = query.Where("action = ?", q.Action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	if err := query.Order("created_at DESC, id DESC").Offset(q.Offset()).Limit(q.PageSize).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
